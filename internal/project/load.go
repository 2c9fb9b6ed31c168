// Package project serializes the block graph to and from the HCL project
// document. Loading rejects documents referencing unknown block kinds before
// constructing any graph state, so a half-valid graph never escapes.
package project

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/ctxlog"
	"github.com/vk/araknidgo/internal/graph"
)

// Document is a loaded project: the graph plus the file's block naming, kept
// so diagnostics and a later Save can use the user's names.
type Document struct {
	Graph *graph.Graph
	// Names maps file block names to graph ids.
	Names map[string]graph.BlockID
}

// NameOf returns the file name of a block id, or its default id rendering.
func (d *Document) NameOf(id graph.BlockID) string {
	for name, bid := range d.Names {
		if bid == id {
			return name
		}
	}
	return id.String()
}

// LoadFile reads and parses a project file from disk.
func LoadFile(ctx context.Context, cat *catalog.Catalog, path string) (*Document, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project %s: %w", path, err)
	}
	return Load(ctx, cat, src, path)
}

// Load parses a project document and builds its graph against the catalog.
func Load(ctx context.Context, cat *catalog.Catalog, src []byte, filename string) (*Document, error) {
	logger := ctxlog.FromContext(ctx)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing project %s: %w", filename, diags)
	}

	var pf projectFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &pf); diags.HasErrors() {
		return nil, fmt.Errorf("decoding project %s: %w", filename, diags)
	}

	// Every referenced kind must exist before any graph state is built.
	var unknown []string
	seen := make(map[string]bool)
	for _, bd := range pf.Blocks {
		if !cat.Has(bd.Kind) && !seen[bd.Kind] {
			seen[bd.Kind] = true
			unknown = append(unknown, bd.Kind)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("project %s references unknown block kinds: %s", filename, strings.Join(unknown, ", "))
	}

	doc := &Document{
		Graph: graph.New(cat),
		Names: make(map[string]graph.BlockID, len(pf.Blocks)),
	}

	// First pass: instantiate blocks with their socket literals.
	for _, bd := range pf.Blocks {
		if strings.Contains(bd.Name, ".") {
			return nil, fmt.Errorf("block name %q must not contain '.'", bd.Name)
		}
		if _, dup := doc.Names[bd.Name]; dup {
			return nil, fmt.Errorf("duplicate block name %q", bd.Name)
		}

		literals, err := decodeSocketLiterals(bd)
		if err != nil {
			return nil, err
		}
		id, err := doc.Graph.AddBlock(bd.Kind, literals)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", bd.Name, err)
		}
		doc.Names[bd.Name] = id
	}

	// Second pass: control edges from port attributes, then data wires.
	for _, bd := range pf.Blocks {
		srcID := doc.Names[bd.Name]
		// The remain body still contains the consumed sockets block, which
		// JustAttributes rejects, so read the ports off the syntax body.
		syn, ok := bd.Ports.(*hclsyntax.Body)
		if !ok {
			return nil, fmt.Errorf("block %q: unsupported body syntax", bd.Name)
		}
		// Attribute maps are unordered; connect in sorted port order so
		// edge insertion order (and everything downstream) is stable.
		ports := make([]string, 0, len(syn.Attributes))
		for name := range syn.Attributes {
			ports = append(ports, name)
		}
		sort.Strings(ports)
		for _, port := range ports {
			val, vdiags := syn.Attributes[port].Expr.Value(nil)
			if vdiags.HasErrors() {
				return nil, fmt.Errorf("block %q port %q: %w", bd.Name, port, vdiags)
			}
			if val.Type() != cty.String {
				return nil, fmt.Errorf("block %q port %q must name a block", bd.Name, port)
			}
			dstID, ok := doc.Names[val.AsString()]
			if !ok {
				return nil, fmt.Errorf("block %q port %q targets undefined block %q", bd.Name, port, val.AsString())
			}
			if err := doc.Graph.ConnectControl(srcID, port, dstID); err != nil {
				return nil, fmt.Errorf("block %q: %w", bd.Name, err)
			}
		}
	}

	for _, wd := range pf.Wires {
		srcID, srcSock, err := doc.splitRef(wd.From)
		if err != nil {
			return nil, fmt.Errorf("wire from: %w", err)
		}
		dstID, dstSock, err := doc.splitRef(wd.To)
		if err != nil {
			return nil, fmt.Errorf("wire to: %w", err)
		}
		if err := doc.Graph.ConnectData(srcID, srcSock, dstID, dstSock); err != nil {
			return nil, fmt.Errorf("wire %s -> %s: %w", wd.From, wd.To, err)
		}
	}

	if pf.Project != nil && pf.Project.Entry != "" {
		entryID, ok := doc.Names[pf.Project.Entry]
		if !ok {
			return nil, fmt.Errorf("entry references undefined block %q", pf.Project.Entry)
		}
		if err := doc.Graph.SetEntry(entryID); err != nil {
			return nil, err
		}
	}

	logger.Debug("Project loaded.", "file", filename, "blocks", doc.Graph.Len())
	return doc, nil
}

func decodeSocketLiterals(bd *blockDecl) (map[string]cty.Value, error) {
	if bd.Sockets == nil {
		return nil, nil
	}
	attrs, diags := bd.Sockets.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("block %q sockets: %w", bd.Name, diags)
	}
	literals := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		val, vdiags := attr.Expr.Value(nil)
		if vdiags.HasErrors() {
			return nil, fmt.Errorf("block %q socket %q: %w", bd.Name, name, vdiags)
		}
		literals[name] = val
	}
	return literals, nil
}

func (d *Document) splitRef(ref string) (graph.BlockID, string, error) {
	name, socket, found := strings.Cut(ref, ".")
	if !found || name == "" || socket == "" {
		return graph.None, "", fmt.Errorf("reference %q is not of the form block.socket", ref)
	}
	id, ok := d.Names[name]
	if !ok {
		return graph.None, "", fmt.Errorf("reference %q names undefined block %q", ref, name)
	}
	return id, socket, nil
}
