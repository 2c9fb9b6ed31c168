package project

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/araknidgo/internal/graph"
)

// FromGraph wraps an existing graph in a document, assigning each block its
// default id-derived name. Loading the saved bytes reproduces the graph.
func FromGraph(g *graph.Graph) *Document {
	doc := &Document{Graph: g, Names: make(map[string]graph.BlockID, g.Len())}
	for _, id := range g.BlockIDs() {
		doc.Names[id.String()] = id
	}
	return doc
}

// Save renders the document back into project file syntax. Blocks appear in
// insertion order, sockets and ports in their kind's declaration order, so
// saving the same document twice yields identical bytes.
func Save(doc *Document) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	g := doc.Graph

	if entry, ok := g.Entry(); ok {
		pb := body.AppendNewBlock("project", nil)
		pb.Body().SetAttributeValue("entry", cty.StringVal(doc.NameOf(entry)))
		body.AppendNewline()
	}

	for _, id := range g.BlockIDs() {
		b, _ := g.Block(id)
		bb := body.AppendNewBlock("block", []string{b.Kind.ID, doc.NameOf(id)})

		hasLiteral := false
		for _, s := range b.Kind.Inputs() {
			if _, ok := b.Literal(s.Name); ok {
				hasLiteral = true
				break
			}
		}
		if hasLiteral {
			sb := bb.Body().AppendNewBlock("sockets", nil)
			for _, s := range b.Kind.Inputs() {
				if v, ok := b.Literal(s.Name); ok {
					sb.Body().SetAttributeValue(s.Name, v)
				}
			}
		}

		for _, port := range b.Kind.Ports() {
			if dst, ok := g.ControlTarget(id, port); ok {
				bb.Body().SetAttributeValue(port, cty.StringVal(doc.NameOf(dst)))
			}
		}
		body.AppendNewline()
	}

	for _, e := range g.DataEdges() {
		wb := body.AppendNewBlock("wire", nil)
		wb.Body().SetAttributeValue("from", cty.StringVal(doc.NameOf(e.Src)+"."+e.SrcSocket))
		wb.Body().SetAttributeValue("to", cty.StringVal(doc.NameOf(e.Dst)+"."+e.DstSocket))
		body.AppendNewline()
	}

	return f.Bytes()
}

// SaveFile writes the document to disk.
func SaveFile(doc *Document, path string) error {
	if err := os.WriteFile(path, Save(doc), 0o644); err != nil {
		return fmt.Errorf("writing project %s: %w", path, err)
	}
	return nil
}
