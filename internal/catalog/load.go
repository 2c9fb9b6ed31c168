package catalog

import (
	"context"
	"embed"
	"fmt"
	"os"
	"slices"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/araknidgo/internal/ctxlog"
	"github.com/vk/araknidgo/internal/fsutil"
)

//go:embed builtin/*.hcl
var builtinFS embed.FS

// Load builds a catalog from the embedded builtin manifests plus any number
// of extra manifest directories. Duplicate kind ids are rejected, so extra
// directories extend the builtin set rather than overriding it.
func Load(ctx context.Context, extraDirs ...string) (*Catalog, error) {
	logger := ctxlog.FromContext(ctx)
	cat := &Catalog{kinds: make(map[string]*BlockKind)}
	parser := hclparse.NewParser()

	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil, fmt.Errorf("reading embedded catalog: %w", err)
	}
	for _, entry := range entries {
		src, err := builtinFS.ReadFile("builtin/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded manifest %s: %w", entry.Name(), err)
		}
		if err := loadManifest(cat, parser, src, "builtin/"+entry.Name()); err != nil {
			return nil, err
		}
	}
	logger.Debug("Embedded catalog loaded.", "kinds", cat.Len())

	for _, dir := range extraDirs {
		if err := loadDir(ctx, cat, parser, dir); err != nil {
			return nil, err
		}
	}

	logger.Info("Catalog loaded.", "kinds", cat.Len())
	return cat, nil
}

// LoadDir builds a catalog from manifest directories only, without the
// builtin kinds. Tests use this to run against minimal or substituted
// catalogs.
func LoadDir(ctx context.Context, dirs ...string) (*Catalog, error) {
	cat := &Catalog{kinds: make(map[string]*BlockKind)}
	parser := hclparse.NewParser()
	for _, dir := range dirs {
		if err := loadDir(ctx, cat, parser, dir); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func loadDir(ctx context.Context, cat *Catalog, parser *hclparse.Parser, dir string) error {
	logger := ctxlog.FromContext(ctx)
	paths, err := fsutil.FindFilesByExtension(dir, ".hcl")
	if err != nil {
		return fmt.Errorf("walking catalog directory %s: %w", dir, err)
	}
	if len(paths) == 0 {
		logger.Warn("No .hcl manifests found in catalog path", "path", dir)
		return nil
	}
	for _, path := range paths {
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading manifest %s: %w", path, err)
		}
		if err := loadManifest(cat, parser, src, path); err != nil {
			return err
		}
		logger.Debug("Loaded catalog manifest.", "file", path)
	}
	return nil
}

func loadManifest(cat *Catalog, parser *hclparse.Parser, src []byte, filename string) error {
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("parsing manifest %s: %w", filename, diags)
	}

	var mf manifestFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &mf); diags.HasErrors() {
		return fmt.Errorf("decoding manifest %s: %w", filename, diags)
	}

	for _, kb := range mf.Kinds {
		kind, err := buildKind(kb)
		if err != nil {
			return fmt.Errorf("%s: kind %q: %w", filename, kb.ID, err)
		}
		if err := cat.add(kind); err != nil {
			return fmt.Errorf("%s: %w", filename, err)
		}
	}
	return nil
}

// buildKind translates a decoded manifest block into an immutable BlockKind,
// rejecting every inconsistency it can see statically so that the validator
// and generator can trust catalog data unconditionally.
func buildKind(kb *kindBlock) (*BlockKind, error) {
	category, err := parseCategory(kb.Category)
	if err != nil {
		return nil, err
	}

	k := &BlockKind{
		ID:           kb.ID,
		Label:        kb.Label,
		Category:     category,
		Template:     kb.Template,
		Includes:     kb.Includes,
		Directive:    kb.Directive,
		RequiresLoop: kb.RequiresLoop,
		Terminator:   kb.Terminator,
		socketIndex:  make(map[string]int),
	}
	if k.Label == "" {
		k.Label = k.ID
	}

	if kb.Branch != nil && kb.Loop != nil {
		return nil, fmt.Errorf("kind declares both branch and loop shapes")
	}
	switch {
	case kb.Branch != nil:
		if category != CategoryControl {
			return nil, fmt.Errorf("branch shape requires category \"control\"")
		}
		k.Shape = ShapeBranch
		if len(kb.Branch.Arms) == 0 {
			return nil, fmt.Errorf("branch shape declares no arms")
		}
		for _, ab := range kb.Branch.Arms {
			if _, dup := k.ArmSpec(ab.Name); dup {
				return nil, fmt.Errorf("duplicate arm %q", ab.Name)
			}
			if ab.Name == PortNext || ab.Name == PortBody {
				return nil, fmt.Errorf("arm name %q collides with a reserved port", ab.Name)
			}
			k.Arms = append(k.Arms, Arm{Name: ab.Name, Required: ab.Required})
		}
	case kb.Loop != nil:
		if category != CategoryControl {
			return nil, fmt.Errorf("loop shape requires category \"control\"")
		}
		k.Shape = ShapeLoop
		switch kb.Loop.Mode {
		case "pretest":
			k.Loop = LoopPretest
		case "posttest":
			k.Loop = LoopPosttest
		case "counted":
			k.Loop = LoopCounted
		default:
			return nil, fmt.Errorf("unknown loop mode %q", kb.Loop.Mode)
		}
	case category == CategoryExpression:
		k.Shape = ShapeNone
	case category == CategoryControl:
		return nil, fmt.Errorf("control kind must declare a branch or loop block")
	default:
		k.Shape = ShapeLinear
	}

	for _, sb := range kb.Sockets {
		sock, err := buildSocket(sb)
		if err != nil {
			return nil, fmt.Errorf("socket %q: %w", sb.Name, err)
		}
		if _, dup := k.socketIndex[sock.Name]; dup {
			return nil, fmt.Errorf("duplicate socket %q", sock.Name)
		}
		k.socketIndex[sock.Name] = len(k.sockets)
		k.sockets = append(k.sockets, sock)
	}

	if category == CategoryExpression && len(k.Outputs()) == 0 {
		return nil, fmt.Errorf("expression kind declares no output socket")
	}
	if category != CategoryExpression && len(k.Outputs()) > 0 {
		return nil, fmt.Errorf("only expression kinds may declare output sockets")
	}

	// Every template placeholder must name an input socket.
	for _, ref := range TemplateRefs(k.Template) {
		s, ok := k.Socket(ref)
		if !ok {
			return nil, fmt.Errorf("template references unknown socket %q", ref)
		}
		if s.Dir != DirIn {
			return nil, fmt.Errorf("template references output socket %q", ref)
		}
	}

	return k, nil
}

func buildSocket(sb *socketBlock) (Socket, error) {
	ty, err := ParseValueType(sb.Type)
	if err != nil {
		return Socket{}, err
	}

	sock := Socket{
		Name:     sb.Name,
		Type:     ty,
		Raw:      sb.Raw,
		Optional: sb.Optional,
		Choices:  sb.Choices,
		Declares: sb.Declares,
		Default:  cty.NilVal,
	}

	switch sb.Dir {
	case "", "in":
		sock.Dir = DirIn
	case "out":
		sock.Dir = DirOut
	default:
		return Socket{}, fmt.Errorf("unknown direction %q", sb.Dir)
	}

	if sock.Dir == DirOut {
		if sb.Default != nil || sb.Optional || sb.Raw || sb.Declares || len(sb.Choices) > 0 {
			return Socket{}, fmt.Errorf("output sockets carry a type and nothing else")
		}
		return sock, nil
	}

	if sock.Raw && ty != TypeString {
		return Socket{}, fmt.Errorf("raw sockets must have type \"string\"")
	}
	if sock.Declares && !sock.Raw {
		return Socket{}, fmt.Errorf("declaring sockets must be raw identifiers")
	}

	if sb.Default != nil && !sb.Default.IsNull() {
		want := ty.CtyType()
		val := *sb.Default
		if want != cty.DynamicPseudoType {
			converted, err := convert.Convert(val, want)
			if err != nil {
				return Socket{}, fmt.Errorf("default is not a %s: %w", ty, err)
			}
			val = converted
		}
		if len(sock.Choices) > 0 {
			if val.Type() != cty.String || !slices.Contains(sock.Choices, val.AsString()) {
				return Socket{}, fmt.Errorf("default is not one of the declared choices")
			}
		}
		sock.Default = val
		// A valid default makes the socket optional by definition.
		sock.Optional = true
	}

	return sock, nil
}

func parseCategory(s string) (Category, error) {
	switch s {
	case "statement":
		return CategoryStatement, nil
	case "expression":
		return CategoryExpression, nil
	case "control":
		return CategoryControl, nil
	}
	return CategoryStatement, fmt.Errorf("unknown category %q", s)
}
