package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kinds.hcl"), []byte(content), 0o644))
	return dir
}

func TestLoadBuiltin(t *testing.T) {
	cat, err := Load(context.Background())
	require.NoError(t, err)

	for _, id := range []string{
		"print", "print_str", "newline", "scan",
		"var_decl", "var_init", "array_decl", "assign", "array_set", "inc_dec",
		"if", "while", "do_while", "for", "break", "continue",
		"func_call", "return", "include",
		"literal", "var_ref", "array_get", "bin_op", "cmp_op", "logic_op", "not_op", "ternary",
	} {
		assert.True(t, cat.Has(id), "builtin kind %q missing", id)
	}

	_, err = cat.Lookup("no_such_kind")
	var unknownErr *UnknownKindError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "no_such_kind", unknownErr.ID)
}

func TestBuiltinShapes(t *testing.T) {
	cat, err := Load(context.Background())
	require.NoError(t, err)

	ifKind, err := cat.Lookup("if")
	require.NoError(t, err)
	assert.Equal(t, ShapeBranch, ifKind.Shape)
	require.Len(t, ifKind.Arms, 2)
	assert.Equal(t, Arm{Name: "then", Required: true}, ifKind.Arms[0])
	assert.Equal(t, Arm{Name: "else", Required: false}, ifKind.Arms[1])
	assert.Equal(t, []string{"then", "else", "next"}, ifKind.Ports())

	forKind, err := cat.Lookup("for")
	require.NoError(t, err)
	assert.Equal(t, ShapeLoop, forKind.Shape)
	assert.Equal(t, LoopCounted, forKind.Loop)
	assert.Equal(t, []string{"body", "next"}, forKind.Ports())

	doKind, err := cat.Lookup("do_while")
	require.NoError(t, err)
	assert.Equal(t, LoopPosttest, doKind.Loop)

	litKind, err := cat.Lookup("literal")
	require.NoError(t, err)
	assert.Equal(t, ShapeNone, litKind.Shape)
	assert.Empty(t, litKind.Ports())

	retKind, err := cat.Lookup("return")
	require.NoError(t, err)
	assert.True(t, retKind.Terminator)

	incKind, err := cat.Lookup("include")
	require.NoError(t, err)
	assert.True(t, incKind.Directive)

	brkKind, err := cat.Lookup("break")
	require.NoError(t, err)
	assert.True(t, brkKind.RequiresLoop)
}

func TestBuiltinSocketDefaults(t *testing.T) {
	cat, err := Load(context.Background())
	require.NoError(t, err)

	decl, err := cat.Lookup("var_decl")
	require.NoError(t, err)

	ctype, ok := decl.Socket("ctype")
	require.True(t, ok)
	assert.True(t, ctype.Raw)
	assert.True(t, ctype.Optional)
	assert.Equal(t, []string{"int", "float", "char", "double"}, ctype.Choices)
	require.True(t, ctype.HasDefault())
	assert.Equal(t, "int", ctype.Default.AsString())

	name, ok := decl.Socket("name")
	require.True(t, ok)
	assert.True(t, name.Declares)
	assert.False(t, name.Optional)

	forKind, err := cat.Lookup("for")
	require.NoError(t, err)
	from, ok := forKind.Socket("from")
	require.True(t, ok)
	require.True(t, from.HasDefault())
	assert.Equal(t, cty.Number, from.Default.Type())
}

func TestLoadExtraDir(t *testing.T) {
	dir := writeManifest(t, `
kind "beep" {
  category = "statement"
  template = "beep($${times});"

  socket "times" {
    type    = "int"
    default = 1
  }
}
`)
	cat, err := Load(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, cat.Has("beep"))
	assert.True(t, cat.Has("print"), "builtins still present")

	// The $${} escape in the manifest decodes to the literal placeholder.
	beep, err := cat.Lookup("beep")
	require.NoError(t, err)
	assert.Equal(t, "beep(${times});", beep.Template)
}

func TestLoadRejectsDuplicateKind(t *testing.T) {
	dir := writeManifest(t, `
kind "print" {
  category = "statement"
  template = "x;"
}
`)
	_, err := Load(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate block kind "print"`)
}

func TestLoadDirRejectsBadManifests(t *testing.T) {
	cases := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name: "template references unknown socket",
			manifest: `
kind "bad" {
  category = "statement"
  template = "$${nope};"
}
`,
			wantErr: `template references unknown socket "nope"`,
		},
		{
			name: "raw socket with non-string type",
			manifest: `
kind "bad" {
  category = "statement"
  template = "$${x};"

  socket "x" {
    type = "int"
    raw  = true
  }
}
`,
			wantErr: `raw sockets must have type "string"`,
		},
		{
			name: "control kind without shape",
			manifest: `
kind "bad" {
  category = "control"
  template = "x"
}
`,
			wantErr: "control kind must declare a branch or loop block",
		},
		{
			name: "expression kind without output",
			manifest: `
kind "bad" {
  category = "expression"
  template = "$${x}"

  socket "x" {
    type = "int"
  }
}
`,
			wantErr: "expression kind declares no output socket",
		},
		{
			name: "statement kind with output socket",
			manifest: `
kind "bad" {
  category = "statement"
  template = "x;"

  socket "out" {
    type = "int"
    dir  = "out"
  }
}
`,
			wantErr: "only expression kinds may declare output sockets",
		},
		{
			name: "default outside choices",
			manifest: `
kind "bad" {
  category = "statement"
  template = "$${op};"

  socket "op" {
    type    = "string"
    raw     = true
    choices = ["+", "-"]
    default = "*"
  }
}
`,
			wantErr: "default is not one of the declared choices",
		},
		{
			name: "arm name collides with reserved port",
			manifest: `
kind "bad" {
  category = "control"
  template = "x"

  branch {
    arm "next" {}
  }
}
`,
			wantErr: `arm name "next" collides with a reserved port`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeManifest(t, tc.manifest)
			_, err := LoadDir(context.Background(), dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestExpandTemplate(t *testing.T) {
	out, err := ExpandTemplate("printf(${format}, ${value});", func(name string) (string, error) {
		switch name {
		case "format":
			return `"%d\n"`, nil
		case "value":
			return "x", nil
		}
		t.Fatalf("unexpected placeholder %q", name)
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, `printf("%d\n", x);`, out)

	assert.Equal(t, []string{"format", "value"}, TemplateRefs("printf(${format}, ${value});"))
	assert.Empty(t, TemplateRefs("break;"))
}
