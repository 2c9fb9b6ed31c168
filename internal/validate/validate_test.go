package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/araknidgo/internal/catalog"
	"github.com/vk/araknidgo/internal/diag"
	"github.com/vk/araknidgo/internal/graph"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load(context.Background())
	require.NoError(t, err)
	return cat
}

func mustAdd(t *testing.T, g *graph.Graph, kind string, literals map[string]cty.Value) graph.BlockID {
	t.Helper()
	id, err := g.AddBlock(kind, literals)
	require.NoError(t, err)
	return id
}

func errorsAnchoredAt(diags diag.Diagnostics, anchor diag.Anchor) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, d := range diags.Errors() {
		if d.Anchor == anchor {
			out = append(out, d)
		}
	}
	return out
}

func TestValidateHelloWorld(t *testing.T) {
	g := graph.New(testCatalog(t))
	hello := mustAdd(t, g, "print_str", map[string]cty.Value{"text": cty.StringVal("Hello, World!")})
	require.NoError(t, g.SetEntry(hello))

	validated, diags := Validate(context.Background(), g.Snapshot())
	require.NotNil(t, validated)
	assert.False(t, diags.HasErrors())
	assert.Empty(t, diags)
	assert.True(t, validated.Reachable(hello))
}

func TestValidateEmptyGraph(t *testing.T) {
	g := graph.New(testCatalog(t))
	validated, diags := Validate(context.Background(), g.Snapshot())
	require.NotNil(t, validated)
	assert.Empty(t, diags)
}

func TestValidateNoEntry(t *testing.T) {
	g := graph.New(testCatalog(t))
	mustAdd(t, g, "newline", nil)

	validated, diags := Validate(context.Background(), g.Snapshot())
	assert.Nil(t, validated)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "graph has no entry block")
}

func TestValidateExpressionEntry(t *testing.T) {
	g := graph.New(testCatalog(t))
	lit := mustAdd(t, g, "literal", map[string]cty.Value{"value": cty.NumberIntVal(1)})
	require.NoError(t, g.SetEntry(lit))

	validated, diags := Validate(context.Background(), g.Snapshot())
	assert.Nil(t, validated)
	assert.Contains(t, diags.Error(), "is an expression, not a statement")
}

func TestValidateTypeMismatchAnchoredAtDestination(t *testing.T) {
	g := graph.New(testCatalog(t))
	// cmp_op.out is bool; print_str.text wants string. One error, anchored
	// at the destination socket, while the rest of the graph still reports
	// its own problems in the same batch.
	cmp := mustAdd(t, g, "cmp_op", map[string]cty.Value{
		"left":  cty.NumberIntVal(1),
		"right": cty.NumberIntVal(2),
	})
	show := mustAdd(t, g, "print_str", nil)
	other := mustAdd(t, g, "print", nil) // missing format and value
	require.NoError(t, g.ConnectData(cmp, "out", show, "text"))
	require.NoError(t, g.ConnectControl(show, "next", other))
	require.NoError(t, g.SetEntry(show))

	validated, diags := Validate(context.Background(), g.Snapshot())
	assert.Nil(t, validated)

	mismatches := errorsAnchoredAt(diags, diag.Anchor{Block: show, Socket: "text"})
	require.Len(t, mismatches, 1)
	assert.Contains(t, mismatches[0].Message, "type mismatch")

	// The unrelated missing inputs are reported in the same batch.
	assert.NotEmpty(t, errorsAnchoredAt(diags, diag.Anchor{Block: other, Socket: "format"}))
	assert.NotEmpty(t, errorsAnchoredAt(diags, diag.Anchor{Block: other, Socket: "value"}))
}

func TestValidateLiterals(t *testing.T) {
	cat := testCatalog(t)

	t.Run("int literal must be whole", func(t *testing.T) {
		g := graph.New(cat)
		arr := mustAdd(t, g, "array_decl", map[string]cty.Value{
			"name": cty.StringVal("xs"),
			"size": cty.NumberFloatVal(2.5),
		})
		require.NoError(t, g.SetEntry(arr))

		_, diags := Validate(context.Background(), g.Snapshot())
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags.Error(), "not a whole number")
	})

	t.Run("char literal must be one character", func(t *testing.T) {
		// No builtin kind has a char-typed input, so use a minimal catalog.
		dir := t.TempDir()
		manifest := `
kind "put_char" {
  category = "statement"
  template = "putchar($${ch});"

  socket "ch" {
    type = "char"
  }
}
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, "kinds.hcl"), []byte(manifest), 0o644))
		charCat, err := catalog.LoadDir(context.Background(), dir)
		require.NoError(t, err)

		g := graph.New(charCat)
		pc := mustAdd(t, g, "put_char", map[string]cty.Value{"ch": cty.StringVal("ok")})
		require.NoError(t, g.SetEntry(pc))

		_, diags := Validate(context.Background(), g.Snapshot())
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags.Error(), "exactly one character")

		require.NoError(t, g.SetLiteral(pc, "ch", cty.StringVal("k")))
		validated, diags := Validate(context.Background(), g.Snapshot())
		require.NotNil(t, validated, "diagnostics: %v", diags)
	})

	t.Run("choices are enforced", func(t *testing.T) {
		g := graph.New(cat)
		inc := mustAdd(t, g, "inc_dec", map[string]cty.Value{
			"name": cty.StringVal("x"),
			"op":   cty.StringVal("**"),
		})
		require.NoError(t, g.SetEntry(inc))

		_, diags := Validate(context.Background(), g.Snapshot())
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags.Error(), "must be one of")
	})

	t.Run("declared names must be identifiers", func(t *testing.T) {
		g := graph.New(cat)
		decl := mustAdd(t, g, "var_decl", map[string]cty.Value{
			"name": cty.StringVal("1bad"),
		})
		require.NoError(t, g.SetEntry(decl))

		_, diags := Validate(context.Background(), g.Snapshot())
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags.Error(), "valid C identifier")
	})
}

func TestValidateControlCycle(t *testing.T) {
	g := graph.New(testCatalog(t))
	a := mustAdd(t, g, "newline", nil)
	b := mustAdd(t, g, "newline", nil)
	require.NoError(t, g.ConnectControl(a, "next", b))
	require.NoError(t, g.ConnectControl(b, "next", a))
	require.NoError(t, g.SetEntry(a))

	validated, diags := Validate(context.Background(), g.Snapshot())
	assert.Nil(t, validated)
	assert.Contains(t, diags.Error(), "non-loop control chain forms a cycle")
}

func TestValidateLoopBackEdge(t *testing.T) {
	// body -> statement -> back to the loop block is the legal way for a
	// body chain to end; it must not be reported as a cycle.
	g := graph.New(testCatalog(t))
	loop := mustAdd(t, g, "while", map[string]cty.Value{"cond": cty.True})
	body := mustAdd(t, g, "newline", nil)
	require.NoError(t, g.ConnectControl(loop, "body", body))
	require.NoError(t, g.ConnectControl(body, "next", loop))
	require.NoError(t, g.SetEntry(loop))

	validated, diags := Validate(context.Background(), g.Snapshot())
	require.NotNil(t, validated, "diagnostics: %v", diags)
	assert.False(t, diags.HasErrors())
}

func TestValidateLoopEnteredFromPredecessor(t *testing.T) {
	// A loop reached from a preceding statement has two incoming control
	// edges: the real predecessor and its body's back edge. Only the former
	// counts toward the single-predecessor rule.
	g := graph.New(testCatalog(t))
	before := mustAdd(t, g, "newline", nil)
	loop := mustAdd(t, g, "while", map[string]cty.Value{"cond": cty.True})
	body := mustAdd(t, g, "newline", nil)
	require.NoError(t, g.ConnectControl(before, "next", loop))
	require.NoError(t, g.ConnectControl(loop, "body", body))
	require.NoError(t, g.ConnectControl(body, "next", loop))
	require.NoError(t, g.SetEntry(before))

	validated, diags := Validate(context.Background(), g.Snapshot())
	require.NotNil(t, validated, "diagnostics: %v", diags)
	assert.False(t, diags.HasErrors())
}

func TestValidateRequiredArm(t *testing.T) {
	g := graph.New(testCatalog(t))
	cond := mustAdd(t, g, "if", map[string]cty.Value{"cond": cty.True})
	require.NoError(t, g.SetEntry(cond))

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	hits := errorsAnchoredAt(diags, diag.Anchor{Block: cond, Port: "then"})
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Message, `required "then" arm is not connected`)
}

func TestValidateRequiredElseArm(t *testing.T) {
	// A branch kind whose else arm is mandatory, unlike the builtin if.
	dir := t.TempDir()
	manifest := `
kind "if_strict" {
  category = "control"
  template = "if ($${cond})"

  branch {
    arm "then" {
      required = true
    }
    arm "else" {
      required = true
    }
  }

  socket "cond" {
    type = "bool"
  }
}

kind "noop" {
  category = "statement"
  template = ";"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kinds.hcl"), []byte(manifest), 0o644))
	cat, err := catalog.LoadDir(context.Background(), dir)
	require.NoError(t, err)

	g := graph.New(cat)
	cond := mustAdd(t, g, "if_strict", map[string]cty.Value{"cond": cty.True})
	thenStmt := mustAdd(t, g, "noop", nil)
	require.NoError(t, g.ConnectControl(cond, "then", thenStmt))
	require.NoError(t, g.SetEntry(cond))

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	hits := errorsAnchoredAt(diags, diag.Anchor{Block: cond, Port: "else"})
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Message, `required "else" arm is not connected`)
}

func TestValidateBreakOutsideLoop(t *testing.T) {
	g := graph.New(testCatalog(t))
	brk := mustAdd(t, g, "break", nil)
	require.NoError(t, g.SetEntry(brk))

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "only allowed inside a loop body")

	t.Run("break inside a loop body is fine", func(t *testing.T) {
		g := graph.New(testCatalog(t))
		loop := mustAdd(t, g, "while", map[string]cty.Value{"cond": cty.True})
		brk := mustAdd(t, g, "break", nil)
		require.NoError(t, g.ConnectControl(loop, "body", brk))
		require.NoError(t, g.SetEntry(loop))

		validated, diags := Validate(context.Background(), g.Snapshot())
		require.NotNil(t, validated, "diagnostics: %v", diags)
	})
}

func TestValidateMultiplePredecessors(t *testing.T) {
	g := graph.New(testCatalog(t))
	cond := mustAdd(t, g, "if", map[string]cty.Value{"cond": cty.True})
	thenStmt := mustAdd(t, g, "newline", nil)
	shared := mustAdd(t, g, "newline", nil)
	require.NoError(t, g.ConnectControl(cond, "then", thenStmt))
	require.NoError(t, g.ConnectControl(thenStmt, "next", shared))
	require.NoError(t, g.ConnectControl(cond, "next", shared))
	require.NoError(t, g.SetEntry(cond))

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "control predecessors")
}

func TestValidateControlTargetsExpression(t *testing.T) {
	g := graph.New(testCatalog(t))
	stmt := mustAdd(t, g, "newline", nil)
	require.NoError(t, g.SetEntry(stmt))

	// Expression kinds have no ports, so the graph layer already rejects
	// connecting control onto them; verify the mutation error here.
	lit := mustAdd(t, g, "literal", map[string]cty.Value{"value": cty.NumberIntVal(1)})
	err := g.ConnectControl(stmt, "next", lit)
	require.NoError(t, err, "targeting an expression is a validation concern, not a structural one")

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "cannot target expression block")
}

func TestValidateDataCycle(t *testing.T) {
	g := graph.New(testCatalog(t))
	a := mustAdd(t, g, "bin_op", nil)
	b := mustAdd(t, g, "bin_op", nil)
	require.NoError(t, g.ConnectData(a, "out", b, "left"))
	require.NoError(t, g.ConnectData(b, "out", a, "left"))
	show := mustAdd(t, g, "print", map[string]cty.Value{"format": cty.StringVal("%d")})
	require.NoError(t, g.ConnectData(a, "out", show, "value"))
	require.NoError(t, g.SetEntry(show))

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "data edges form a cycle")
}

func TestValidateUnreachableWarns(t *testing.T) {
	g := graph.New(testCatalog(t))
	hello := mustAdd(t, g, "print_str", map[string]cty.Value{"text": cty.StringVal("hi")})
	stray := mustAdd(t, g, "newline", nil)
	require.NoError(t, g.SetEntry(hello))

	validated, diags := Validate(context.Background(), g.Snapshot())
	require.NotNil(t, validated)
	assert.False(t, diags.HasErrors())
	require.Len(t, diags, 1)
	assert.Equal(t, diag.Warning, diags[0].Severity)
	assert.Equal(t, stray, diags[0].Anchor.Block)
	assert.False(t, validated.Reachable(stray))

	t.Run("incomplete unreachable blocks do not fail the build", func(t *testing.T) {
		g := graph.New(testCatalog(t))
		hello := mustAdd(t, g, "print_str", map[string]cty.Value{"text": cty.StringVal("hi")})
		mustAdd(t, g, "print", nil) // missing both inputs, but unreachable
		require.NoError(t, g.SetEntry(hello))

		validated, diags := Validate(context.Background(), g.Snapshot())
		require.NotNil(t, validated)
		assert.False(t, diags.HasErrors())
	})
}

func TestValidateDataClosureIsChecked(t *testing.T) {
	// An expression feeding a reachable block is itself checked for
	// completeness even though control never touches it.
	g := graph.New(testCatalog(t))
	op := mustAdd(t, g, "bin_op", nil) // left and right missing
	show := mustAdd(t, g, "print", map[string]cty.Value{"format": cty.StringVal("%d")})
	require.NoError(t, g.ConnectData(op, "out", show, "value"))
	require.NoError(t, g.SetEntry(show))

	_, diags := Validate(context.Background(), g.Snapshot())
	require.True(t, diags.HasErrors())
	assert.NotEmpty(t, errorsAnchoredAt(diags, diag.Anchor{Block: op, Socket: "left"}))
	assert.NotEmpty(t, errorsAnchoredAt(diags, diag.Anchor{Block: op, Socket: "right"}))
}
