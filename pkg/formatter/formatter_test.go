package formatter_test

import (
	"testing"

	"github.com/vpilat/openscad-eval/pkg/ast"
	"github.com/vpilat/openscad-eval/pkg/evaluator"
	"github.com/vpilat/openscad-eval/pkg/formatter"
)

func TestFormatBinaryOpPrecedenceParens(t *testing.T) {
	// (1 + 2) * 3 needs parens around the addition; 1 + 2 * 3 does not.
	needsParens := &ast.BinaryOpExpr{
		Op:   ast.OpMul,
		Left: &ast.BinaryOpExpr{Op: ast.OpAdd, Left: lit(1), Right: lit(2)},
		Right: lit(3),
	}
	got := formatter.FormatExpr(needsParens)
	want := "(1 + 2) * 3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	noParensNeeded := &ast.BinaryOpExpr{
		Op:    ast.OpAdd,
		Left:  lit(1),
		Right: &ast.BinaryOpExpr{Op: ast.OpMul, Left: lit(2), Right: lit(3)},
	}
	got = formatter.FormatExpr(noParensNeeded)
	want = "1 + 2 * 3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatAssignmentsNamedAndPositional(t *testing.T) {
	args := ast.AssignmentList{
		{Expr: lit(1)},
		{Name: "b", Expr: lit(2)},
	}
	got := formatter.FormatAssignments(args)
	want := "1, b = 2"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatLiteralValues(t *testing.T) {
	cases := []struct {
		v    evaluator.Value
		want string
	}{
		{evaluator.NewBool(true), "true"},
		{evaluator.NewBool(false), "false"},
		{evaluator.NewNumber(3.5), "3.5"},
		{evaluator.NewString("hi"), `"hi"`},
		{evaluator.NewUndefined(), "undef"},
	}
	for _, c := range cases {
		got := formatter.FormatExpr(&ast.LiteralExpr{Value: c.v})
		if got != c.want {
			t.Errorf("FormatExpr(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func lit(n float64) ast.Expr {
	return &ast.LiteralExpr{Value: evaluator.NewNumber(n)}
}
