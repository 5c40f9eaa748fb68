package evaluator_test

import (
	"strings"
	"testing"

	"github.com/vpilat/openscad-eval/pkg/ast"
	"github.com/vpilat/openscad-eval/pkg/diagnostics"
	"github.com/vpilat/openscad-eval/pkg/evaluator"
	"github.com/vpilat/openscad-eval/pkg/features"
)

func lit(v evaluator.Value) ast.Expr {
	return &ast.LiteralExpr{Value: v}
}

func num(n float64) ast.Expr { return lit(evaluator.NewNumber(n)) }

func run(t *testing.T, e ast.Expr, fset features.Set) (evaluator.Value, error) {
	t.Helper()
	sink := diagnostics.NewSink("test")
	ev := evaluator.New(fset, sink, evaluator.Budget{})
	return ev.Execute(e)
}

func mustEval(t *testing.T, e ast.Expr, fset features.Set) evaluator.Value {
	t.Helper()
	v, err := run(t, e, fset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 — precedence is the parser's job; this builds the AST the
	// parser would produce and confirms the evaluator's associativity.
	e := &ast.BinaryOpExpr{
		Op:   ast.OpAdd,
		Left: num(1),
		Right: &ast.BinaryOpExpr{
			Op:    ast.OpMul,
			Left:  num(2),
			Right: num(3),
		},
	}
	v := mustEval(t, e, features.None())
	n, ok := v.(evaluator.Number)
	if !ok || n.V != 7 {
		t.Fatalf("got %#v, want Number(7)", v)
	}
}

func TestForComprehensionSquares(t *testing.T) {
	// [for (i = [1:3]) i*i]
	lc := &ast.LcFor{
		Arguments: ast.AssignmentList{{Name: "i", Expr: &ast.RangeExpr{Begin: num(1), End: num(3)}}},
		Body: &ast.BinaryOpExpr{
			Op:    ast.OpMul,
			Left:  &ast.LookupExpr{Name: "i"},
			Right: &ast.LookupExpr{Name: "i"},
		},
	}
	vec := &ast.VectorExpr{Children: []ast.Expr{lc}}
	v := mustEval(t, vec, features.None())
	got := v.(evaluator.Vector)
	want := []float64{1, 4, 9}
	if len(got.Items) != len(want) {
		t.Fatalf("got %d items, want %d", len(got.Items), len(want))
	}
	for i, w := range want {
		if got.Items[i].(evaluator.Number).V != w {
			t.Errorf("item %d: got %v, want %v", i, got.Items[i], w)
		}
	}
}

func TestLetSequentiality(t *testing.T) {
	// let (a = 10, b = a + 1) [a, b]
	e := &ast.LetExpr{
		Arguments: ast.AssignmentList{
			{Name: "a", Expr: num(10)},
			{Name: "b", Expr: &ast.BinaryOpExpr{Op: ast.OpAdd, Left: &ast.LookupExpr{Name: "a"}, Right: num(1)}},
		},
		Body: &ast.VectorExpr{Children: []ast.Expr{&ast.LookupExpr{Name: "a"}, &ast.LookupExpr{Name: "b"}}},
	}
	v := mustEval(t, e, features.None())
	got := v.(evaluator.Vector)
	if got.Items[0].(evaluator.Number).V != 10 || got.Items[1].(evaluator.Number).V != 11 {
		t.Fatalf("got %v, want [10, 11]", got)
	}
}

func TestEachSplice(t *testing.T) {
	// [1, each [2, 3], 4] with each-expression enabled.
	vec := &ast.VectorExpr{Children: []ast.Expr{
		num(1),
		&ast.LcEach{Expr: &ast.VectorExpr{Children: []ast.Expr{num(2), num(3)}}},
		num(4),
	}}
	v := mustEval(t, vec, features.All())
	got := v.(evaluator.Vector)
	want := []float64{1, 2, 3, 4}
	if len(got.Items) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, w := range want {
		if got.Items[i].(evaluator.Number).V != w {
			t.Errorf("item %d: got %v, want %v", i, got.Items[i], w)
		}
	}
}

func TestEachDisabledByDefault(t *testing.T) {
	e := &ast.LcEach{Expr: &ast.VectorExpr{Children: []ast.Expr{num(1)}}}
	_, err := run(t, e, features.None())
	if err == nil {
		t.Fatal("expected an ExperimentalFeatureDisabled error")
	}
	if _, ok := diagnostics.Cause(err).(*diagnostics.ExperimentalFeatureDisabledError); !ok {
		t.Fatalf("got %T, want *ExperimentalFeatureDisabledError", diagnostics.Cause(err))
	}
}

func TestLcIfElseGatedByFeatureEvenOnTrueBranch(t *testing.T) {
	// [if (true) 1 else 2] with else-expression disabled must raise
	// ExperimentalFeatureDisabled even though the true branch is taken:
	// the presence of an else clause is what's gated, not which branch runs.
	e := &ast.LcIf{Cond: lit(evaluator.NewBool(true)), Then: num(1), Else: num(2)}
	_, err := run(t, e, features.None())
	if err == nil {
		t.Fatal("expected an ExperimentalFeatureDisabled error")
	}
	if _, ok := diagnostics.Cause(err).(*diagnostics.ExperimentalFeatureDisabledError); !ok {
		t.Fatalf("got %T, want *ExperimentalFeatureDisabledError", diagnostics.Cause(err))
	}
}

func TestLcIfWithoutElseIsUngated(t *testing.T) {
	e := &ast.LcIf{Cond: lit(evaluator.NewBool(true)), Then: num(1)}
	v := mustEval(t, e, features.None())
	got := v.(evaluator.Vector)
	if len(got.Items) != 1 || got.Items[0].(evaluator.Number).V != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}

func TestLcIfElseEnabledTakesTrueBranch(t *testing.T) {
	e := &ast.LcIf{Cond: lit(evaluator.NewBool(true)), Then: num(1), Else: num(2)}
	v := mustEval(t, e, features.All())
	got := v.(evaluator.Vector)
	if len(got.Items) != 1 || got.Items[0].(evaluator.Number).V != 1 {
		t.Fatalf("got %v, want [1]", got)
	}
}

func TestUndefinedArithmeticAndEquality(t *testing.T) {
	undef := &ast.LookupExpr{Name: "does_not_exist"}
	sumExpr := &ast.BinaryOpExpr{Op: ast.OpAdd, Left: undef, Right: num(1)}
	v := mustEval(t, sumExpr, features.None())
	if _, ok := v.(evaluator.Undefined); !ok {
		t.Fatalf("got %#v, want Undefined", v)
	}

	eqExpr := &ast.BinaryOpExpr{Op: ast.OpEq, Left: sumExpr, Right: &ast.LookupExpr{Name: "also_undefined"}}
	v = mustEval(t, eqExpr, features.None())
	b, ok := v.(evaluator.Bool)
	if !ok || !b.V {
		t.Fatalf("got %#v, want Bool(true)", v)
	}
}

func TestAssertFailureMessage(t *testing.T) {
	e := &ast.AssertExpr{
		Loc: ast.Location{FirstLine: 42},
		Arguments: ast.AssignmentList{
			{Expr: lit(evaluator.NewBool(false))},
			{Expr: lit(evaluator.NewString("nope"))},
		},
	}
	_, err := run(t, e, features.All())
	if err == nil {
		t.Fatal("expected an AssertionFailed error")
	}
	afErr, ok := diagnostics.Cause(err).(*diagnostics.AssertionFailedError)
	if !ok {
		t.Fatalf("got %T, want *AssertionFailedError", diagnostics.Cause(err))
	}
	if !strings.Contains(afErr.Message, "nope") {
		t.Errorf("message %q does not contain %q", afErr.Message, "nope")
	}
	if !strings.Contains(afErr.Message, "line 42") {
		t.Errorf("message %q does not contain line number", afErr.Message)
	}
}

func TestAssertGatedByFeature(t *testing.T) {
	e := &ast.AssertExpr{Arguments: ast.AssignmentList{{Expr: lit(evaluator.NewBool(false))}}}
	_, err := run(t, e, features.None())
	if _, ok := diagnostics.Cause(err).(*diagnostics.ExperimentalFeatureDisabledError); !ok {
		t.Fatalf("got %T, want *ExperimentalFeatureDisabledError", diagnostics.Cause(err))
	}
}

func TestVectorSpliceOfNonVectorComprehensionResultIsEmptyNotPanic(t *testing.T) {
	// A malformed *ast.LcLet with a scalar body should never occur once the
	// parser only ever builds LcLet for a comprehension-element body, but
	// the evaluator must not panic if one reaches it anyway: it splices as
	// empty, matching the reference language's toVector() on a scalar.
	vec := &ast.VectorExpr{Children: []ast.Expr{
		num(1),
		&ast.LcLet{Arguments: ast.AssignmentList{{Name: "a", Expr: num(1)}}, Body: &ast.LookupExpr{Name: "a"}},
		num(2),
	}}
	v := mustEval(t, vec, features.None())
	got := v.(evaluator.Vector)
	want := []float64{1, 2}
	if len(got.Items) != len(want) {
		t.Fatalf("got %v, want %v items from a scalar-bodied LcLet splicing empty", got, want)
	}
	for i, w := range want {
		if got.Items[i].(evaluator.Number).V != w {
			t.Errorf("item %d: got %v, want %v", i, got.Items[i], w)
		}
	}
}

func TestAssertMessageLookupMissIsSilent(t *testing.T) {
	// assert(false, undeclared_var) — the failed assertion already reports
	// trouble; the message's own unbound lookup should not add a second,
	// unrelated warning on top of it.
	e := &ast.AssertExpr{
		Arguments: ast.AssignmentList{
			{Expr: lit(evaluator.NewBool(false))},
			{Expr: &ast.LookupExpr{Name: "undeclared_var"}},
		},
	}
	sink := diagnostics.NewSink("test")
	ev := evaluator.New(features.All(), sink, evaluator.Budget{})
	_, err := ev.Execute(e)
	if err == nil {
		t.Fatal("expected an AssertionFailed error")
	}
	if _, ok := diagnostics.Cause(err).(*diagnostics.AssertionFailedError); !ok {
		t.Fatalf("got %T, want *AssertionFailedError", diagnostics.Cause(err))
	}
	if len(sink.Items()) != 0 {
		t.Errorf("got %d diagnostics, want 0 (message lookup must not warn)", len(sink.Items()))
	}
}

func TestForRangeBelowIterationCapCompletes(t *testing.T) {
	sink := diagnostics.NewSink("test")
	ev := evaluator.New(features.None(), sink, evaluator.Budget{MaxIterations: 5})
	lc := &ast.LcFor{
		Arguments: ast.AssignmentList{{Name: "i", Expr: &ast.RangeExpr{Begin: num(0), End: num(3)}}},
		Body:      &ast.LookupExpr{Name: "i"},
	}
	v, err := ev.Execute(lc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.(evaluator.Vector).Items) != 4 {
		t.Fatalf("got %v, want 4 items", v)
	}
}

func TestForRangeAtIterationCapWarnsAndYieldsEmpty(t *testing.T) {
	sink := diagnostics.NewSink("test")
	ev := evaluator.New(features.None(), sink, evaluator.Budget{MaxIterations: 5})
	lc := &ast.LcFor{
		Arguments: ast.AssignmentList{{Name: "i", Expr: &ast.RangeExpr{Begin: num(0), End: num(4)}}}, // 5 values
		Body:      &ast.LookupExpr{Name: "i"},
	}
	v, err := ev.Execute(lc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v.(evaluator.Vector).Items) != 0 {
		t.Fatalf("got %v, want an empty vector", v)
	}
	if len(sink.Items()) == 0 {
		t.Fatal("expected a warning diagnostic")
	}
}

func TestRecursiveFunctionExceedsStackDepth(t *testing.T) {
	sink := diagnostics.NewSink("test")
	ev := evaluator.New(features.None(), sink, evaluator.Budget{MaxFunctionDepth: 8})
	root := evaluator.NewRootContext(ev)
	// f() = f() — recurses forever; only the stack-depth sentinel stops it.
	ev.DefineFunction("f", nil, &ast.FunctionCallExpr{Name: "f"}, root)
	_, err := ev.Eval(&ast.FunctionCallExpr{Name: "f"}, root)
	if err == nil {
		t.Fatal("expected a Recursion error")
	}
	if _, ok := diagnostics.Cause(err).(*diagnostics.RecursionError); !ok {
		t.Fatalf("got %T, want *RecursionError", diagnostics.Cause(err))
	}
}

func TestMemberLookupOutOfRange(t *testing.T) {
	e := &ast.MemberLookupExpr{
		Target: &ast.VectorExpr{Children: []ast.Expr{num(1), num(2)}},
		Member: "z",
	}
	v := mustEval(t, e, features.None())
	if _, ok := v.(evaluator.Undefined); !ok {
		t.Fatalf("got %#v, want Undefined", v)
	}
}

func TestShortCircuitAnd(t *testing.T) {
	sink := diagnostics.NewSink("test")
	ev := evaluator.New(features.All(), sink, evaluator.Budget{})
	// false && echo(...) — the right side must never be evaluated, so no
	// ECHO diagnostic is emitted.
	e := &ast.BinaryOpExpr{
		Op:   ast.OpAnd,
		Left: lit(evaluator.NewBool(false)),
		Right: &ast.EchoExpr{
			Arguments: ast.AssignmentList{{Expr: lit(evaluator.NewString("should not run"))}},
		},
	}
	v, err := ev.Execute(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b, ok := v.(evaluator.Bool); !ok || b.V {
		t.Fatalf("got %#v, want Bool(false)", v)
	}
	if len(sink.Items()) != 0 {
		t.Fatalf("right operand was evaluated: got diagnostics %v", sink.Items())
	}
}
