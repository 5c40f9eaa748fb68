package evaluator

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/vpilat/openscad-eval/pkg/ast"
	"github.com/vpilat/openscad-eval/pkg/diagnostics"
	"github.com/vpilat/openscad-eval/pkg/features"
	"github.com/vpilat/openscad-eval/pkg/formatter"
)

// Function is the shape every callable the evaluator can dispatch to
// implements, whether a Go-native builtin or a user-defined function's
// closure: given the call site's unevaluated arguments and the owning
// Evaluator, produce a Value or a fatal error.
type Function func(ec *EvalContext, ev *Evaluator) (Value, error)

// Evaluator owns everything a single evaluation run shares across every
// Context in its chain: the feature gate configuration, the diagnostic
// sink, the runaway-protection budget and its live stack counter, and the
// two function registries (user-defined, builtin) that a Context's
// delegated function-resolution capability ultimately reaches.
type Evaluator struct {
	features  features.Set
	sink      *diagnostics.Sink
	budget    Budget
	stack     *stackTracker
	functions map[string]Function
	builtins  map[string]Function
}

// New constructs an Evaluator for one top-level evaluation run. Every
// diagnostic it emits goes through sink, and is tagged with sink's own run
// ID — the Evaluator has no separate identity of its own.
func New(fset features.Set, sink *diagnostics.Sink, budget Budget) *Evaluator {
	return &Evaluator{
		features:  fset,
		sink:      sink,
		budget:    budget,
		stack:     newStackTracker(budget),
		functions: make(map[string]Function),
		builtins:  make(map[string]Function),
	}
}

// RunID returns the correlation ID every diagnostic this Evaluator emits is
// tagged with.
func (ev *Evaluator) RunID() string { return ev.sink.RunID() }

// Sink returns the diagnostic sink this Evaluator writes to.
func (ev *Evaluator) Sink() *diagnostics.Sink { return ev.sink }

// RegisterBuiltin installs a Go-native function under name, consulted when
// no user-defined function of that name exists.
func (ev *Evaluator) RegisterBuiltin(name string, fn Function) {
	ev.builtins[name] = fn
}

// DefineFunction installs a user-defined function: a declared parameter
// list, a body expression, and the Context it closes over lexically (the
// Context active at the point of definition, not the call site).
func (ev *Evaluator) DefineFunction(name string, params ast.AssignmentList, body ast.Expr, closure *Context) {
	uf := &userFunction{params: params, body: body, closure: closure}
	ev.functions[name] = uf.call
}

func (ev *Evaluator) resolveFunction(name string) (Function, bool) {
	if fn, ok := ev.functions[name]; ok {
		return fn, true
	}
	if fn, ok := ev.builtins[name]; ok {
		return fn, true
	}
	return nil, false
}

// Execute evaluates root as a fresh top-level program: a new root Context,
// a clean stack counter.
func (ev *Evaluator) Execute(root ast.Expr) (Value, error) {
	return ev.Eval(root, NewRootContext(ev))
}

// Eval dispatches e by its concrete AST type and returns its Value, or a
// fatal error (AssertionFailed, Recursion, ExperimentalFeatureDisabled)
// that must unwind past every enclosing Context. Non-fatal trouble
// (unbound lookups, unknown functions, mistyped operands) never produces
// an error here — it resolves to Undefined plus a diagnostic, per the
// propagation policy this evaluator implements.
func (ev *Evaluator) Eval(e ast.Expr, ctx *Context) (Value, error) {
	switch n := e.(type) {
	case *ast.UnaryOpExpr:
		return ev.evalUnaryOp(n, ctx)
	case *ast.BinaryOpExpr:
		return ev.evalBinaryOp(n, ctx)
	case *ast.TernaryOpExpr:
		return ev.evalTernaryOp(n, ctx)
	case *ast.ArrayLookupExpr:
		return ev.evalArrayLookup(n, ctx)
	case *ast.LiteralExpr:
		return ev.evalLiteral(n)
	case *ast.RangeExpr:
		return ev.evalRange(n, ctx)
	case *ast.VectorExpr:
		return ev.evalVector(n, ctx)
	case *ast.LookupExpr:
		return ctx.LookupVariable(n.Name, false), nil
	case *ast.MemberLookupExpr:
		return ev.evalMemberLookup(n, ctx)
	case *ast.FunctionCallExpr:
		return ev.evalFunctionCall(n, ctx)
	case *ast.AssertExpr:
		return ev.evalAssert(n, ctx)
	case *ast.EchoExpr:
		return ev.evalEcho(n, ctx)
	case *ast.LetExpr:
		return ev.evalLet(n, ctx)
	case *ast.LcIf:
		return ev.evalLcIf(n, ctx)
	case *ast.LcFor:
		return ev.evalLcFor(n, ctx)
	case *ast.LcForC:
		return ev.evalLcForC(n, ctx)
	case *ast.LcEach:
		return ev.evalLcEach(n, ctx)
	case *ast.LcLet:
		return ev.evalLcLet(n, ctx)
	default:
		return nil, errors.Errorf("evaluator: unhandled expression kind %q", e.Kind())
	}
}

func (ev *Evaluator) evalUnaryOp(n *ast.UnaryOpExpr, ctx *Context) (Value, error) {
	v, err := ev.Eval(n.Operand, ctx)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case ast.OpNot:
		return Not(v), nil
	case ast.OpNegate:
		return Negate(v), nil
	}
	return NewUndefined(), nil
}

func (ev *Evaluator) evalBinaryOp(n *ast.BinaryOpExpr, ctx *Context) (Value, error) {
	switch n.Op {
	case ast.OpAnd:
		l, err := ev.Eval(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		if !Truthy(l) {
			return NewBool(false), nil
		}
		r, err := ev.Eval(n.Right, ctx)
		if err != nil {
			return nil, err
		}
		return NewBool(Truthy(r)), nil
	case ast.OpOr:
		l, err := ev.Eval(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		if Truthy(l) {
			return NewBool(true), nil
		}
		r, err := ev.Eval(n.Right, ctx)
		if err != nil {
			return nil, err
		}
		return NewBool(Truthy(r)), nil
	default:
		l, err := ev.Eval(n.Left, ctx)
		if err != nil {
			return nil, err
		}
		r, err := ev.Eval(n.Right, ctx)
		if err != nil {
			return nil, err
		}
		return applyBinaryOp(n.Op, l, r), nil
	}
}

func applyBinaryOp(op ast.BinaryOp, l, r Value) Value {
	switch op {
	case ast.OpMul:
		return Mul(l, r)
	case ast.OpDiv:
		return Div(l, r)
	case ast.OpMod:
		return Mod(l, r)
	case ast.OpAdd:
		return Add(l, r)
	case ast.OpSub:
		return Sub(l, r)
	case ast.OpLt:
		return Less(l, r)
	case ast.OpLe:
		return LessEq(l, r)
	case ast.OpGt:
		return Greater(l, r)
	case ast.OpGe:
		return GreaterEq(l, r)
	case ast.OpEq:
		return Equal(l, r)
	case ast.OpNe:
		return NotEqual(l, r)
	}
	return NewUndefined()
}

func (ev *Evaluator) evalTernaryOp(n *ast.TernaryOpExpr, ctx *Context) (Value, error) {
	c, err := ev.Eval(n.Cond, ctx)
	if err != nil {
		return nil, err
	}
	if Truthy(c) {
		return ev.Eval(n.Then, ctx)
	}
	return ev.Eval(n.Else, ctx)
}

func (ev *Evaluator) evalArrayLookup(n *ast.ArrayLookupExpr, ctx *Context) (Value, error) {
	a, err := ev.Eval(n.Array, ctx)
	if err != nil {
		return nil, err
	}
	i, err := ev.Eval(n.Index, ctx)
	if err != nil {
		return nil, err
	}
	return Index(a, i), nil
}

func (ev *Evaluator) evalLiteral(n *ast.LiteralExpr) (Value, error) {
	if v, ok := n.Value.(Value); ok {
		return v, nil
	}
	return NewUndefined(), nil
}

func (ev *Evaluator) evalRange(n *ast.RangeExpr, ctx *Context) (Value, error) {
	b, err := ev.Eval(n.Begin, ctx)
	if err != nil {
		return nil, err
	}
	step := Value(Number{V: 1.0})
	if n.Step != nil {
		step, err = ev.Eval(n.Step, ctx)
		if err != nil {
			return nil, err
		}
	}
	end, err := ev.Eval(n.End, ctx)
	if err != nil {
		return nil, err
	}
	bn, ok1 := b.(Number)
	sn, ok2 := step.(Number)
	en, ok3 := end.(Number)
	if !ok1 || !ok2 || !ok3 {
		return NewUndefined(), nil
	}
	return NewRange(bn.V, sn.V, en.V), nil
}

func (ev *Evaluator) evalVector(n *ast.VectorExpr, ctx *Context) (Value, error) {
	var out []Value
	for _, c := range n.Children {
		v, err := ev.Eval(c, ctx)
		if err != nil {
			return nil, err
		}
		if ast.IsListComprehension(c) {
			if vec, ok := v.(Vector); ok {
				out = append(out, vec.Items...)
			}
			// A comprehension element that didn't produce a Vector splices
			// as empty, matching toVector() on a scalar in the language
			// this is modeled on.
		} else {
			out = append(out, v)
		}
	}
	return NewVector(out), nil
}

func (ev *Evaluator) evalMemberLookup(n *ast.MemberLookupExpr, ctx *Context) (Value, error) {
	v, err := ev.Eval(n.Target, ctx)
	if err != nil {
		return nil, err
	}
	return Member(v, n.Member), nil
}

func (ev *Evaluator) evalFunctionCall(n *ast.FunctionCallExpr, ctx *Context) (Value, error) {
	if !ev.stack.enter() {
		return nil, diagnostics.NewRecursion("function", n.Name)
	}
	defer ev.stack.exit()

	fn, ok := ev.resolveFunction(n.Name)
	if !ok {
		ev.warnUnknownFunction(n.Name)
		return NewUndefined(), nil
	}
	ec := NewEvalContext(ctx, n.Arguments)
	return fn(ec, ev)
}

func (ev *Evaluator) warnUnboundLookup(name string) {
	ev.sink.Warnf(diagnostics.ELookupWarning, nil, "ignoring unknown variable %q", name)
}

func (ev *Evaluator) warnUnknownFunction(name string) {
	ev.sink.Warnf(diagnostics.EUnknownFn, nil, "ignoring unknown function %q", name)
}

// evalResolvedArg evaluates a parameter's bound Expr (as resolved by
// EvalContext.ResolveArguments): in caller when it came from the call
// site, in owner (the callee's own Context) when it is the declared
// default — so a default expression can reference an earlier parameter,
// while a call-site expression still sees the caller's lexical scope.
func (ev *Evaluator) evalResolvedArg(expr ast.Expr, name string, fromCallSite map[string]bool, caller, owner *Context) (Value, error) {
	return ev.evalResolvedArgSilent(expr, name, fromCallSite, caller, owner, false)
}

// evalResolvedArgSilent is evalResolvedArg with control over whether a bare
// variable reference warns on a miss. Assert's optional message argument
// passes silent=true: a message that references an unbound variable is not
// itself cause for a second warning on top of the assertion failure it is
// explaining.
func (ev *Evaluator) evalResolvedArgSilent(expr ast.Expr, name string, fromCallSite map[string]bool, caller, owner *Context, silent bool) (Value, error) {
	if expr == nil {
		return NewUndefined(), nil
	}
	ctx := owner
	if fromCallSite[name] {
		ctx = caller
	}
	if lookup, ok := expr.(*ast.LookupExpr); ok {
		return ctx.LookupVariable(lookup.Name, silent), nil
	}
	return ev.Eval(expr, ctx)
}

// userFunction is a function defined in the language itself: a parameter
// list, a body expression, and the Context it closes over at the point of
// definition (so recursion and nested definitions resolve lexically, not
// dynamically, at the call site).
type userFunction struct {
	params  ast.AssignmentList
	body    ast.Expr
	closure *Context
}

func (uf *userFunction) call(ec *EvalContext, ev *Evaluator) (Value, error) {
	resolved, fromCallSite := ec.ResolveArguments(uf.params)
	child := uf.closure.Child()
	for _, p := range uf.params {
		v, err := ev.evalResolvedArg(resolved[p.Name], p.Name, fromCallSite, ec.Caller(), child)
		if err != nil {
			return nil, err
		}
		child.SetVariable(p.Name, v)
	}
	return ev.Eval(uf.body, child)
}

var assertParams = ast.AssignmentList{{Name: "condition"}, {Name: "message"}}

func (ev *Evaluator) evalAssert(n *ast.AssertExpr, ctx *Context) (Value, error) {
	if !ev.features.Enabled(features.AssertExpression) {
		return nil, diagnostics.NewExperimentalFeatureDisabled(string(features.AssertExpression))
	}
	ec := NewEvalContext(ctx, n.Arguments)
	resolved, fromCallSite := ec.ResolveArguments(assertParams)
	child := ctx.Child()

	condExpr := resolved["condition"]
	condVal, err := ev.evalResolvedArg(condExpr, "condition", fromCallSite, ctx, child)
	if err != nil {
		return nil, err
	}
	if !Truthy(condVal) {
		condSrc := ""
		if condExpr != nil {
			condSrc = formatter.FormatExpr(condExpr)
		}
		msg := fmt.Sprintf("ERROR: Assertion '%s' failed, line %d", condSrc, n.Loc.FirstLine)
		if msgExpr := resolved["message"]; msgExpr != nil {
			msgVal, err := ev.evalResolvedArgSilent(msgExpr, "message", fromCallSite, ctx, child, true)
			if err != nil {
				return nil, err
			}
			msg += ": " + stringOf(msgVal)
		}
		return nil, diagnostics.NewAssertionFailed(msg, n.Loc)
	}
	if n.Body != nil {
		return ev.Eval(n.Body, child)
	}
	return NewUndefined(), nil
}

func (ev *Evaluator) evalEcho(n *ast.EchoExpr, ctx *Context) (Value, error) {
	if !ev.features.Enabled(features.EchoExpression) {
		return nil, diagnostics.NewExperimentalFeatureDisabled(string(features.EchoExpression))
	}
	ec := NewEvalContext(ctx, n.Arguments)
	parts := make([]string, ec.NumArgs())
	for i := 0; i < ec.NumArgs(); i++ {
		v, err := ec.ArgValue(i, ctx)
		if err != nil {
			return nil, err
		}
		if name := ec.ArgName(i); name != "" {
			parts[i] = name + " = " + stringOf(v)
		} else {
			parts[i] = stringOf(v)
		}
	}
	ev.sink.Print(diagnostics.Echo, "", "ECHO: "+strings.Join(parts, ", "), &n.Loc)
	if n.Body != nil {
		return ev.Eval(n.Body, ctx)
	}
	return NewUndefined(), nil
}

func (ev *Evaluator) evalLet(n *ast.LetExpr, ctx *Context) (Value, error) {
	child := ctx.Child()
	ec := NewEvalContext(ctx, n.Arguments)
	if err := ec.AssignTo(child); err != nil {
		return nil, err
	}
	return ev.Eval(n.Body, child)
}

func (ev *Evaluator) evalLcLet(n *ast.LcLet, ctx *Context) (Value, error) {
	child := ctx.Child()
	ec := NewEvalContext(ctx, n.Arguments)
	if err := ec.AssignTo(child); err != nil {
		return nil, err
	}
	return ev.Eval(n.Body, child)
}

func (ev *Evaluator) evalLcIf(n *ast.LcIf, ctx *Context) (Value, error) {
	if n.Else != nil && !ev.features.Enabled(features.ElseExpression) {
		return nil, diagnostics.NewExperimentalFeatureDisabled(string(features.ElseExpression))
	}
	c, err := ev.Eval(n.Cond, ctx)
	if err != nil {
		return nil, err
	}
	if Truthy(c) {
		return ev.wrapComprehensionResult(n.Then, ctx)
	}
	if n.Else != nil {
		return ev.wrapComprehensionResult(n.Else, ctx)
	}
	return NewVector(nil), nil
}

// wrapComprehensionResult evaluates e and wraps it in a singleton Vector,
// unless e's own node is a ListComprehension, in which case its Vector
// result is already the right shape and is returned unwrapped.
func (ev *Evaluator) wrapComprehensionResult(e ast.Expr, ctx *Context) (Value, error) {
	v, err := ev.Eval(e, ctx)
	if err != nil {
		return nil, err
	}
	if ast.IsListComprehension(e) {
		return v, nil
	}
	return NewVector([]Value{v}), nil
}

func (ev *Evaluator) evalLcFor(n *ast.LcFor, ctx *Context) (Value, error) {
	binding := n.Arguments[0]
	iterVal, err := ev.Eval(binding.Expr, ctx)
	if err != nil {
		return nil, err
	}

	var out []Value
	switch iv := iterVal.(type) {
	case Range:
		count := RangeCount(iv)
		if count >= ev.budget.maxIterations() {
			ev.sink.WarnCount(diagnostics.ERangeCap, &n.Loc, "for loop range exceeds the iteration cap", count)
			return NewVector(nil), nil
		}
		for _, x := range RangeValues(iv) {
			v, err := ev.runLcForBody(n, ctx, binding.Name, NewNumber(x))
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	case Vector:
		for _, item := range iv.Items {
			v, err := ev.runLcForBody(n, ctx, binding.Name, item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	case Undefined:
		// skip entirely
	default:
		v, err := ev.runLcForBody(n, ctx, binding.Name, iterVal)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	if ast.IsListComprehension(n.Body) {
		return flattenOneLevel(out), nil
	}
	return NewVector(out), nil
}

func (ev *Evaluator) runLcForBody(n *ast.LcFor, ctx *Context, name string, bound Value) (Value, error) {
	child := ctx.Child()
	child.SetVariable(name, bound)
	return ev.Eval(n.Body, child)
}

func (ev *Evaluator) evalLcForC(n *ast.LcForC, ctx *Context) (Value, error) {
	if !ev.features.Enabled(features.ForCExpression) {
		return nil, diagnostics.NewExperimentalFeatureDisabled(string(features.ForCExpression))
	}

	loopCtx := ctx.Child()
	initEc := NewEvalContext(ctx, n.InitArgs)
	if err := initEc.AssignTo(loopCtx); err != nil {
		return nil, err
	}

	var out []Value
	iterations := 0
	for {
		condVal, err := ev.Eval(n.Cond, loopCtx)
		if err != nil {
			return nil, err
		}
		if !Truthy(condVal) {
			break
		}
		iterations++
		if iterations > ev.budget.maxIterations() {
			return nil, diagnostics.NewRecursion("for loop", "")
		}

		v, err := ev.Eval(n.Body, loopCtx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)

		incrCtx := loopCtx.Child()
		incrEc := NewEvalContext(loopCtx, n.IncrArgs)
		if err := incrEc.AssignTo(incrCtx); err != nil {
			return nil, err
		}
		loopCtx.ApplyVariables(incrCtx)
	}

	if ast.IsListComprehension(n.Body) {
		return flattenOneLevel(out), nil
	}
	return NewVector(out), nil
}

func (ev *Evaluator) evalLcEach(n *ast.LcEach, ctx *Context) (Value, error) {
	if !ev.features.Enabled(features.EachExpression) {
		return nil, diagnostics.NewExperimentalFeatureDisabled(string(features.EachExpression))
	}

	v, err := ev.Eval(n.Expr, ctx)
	if err != nil {
		return nil, err
	}

	var result Vector
	switch val := v.(type) {
	case Range:
		count := RangeCount(val)
		if count >= ev.budget.maxIterations() {
			ev.sink.WarnCount(diagnostics.ERangeCap, &n.Loc, "each over range exceeds the iteration cap", count)
			result = Vector{}
		} else {
			items := make([]Value, 0, count)
			for _, x := range RangeValues(val) {
				items = append(items, NewNumber(x))
			}
			result = Vector{Items: items}
		}
	case Vector:
		result = val
	case Undefined:
		result = Vector{}
	default:
		result = Vector{Items: []Value{v}}
	}

	if ast.IsListComprehension(n.Expr) {
		return flattenOneLevel(result.Items), nil
	}
	return result, nil
}

// flattenOneLevel concatenates one level of nesting. LcIf/LcFor/LcEach/LcLet
// normally guarantee their own result is a Vector, so a body that is itself
// a comprehension normally produces a Vector of Vectors here; an item that
// isn't a Vector splices as empty rather than panicking, matching
// toVector() on a scalar in the language this is modeled on.
func flattenOneLevel(items []Value) Value {
	var out []Value
	for _, item := range items {
		if vec, ok := item.(Vector); ok {
			out = append(out, vec.Items...)
		}
	}
	return NewVector(out)
}
