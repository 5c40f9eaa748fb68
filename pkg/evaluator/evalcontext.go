package evaluator

import "github.com/vpilat/openscad-eval/pkg/ast"

// EvalContext is the transient, call-site view of an AssignmentList prior
// to parameter binding. It is constructed at every call site (function
// call, assert, echo, let, loop) with the caller's Context and the
// argument AssignmentList, and exposes positional access plus the
// named/positional resolution algorithm used to bind a declared parameter
// list.
type EvalContext struct {
	caller *Context
	args   ast.AssignmentList
}

// NewEvalContext constructs an EvalContext over a call site's arguments.
func NewEvalContext(caller *Context, args ast.AssignmentList) *EvalContext {
	return &EvalContext{caller: caller, args: args}
}

// NumArgs returns the number of call-site arguments.
func (ec *EvalContext) NumArgs() int { return len(ec.args) }

// ArgName returns the i'th argument's name, empty if positional.
func (ec *EvalContext) ArgName(i int) string { return ec.args[i].Name }

// ArgExpr returns the i'th argument's expression, which may be nil.
func (ec *EvalContext) ArgExpr(i int) ast.Expr { return ec.args[i].Expr }

// ArgValue evaluates the i'th argument's expression in evalIn (typically
// the caller's Context) and returns its Value. An argument with no
// expression evaluates to Undefined.
func (ec *EvalContext) ArgValue(i int, evalIn *Context) (Value, error) {
	expr := ec.args[i].Expr
	if expr == nil {
		return NewUndefined(), nil
	}
	return evalIn.ev.Eval(expr, evalIn)
}

// Caller returns the Context the call-site arguments should be evaluated
// in when no other target Context is specified.
func (ec *EvalContext) Caller() *Context { return ec.caller }

// ResolveArguments matches call-site arguments against the callee's
// declared parameter list:
//  1. Walk call arguments in order.
//  2. If the argument is named and that name appears in parameterList,
//     bind it to that parameter.
//  3. Otherwise bind it positionally to the next unbound parameter (by
//     declared order).
//  4. Extra arguments are silently dropped; parameters left unbound fall
//     back to their declared default expression, or Undefined if none.
//
// The result maps parameter name to the call-site Expr chosen for it (the
// declared default when the call site supplied nothing), and fromCallSite
// reports, per parameter name, whether the chosen Expr came from the call
// site (and so must be evaluated in the caller's Context) as opposed to
// the declared default (evaluated in the callee's own Context, so a
// default may reference an earlier parameter).
func (ec *EvalContext) ResolveArguments(parameterList ast.AssignmentList) (bound map[string]ast.Expr, fromCallSite map[string]bool) {
	bound = make(map[string]ast.Expr, len(parameterList))
	fromCallSite = make(map[string]bool, len(parameterList))

	paramIndex := make(map[string]int, len(parameterList))
	for i, p := range parameterList {
		paramIndex[p.Name] = i
	}

	nextPositional := 0
	advancePositional := func() (string, bool) {
		for nextPositional < len(parameterList) {
			name := parameterList[nextPositional].Name
			nextPositional++
			if !fromCallSite[name] {
				return name, true
			}
		}
		return "", false
	}

	for i := 0; i < len(ec.args); i++ {
		name := ec.args[i].Name
		expr := ec.args[i].Expr
		if name != "" {
			if _, declared := paramIndex[name]; declared {
				bound[name] = expr
				fromCallSite[name] = true
				continue
			}
			// Named argument that matches no declared parameter: falls
			// through to positional binding below.
		}
		if pname, ok := advancePositional(); ok {
			bound[pname] = expr
			fromCallSite[pname] = true
		}
		// else: extra positional argument, silently dropped.
	}

	for _, p := range parameterList {
		if _, ok := bound[p.Name]; !ok {
			bound[p.Name] = p.Expr // declared default, possibly nil → Undefined
		}
	}
	return bound, fromCallSite
}

// AssignTo evaluates each call-site argument expression in sequence in
// target, binding the result under the argument's own name into target.
// Later assignments can reference earlier ones (sequential binding). This
// is used directly by Let/LcLet/LcForC's init and increment lists; it does
// not consult a parameter list.
func (ec *EvalContext) AssignTo(target *Context) error {
	for i := range ec.args {
		name := ec.args[i].Name
		if name == "" {
			continue
		}
		v, err := ec.ArgValue(i, target)
		if err != nil {
			return err
		}
		target.SetVariable(name, v)
	}
	return nil
}
