// Package builtins registers the Go-native functions an Evaluator can
// dispatch to: math, list, and string operations available to any
// expression without a corresponding user-defined function.
package builtins

import (
	"github.com/vpilat/openscad-eval/pkg/evaluator"
)

// Register installs every builtin this package provides into ev.
func Register(ev *evaluator.Evaluator) {
	registerMath(ev)
	registerList(ev)
	registerString(ev)
}

func argValue(ec *evaluator.EvalContext, i int) (evaluator.Value, error) {
	if i >= ec.NumArgs() {
		return evaluator.NewUndefined(), nil
	}
	return ec.ArgValue(i, ec.Caller())
}

func argValues(ec *evaluator.EvalContext) ([]evaluator.Value, error) {
	out := make([]evaluator.Value, ec.NumArgs())
	for i := range out {
		v, err := argValue(ec, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func asNumber(v evaluator.Value) (float64, bool) {
	n, ok := v.(evaluator.Number)
	if !ok {
		return 0, false
	}
	return n.V, true
}

// bareString renders a Value the way str() does: concatenated without the
// quotes around strings that fmt.Stringer's form carries.
func bareString(v evaluator.Value) string {
	if s, ok := v.(evaluator.String); ok {
		return s.V
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return "undef"
}
