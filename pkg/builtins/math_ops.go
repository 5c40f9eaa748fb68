package builtins

import (
	"math"

	"github.com/vpilat/openscad-eval/pkg/evaluator"
)

func registerMath(ev *evaluator.Evaluator) {
	unary := map[string]func(float64) float64{
		"abs":   math.Abs,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"exp":   math.Exp,
		"ln":    math.Log,
		"log":   math.Log10,
		"sqrt":  math.Sqrt,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"round": math.Round,
		"sign":  sign,
	}
	for name, fn := range unary {
		ev.RegisterBuiltin(name, unaryMathFn(fn))
	}

	ev.RegisterBuiltin("pow", binaryMathFn(math.Pow))
	ev.RegisterBuiltin("atan2", binaryMathFn(math.Atan2))
	ev.RegisterBuiltin("min", reduceMathFn(math.Min, math.Inf(1)))
	ev.RegisterBuiltin("max", reduceMathFn(math.Max, math.Inf(-1)))
	ev.RegisterBuiltin("norm", normFn)
	ev.RegisterBuiltin("cross", crossFn)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}

func unaryMathFn(fn func(float64) float64) evaluator.Function {
	return func(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
		v, err := argValue(ec, 0)
		if err != nil {
			return nil, err
		}
		n, ok := asNumber(v)
		if !ok {
			return evaluator.NewUndefined(), nil
		}
		return evaluator.NewNumber(fn(n)), nil
	}
}

func binaryMathFn(fn func(float64, float64) float64) evaluator.Function {
	return func(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
		a, err := argValue(ec, 0)
		if err != nil {
			return nil, err
		}
		b, err := argValue(ec, 1)
		if err != nil {
			return nil, err
		}
		an, ok1 := asNumber(a)
		bn, ok2 := asNumber(b)
		if !ok1 || !ok2 {
			return evaluator.NewUndefined(), nil
		}
		return evaluator.NewNumber(fn(an, bn)), nil
	}
}

// reduceMathFn implements min/max: called with a single vector argument it
// reduces that vector's elements, otherwise it reduces its positional
// arguments directly.
func reduceMathFn(combine func(float64, float64) float64, identity float64) evaluator.Function {
	return func(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
		vals, err := argValues(ec)
		if err != nil {
			return nil, err
		}
		if len(vals) == 1 {
			if vec, ok := vals[0].(evaluator.Vector); ok {
				vals = vec.Items
			}
		}
		if len(vals) == 0 {
			return evaluator.NewUndefined(), nil
		}
		result := identity
		for _, v := range vals {
			n, ok := asNumber(v)
			if !ok {
				return evaluator.NewUndefined(), nil
			}
			result = combine(result, n)
		}
		return evaluator.NewNumber(result), nil
	}
}

func normFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	v, err := argValue(ec, 0)
	if err != nil {
		return nil, err
	}
	vec, ok := v.(evaluator.Vector)
	if !ok {
		return evaluator.NewUndefined(), nil
	}
	sum := 0.0
	for _, item := range vec.Items {
		n, ok := asNumber(item)
		if !ok {
			return evaluator.NewUndefined(), nil
		}
		sum += n * n
	}
	return evaluator.NewNumber(math.Sqrt(sum)), nil
}

func crossFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	a, err := argValue(ec, 0)
	if err != nil {
		return nil, err
	}
	b, err := argValue(ec, 1)
	if err != nil {
		return nil, err
	}
	av, ok1 := a.(evaluator.Vector)
	bv, ok2 := b.(evaluator.Vector)
	if !ok1 || !ok2 || len(av.Items) != 3 || len(bv.Items) != 3 {
		return evaluator.NewUndefined(), nil
	}
	a0, ok1 := asNumber(av.Items[0])
	a1, ok2 := asNumber(av.Items[1])
	a2, ok3 := asNumber(av.Items[2])
	b0, ok4 := asNumber(bv.Items[0])
	b1, ok5 := asNumber(bv.Items[1])
	b2, ok6 := asNumber(bv.Items[2])
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return evaluator.NewUndefined(), nil
	}
	return evaluator.NewVector([]evaluator.Value{
		evaluator.NewNumber(a1*b2 - a2*b1),
		evaluator.NewNumber(a2*b0 - a0*b2),
		evaluator.NewNumber(a0*b1 - a1*b0),
	}), nil
}
