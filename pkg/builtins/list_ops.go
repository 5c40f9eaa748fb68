package builtins

import (
	"sort"

	"github.com/vpilat/openscad-eval/pkg/evaluator"
)

func registerList(ev *evaluator.Evaluator) {
	ev.RegisterBuiltin("len", lenFn)
	ev.RegisterBuiltin("concat", concatFn)
	ev.RegisterBuiltin("sort", sortFn)
}

func lenFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	v, err := argValue(ec, 0)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case evaluator.Vector:
		return evaluator.NewNumber(float64(len(x.Items))), nil
	case evaluator.String:
		return evaluator.NewNumber(float64(len([]rune(x.V)))), nil
	case evaluator.Range:
		return evaluator.NewNumber(float64(evaluator.RangeCount(x))), nil
	default:
		return evaluator.NewUndefined(), nil
	}
}

// concatFn flattens any Vector arguments one level and appends every other
// argument as a single element, matching the language's concat semantics.
func concatFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	vals, err := argValues(ec)
	if err != nil {
		return nil, err
	}
	var out []evaluator.Value
	for _, v := range vals {
		if vec, ok := v.(evaluator.Vector); ok {
			out = append(out, vec.Items...)
			continue
		}
		out = append(out, v)
	}
	return evaluator.NewVector(out), nil
}

func sortFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	v, err := argValue(ec, 0)
	if err != nil {
		return nil, err
	}
	vec, ok := v.(evaluator.Vector)
	if !ok {
		return evaluator.NewUndefined(), nil
	}
	items := make([]evaluator.Value, len(vec.Items))
	copy(items, vec.Items)
	sort.SliceStable(items, func(i, j int) bool {
		return evaluator.Truthy(evaluator.Less(items[i], items[j]))
	})
	return evaluator.NewVector(items), nil
}
