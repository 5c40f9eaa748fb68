package builtins

import (
	"strings"

	"github.com/vpilat/openscad-eval/pkg/evaluator"
)

func registerString(ev *evaluator.Evaluator) {
	ev.RegisterBuiltin("str", strFn)
	ev.RegisterBuiltin("chr", chrFn)
	ev.RegisterBuiltin("ord", ordFn)
}

func strFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	vals, err := argValues(ec)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, v := range vals {
		sb.WriteString(bareString(v))
	}
	return evaluator.NewString(sb.String()), nil
}

func chrFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	v, err := argValue(ec, 0)
	if err != nil {
		return nil, err
	}
	n, ok := asNumber(v)
	if !ok {
		return evaluator.NewUndefined(), nil
	}
	return evaluator.NewString(string(rune(int32(n)))), nil
}

func ordFn(ec *evaluator.EvalContext, ev *evaluator.Evaluator) (evaluator.Value, error) {
	v, err := argValue(ec, 0)
	if err != nil {
		return nil, err
	}
	s, ok := v.(evaluator.String)
	if !ok {
		return evaluator.NewUndefined(), nil
	}
	runes := []rune(s.V)
	if len(runes) == 0 {
		return evaluator.NewUndefined(), nil
	}
	return evaluator.NewNumber(float64(runes[0])), nil
}
