package evaluator_test

import (
	"testing"

	"github.com/vpilat/openscad-eval/pkg/evaluator"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    evaluator.Value
		want bool
	}{
		{"false", evaluator.NewBool(false), false},
		{"true", evaluator.NewBool(true), true},
		{"zero", evaluator.NewNumber(0), false},
		{"nonzero", evaluator.NewNumber(-1), true},
		{"undefined", evaluator.NewUndefined(), false},
		{"empty string", evaluator.NewString(""), false},
		{"nonempty string", evaluator.NewString("x"), true},
		{"empty vector", evaluator.NewVector(nil), false},
		{"nonempty vector", evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(0)}), true},
		{"range is always true", evaluator.NewRange(0, 1, 0), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := evaluator.Truthy(c.v); got != c.want {
				t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
			}
		})
	}
}

func TestAddVariants(t *testing.T) {
	n := evaluator.Add(evaluator.NewNumber(1), evaluator.NewNumber(2)).(evaluator.Number)
	if n.V != 3 {
		t.Errorf("1+2 = %v, want 3", n.V)
	}
	s := evaluator.Add(evaluator.NewString("a"), evaluator.NewString("b")).(evaluator.String)
	if s.V != "ab" {
		t.Errorf(`"a"+"b" = %q, want "ab"`, s.V)
	}
	vec := evaluator.Add(
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(1), evaluator.NewNumber(2)}),
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(10), evaluator.NewNumber(20)}),
	).(evaluator.Vector)
	if vec.Items[0].(evaluator.Number).V != 11 || vec.Items[1].(evaluator.Number).V != 22 {
		t.Errorf("[1,2]+[10,20] = %v, want [11,22]", vec)
	}
	if _, ok := evaluator.Add(evaluator.NewNumber(1), evaluator.NewString("x")).(evaluator.Undefined); !ok {
		t.Error("number+string should be Undefined")
	}
	mismatched := evaluator.Add(
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(1)}),
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(1), evaluator.NewNumber(2)}),
	)
	if _, ok := mismatched.(evaluator.Undefined); !ok {
		t.Error("unequal-length vector addition should be Undefined")
	}
}

func TestMulShapes(t *testing.T) {
	scaled := evaluator.Mul(
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(1), evaluator.NewNumber(2)}),
		evaluator.NewNumber(3),
	).(evaluator.Vector)
	if scaled.Items[0].(evaluator.Number).V != 3 || scaled.Items[1].(evaluator.Number).V != 6 {
		t.Errorf("[1,2]*3 = %v, want [3,6]", scaled)
	}

	dot := evaluator.Mul(
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(1), evaluator.NewNumber(2)}),
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(3), evaluator.NewNumber(4)}),
	).(evaluator.Number)
	if dot.V != 11 {
		t.Errorf("[1,2]*[3,4] = %v, want 11", dot.V)
	}

	matrix := evaluator.NewVector([]evaluator.Value{
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(1), evaluator.NewNumber(0)}),
		evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(0), evaluator.NewNumber(1)}),
	})
	identityResult := evaluator.Mul(matrix, evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(5), evaluator.NewNumber(6)})).(evaluator.Vector)
	if identityResult.Items[0].(evaluator.Number).V != 5 || identityResult.Items[1].(evaluator.Number).V != 6 {
		t.Errorf("identity * [5,6] = %v, want [5,6]", identityResult)
	}
}

func TestComparisons(t *testing.T) {
	if !evaluator.Truthy(evaluator.Less(evaluator.NewNumber(1), evaluator.NewNumber(2))) {
		t.Error("1 < 2 should be true")
	}
	if !evaluator.Truthy(evaluator.Less(evaluator.NewString("a"), evaluator.NewString("b"))) {
		t.Error(`"a" < "b" should be true`)
	}
	if evaluator.Truthy(evaluator.Less(evaluator.NewUndefined(), evaluator.NewNumber(1))) {
		t.Error("undef < 1 should be false, not an error")
	}
}

func TestEqualityReflexiveUndefined(t *testing.T) {
	if !evaluator.Truthy(evaluator.Equal(evaluator.NewUndefined(), evaluator.NewUndefined())) {
		t.Error("undef == undef should be true")
	}
	if evaluator.Truthy(evaluator.Equal(evaluator.NewNumber(0), evaluator.NewBool(false))) {
		t.Error("0 == false should be false: different kinds never compare equal")
	}
}

func TestIndexVectorStringRange(t *testing.T) {
	vec := evaluator.NewVector([]evaluator.Value{evaluator.NewNumber(10), evaluator.NewNumber(20)})
	if got := evaluator.Index(vec, evaluator.NewNumber(1)).(evaluator.Number); got.V != 20 {
		t.Errorf("vec[1] = %v, want 20", got.V)
	}
	if _, ok := evaluator.Index(vec, evaluator.NewNumber(5)).(evaluator.Undefined); !ok {
		t.Error("out-of-range vector index should be Undefined")
	}
	if got := evaluator.Index(evaluator.NewString("hi"), evaluator.NewNumber(1)).(evaluator.String); got.V != "i" {
		t.Errorf(`"hi"[1] = %q, want "i"`, got.V)
	}
	r := evaluator.NewRange(1, 2, 10)
	if got := evaluator.Index(r, evaluator.NewNumber(2)).(evaluator.Number); got.V != 10 {
		t.Errorf("range[2] (end) = %v, want 10", got.V)
	}
	if _, ok := evaluator.Index(r, evaluator.NewNumber(3)).(evaluator.Undefined); !ok {
		t.Error("range[3] should be Undefined")
	}
}

func TestRangeCountAndValues(t *testing.T) {
	r := evaluator.NewRange(1, 1, 3).(evaluator.Range)
	if got := evaluator.RangeCount(r); got != 3 {
		t.Errorf("RangeCount([1:1:3]) = %d, want 3", got)
	}
	vals := evaluator.RangeValues(r)
	want := []float64{1, 2, 3}
	for i, w := range want {
		if vals[i] != w {
			t.Errorf("value %d: got %v, want %v", i, vals[i], w)
		}
	}
	zeroStep := evaluator.NewRange(0, 0, 5).(evaluator.Range)
	if got := evaluator.RangeCount(zeroStep); got != 0 {
		t.Errorf("zero-step range count = %d, want 0", got)
	}
}
