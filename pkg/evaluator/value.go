// Package evaluator implements the expression evaluation core: the tagged
// Value lattice, the lexical Context chain, EvalContext argument resolution,
// and the tree-walking Evaluator dispatch over pkg/ast.
package evaluator

import (
	"math"
	"strconv"
	"strings"
)

// Value is the sealed interface for all runtime values. Only this package
// may implement it, so a type switch over Value is exhaustive by
// construction. Every Value is immutable after construction; compound
// Values (Vector) share their element storage by reference, never copying
// on read.
type Value interface {
	value() // sealed marker
}

// Undefined is the bottom value. Arithmetic and comparisons involving it
// yield Undefined (or false when a boolean is required), except equality,
// which is reflexive: Undefined == Undefined is true. This resolves the
// source ambiguity flagged around equality of two undefined values by
// picking reflexive equality and documenting it here, rather than silently
// carrying the inconsistency forward.
type Undefined struct{}

func (Undefined) value() {}

// Bool is a boolean value.
type Bool struct {
	V bool
}

func (Bool) value() {}

// Number is an IEEE-754 double.
type Number struct {
	V float64
}

func (Number) value() {}

// String is a UTF-8 string.
type String struct {
	V string
}

func (String) value() {}

// Vector is an ordered, immutable sequence of Values.
type Vector struct {
	Items []Value
}

func (Vector) value() {}

// Range is a begin/step/end triple of doubles. Step defaults to 1.0 when
// the source range literal omits it.
type Range struct {
	Begin float64
	Step  float64
	End   float64
}

func (Range) value() {}

// NewUndefined returns the shared Undefined value.
func NewUndefined() Value { return Undefined{} }

// NewBool constructs a Bool value.
func NewBool(b bool) Value { return Bool{V: b} }

// NewNumber constructs a Number value.
func NewNumber(n float64) Value { return Number{V: n} }

// NewString constructs a String value.
func NewString(s string) Value { return String{V: s} }

// NewVector constructs a Vector value. The slice is taken by reference: the
// caller must not mutate items after calling NewVector.
func NewVector(items []Value) Value { return Vector{Items: items} }

// NewRange constructs a Range value.
func NewRange(begin, step, end float64) Value { return Range{Begin: begin, Step: step, End: end} }

// Truthy implements boolean coercion: false, 0, Undefined, empty string and
// empty vector are false; everything else (including any Range) is true.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case Undefined:
		return false
	case Bool:
		return val.V
	case Number:
		return val.V != 0
	case String:
		return val.V != ""
	case Vector:
		return len(val.Items) != 0
	default:
		return true
	}
}

// numberOf returns (n, true) if v is a Number.
func numberOf(v Value) (float64, bool) {
	n, ok := v.(Number)
	return n.V, ok
}

// Not implements the unary `!` operator: coerce to boolean, then negate.
func Not(v Value) Value { return NewBool(!Truthy(v)) }

// Negate implements the unary `-` operator: negate numbers and vectors
// (elementwise). Anything else yields Undefined.
func Negate(v Value) Value {
	switch val := v.(type) {
	case Number:
		return NewNumber(-val.V)
	case Vector:
		out := make([]Value, len(val.Items))
		for i, item := range val.Items {
			out[i] = Negate(item)
		}
		return NewVector(out)
	default:
		return NewUndefined()
	}
}

// Add implements `+`: numeric addition; elementwise addition of
// equal-length vectors; string concatenation. Anything else is Undefined.
func Add(l, r Value) Value {
	if ln, ok := numberOf(l); ok {
		if rn, ok := numberOf(r); ok {
			return NewNumber(ln + rn)
		}
		return NewUndefined()
	}
	if lv, ok := l.(Vector); ok {
		if rv, ok := r.(Vector); ok {
			if len(lv.Items) != len(rv.Items) {
				return NewUndefined()
			}
			out := make([]Value, len(lv.Items))
			for i := range lv.Items {
				out[i] = Add(lv.Items[i], rv.Items[i])
			}
			return NewVector(out)
		}
		return NewUndefined()
	}
	if ls, ok := l.(String); ok {
		if rs, ok := r.(String); ok {
			return NewString(ls.V + rs.V)
		}
		return NewUndefined()
	}
	return NewUndefined()
}

// Sub implements `-`: numeric subtraction and elementwise vector
// subtraction of equal-length vectors.
func Sub(l, r Value) Value {
	if ln, ok := numberOf(l); ok {
		if rn, ok := numberOf(r); ok {
			return NewNumber(ln - rn)
		}
		return NewUndefined()
	}
	if lv, ok := l.(Vector); ok {
		if rv, ok := r.(Vector); ok {
			if len(lv.Items) != len(rv.Items) {
				return NewUndefined()
			}
			out := make([]Value, len(lv.Items))
			for i := range lv.Items {
				out[i] = Sub(lv.Items[i], rv.Items[i])
			}
			return NewVector(out)
		}
	}
	return NewUndefined()
}

// Mul implements `*`: numeric multiplication, vector*scalar scaling,
// vector*vector dot product (equal length), and matrix shapes (vector of
// vectors) against a vector or another matrix.
func Mul(l, r Value) Value {
	if ln, ok := numberOf(l); ok {
		if rn, ok := numberOf(r); ok {
			return NewNumber(ln * rn)
		}
		if rv, ok := r.(Vector); ok {
			return scaleVector(rv, ln)
		}
		return NewUndefined()
	}
	if lv, ok := l.(Vector); ok {
		if rn, ok := numberOf(r); ok {
			return scaleVector(lv, rn)
		}
		if rv, ok := r.(Vector); ok {
			if isMatrix(lv) {
				return mulMatrix(lv, rv)
			}
			if len(lv.Items) != len(rv.Items) {
				return NewUndefined()
			}
			sum := 0.0
			for i := range lv.Items {
				ln, ok1 := numberOf(lv.Items[i])
				rn, ok2 := numberOf(rv.Items[i])
				if !ok1 || !ok2 {
					return NewUndefined()
				}
				sum += ln * rn
			}
			return NewNumber(sum)
		}
	}
	return NewUndefined()
}

func scaleVector(v Vector, scalar float64) Value {
	out := make([]Value, len(v.Items))
	for i, item := range v.Items {
		n, ok := numberOf(item)
		if !ok {
			return NewUndefined()
		}
		out[i] = NewNumber(n * scalar)
	}
	return NewVector(out)
}

func isMatrix(v Vector) bool {
	if len(v.Items) == 0 {
		return false
	}
	for _, item := range v.Items {
		if _, ok := item.(Vector); !ok {
			return false
		}
	}
	return true
}

// mulMatrix handles matrix·vector and matrix·matrix, where a matrix is a
// Vector of row Vectors.
func mulMatrix(lv Vector, rv Vector) Value {
	rows := len(lv.Items)
	if rows == 0 {
		return NewUndefined()
	}
	firstRow, ok := lv.Items[0].(Vector)
	if !ok {
		return NewUndefined()
	}
	cols := len(firstRow.Items)

	if isMatrix(rv) {
		// matrix * matrix
		rCols := len(rv.Items)
		out := make([]Value, rows)
		for i := 0; i < rows; i++ {
			row, ok := lv.Items[i].(Vector)
			if !ok || len(row.Items) != rCols {
				return NewUndefined()
			}
			outRow := make([]Value, cols)
			for j := 0; j < cols; j++ {
				sum := 0.0
				for k := 0; k < rCols; k++ {
					rrow, ok := rv.Items[k].(Vector)
					if !ok || j >= len(rrow.Items) {
						return NewUndefined()
					}
					a, ok1 := numberOf(row.Items[k])
					b, ok2 := numberOf(rrow.Items[j])
					if !ok1 || !ok2 {
						return NewUndefined()
					}
					sum += a * b
				}
				outRow[j] = NewNumber(sum)
			}
			out[i] = NewVector(outRow)
		}
		return NewVector(out)
	}

	// matrix * vector
	if len(rv.Items) != cols {
		return NewUndefined()
	}
	out := make([]Value, rows)
	for i := 0; i < rows; i++ {
		row, ok := lv.Items[i].(Vector)
		if !ok || len(row.Items) != cols {
			return NewUndefined()
		}
		sum := 0.0
		for k := 0; k < cols; k++ {
			a, ok1 := numberOf(row.Items[k])
			b, ok2 := numberOf(rv.Items[k])
			if !ok1 || !ok2 {
				return NewUndefined()
			}
			sum += a * b
		}
		out[i] = NewNumber(sum)
	}
	return NewVector(out)
}

// Div implements `/`: numeric division only.
func Div(l, r Value) Value {
	ln, ok1 := numberOf(l)
	rn, ok2 := numberOf(r)
	if !ok1 || !ok2 {
		return NewUndefined()
	}
	return NewNumber(ln / rn)
}

// Mod implements `%`: numeric modulo only, using math.Mod (C fmod semantics).
func Mod(l, r Value) Value {
	ln, ok1 := numberOf(l)
	rn, ok2 := numberOf(r)
	if !ok1 || !ok2 {
		return NewUndefined()
	}
	return NewNumber(math.Mod(ln, rn))
}

// Less implements `<`: numeric or lexicographic; Bool(false) for any other
// pair of operands.
func Less(l, r Value) Value    { return orderCompare(l, r, func(c int) bool { return c < 0 }) }
func LessEq(l, r Value) Value  { return orderCompare(l, r, func(c int) bool { return c <= 0 }) }
func Greater(l, r Value) Value { return orderCompare(l, r, func(c int) bool { return c > 0 }) }
func GreaterEq(l, r Value) Value {
	return orderCompare(l, r, func(c int) bool { return c >= 0 })
}

func orderCompare(l, r Value, pred func(int) bool) Value {
	if ln, ok := numberOf(l); ok {
		if rn, ok := numberOf(r); ok {
			switch {
			case ln < rn:
				return NewBool(pred(-1))
			case ln > rn:
				return NewBool(pred(1))
			default:
				return NewBool(pred(0))
			}
		}
		return NewBool(false)
	}
	if ls, ok := l.(String); ok {
		if rs, ok := r.(String); ok {
			switch {
			case ls.V < rs.V:
				return NewBool(pred(-1))
			case ls.V > rs.V:
				return NewBool(pred(1))
			default:
				return NewBool(pred(0))
			}
		}
	}
	return NewBool(false)
}

// Equal implements `==`: structural equality. Undefined == Undefined is
// true; values of different kinds are unequal.
func Equal(l, r Value) Value {
	return NewBool(deepEqual(l, r))
}

// NotEqual implements `!=`.
func NotEqual(l, r Value) Value {
	return NewBool(!deepEqual(l, r))
}

func deepEqual(l, r Value) bool {
	switch lv := l.(type) {
	case Undefined:
		_, ok := r.(Undefined)
		return ok
	case Bool:
		rv, ok := r.(Bool)
		return ok && lv.V == rv.V
	case Number:
		rv, ok := r.(Number)
		return ok && lv.V == rv.V
	case String:
		rv, ok := r.(String)
		return ok && lv.V == rv.V
	case Range:
		rv, ok := r.(Range)
		return ok && lv.Begin == rv.Begin && lv.Step == rv.Step && lv.End == rv.End
	case Vector:
		rv, ok := r.(Vector)
		if !ok || len(lv.Items) != len(rv.Items) {
			return false
		}
		for i := range lv.Items {
			if !deepEqual(lv.Items[i], rv.Items[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Index implements `[i]`: on a Vector, integer-floor-truncated index,
// out-of-range yields Undefined; on a String, a single-character String; on
// a Range, index 0/1/2 yield begin/step/end.
func Index(container, index Value) Value {
	idxN, ok := numberOf(index)
	if !ok {
		return NewUndefined()
	}
	i := int(math.Floor(idxN))

	switch c := container.(type) {
	case Vector:
		if i < 0 || i >= len(c.Items) {
			return NewUndefined()
		}
		return c.Items[i]
	case String:
		runes := []rune(c.V)
		if i < 0 || i >= len(runes) {
			return NewUndefined()
		}
		return NewString(string(runes[i]))
	case Range:
		switch i {
		case 0:
			return NewNumber(c.Begin)
		case 1:
			return NewNumber(c.Step)
		case 2:
			return NewNumber(c.End)
		default:
			return NewUndefined()
		}
	default:
		return NewUndefined()
	}
}

// Member implements MemberLookup on Vector (x/y/z → index 0/1/2) and Range
// (begin/step/end → index 0/1/2). Anything else, or an unrecognized member
// name, yields Undefined.
func Member(v Value, name string) Value {
	switch val := v.(type) {
	case Vector:
		switch name {
		case "x":
			return Index(val, NewNumber(0))
		case "y":
			return Index(val, NewNumber(1))
		case "z":
			return Index(val, NewNumber(2))
		}
	case Range:
		switch name {
		case "begin":
			return NewNumber(val.Begin)
		case "step":
			return NewNumber(val.Step)
		case "end":
			return NewNumber(val.End)
		}
	}
	return NewUndefined()
}

// RangeCount returns the number of values RangeValues would yield, per
// OpenSCAD's `numValues`: zero for a zero or wrong-signed step, otherwise
// floor((end-begin)/step)+1 clamped at zero.
func RangeCount(r Range) int {
	if r.Step == 0 {
		return 0
	}
	n := (r.End - r.Begin) / r.Step
	if n < 0 {
		return 0
	}
	return int(math.Floor(n)) + 1
}

// RangeValues enumerates a Range's values in order. Callers that need to
// bound iteration (the 1,000,000 cap) must check RangeCount first.
func RangeValues(r Range) []float64 {
	count := RangeCount(r)
	out := make([]float64, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, r.Begin+float64(i)*r.Step)
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// String renders a Value the way Echo and the pretty-printer both need: a
// quoted string, a bracketed vector/range, or the bare literal token
// otherwise. Implementing fmt.Stringer here (rather than a free function in
// pkg/formatter) keeps pkg/formatter a one-way consumer of pkg/evaluator
// instead of the two packages needing each other.
func (Undefined) String() string { return "undef" }
func (b Bool) String() string {
	if b.V {
		return "true"
	}
	return "false"
}
func (n Number) String() string { return formatNumber(n.V) }
func (s String) String() string { return strconv.Quote(s.V) }
func (v Vector) String() string {
	parts := make([]string, len(v.Items))
	for i, item := range v.Items {
		parts[i] = stringOf(item)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (r Range) String() string {
	return "[" + formatNumber(r.Begin) + ":" + formatNumber(r.Step) + ":" + formatNumber(r.End) + "]"
}

// stringOf renders any Value, including ones outside this file's own
// variant set should the lattice ever grow.
func stringOf(v Value) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return "undef"
}

// TypeName returns a human-readable type name for diagnostics.
func TypeName(v Value) string {
	switch v.(type) {
	case Undefined:
		return "undef"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Vector:
		return "vector"
	case Range:
		return "range"
	default:
		return "unknown"
	}
}
