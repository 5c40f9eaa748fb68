// Package formatter pretty-prints expression AST nodes back to source
// text. The evaluator depends on it for exactly one thing: Assert's failure
// message embeds the literal source form of its condition expression. To
// keep that a one-way dependency (formatter -> ast only; no formatter ->
// evaluator -> formatter cycle), a Literal's stashed Value is rendered via
// the fmt.Stringer it already implements rather than a type switch on
// pkg/evaluator's concrete variants.
package formatter

import (
	"fmt"
	"strings"

	"github.com/vpilat/openscad-eval/pkg/ast"
)

var binaryPrecedence = map[ast.BinaryOp]int{
	ast.OpOr:  1,
	ast.OpAnd: 2,
	ast.OpEq:  3, ast.OpNe: 3,
	ast.OpLt: 4, ast.OpLe: 4, ast.OpGt: 4, ast.OpGe: 4,
	ast.OpAdd: 5, ast.OpSub: 5,
	ast.OpMul: 6, ast.OpDiv: 6, ast.OpMod: 6,
}

// FormatExpr renders e as source text.
func FormatExpr(e ast.Expr) string {
	var sb strings.Builder
	writeExpr(&sb, e, 0)
	return sb.String()
}

// FormatAssignments renders an AssignmentList the way the system this
// language is modeled on joins one for diagnostics: "name = expr" for
// named entries, the bare expression for positional ones, comma-joined.
// The pretty-printing of FunctionCall, Assert, Echo, Let and the
// comprehension forms uses this, rather than duplicating the join logic at
// each call site. Echo's runtime message does not: the evaluator joins the
// evaluated argument values itself.
func FormatAssignments(args ast.AssignmentList) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if a.Expr == nil {
			parts[i] = a.Name
			continue
		}
		if a.Name != "" {
			parts[i] = a.Name + " = " + FormatExpr(a.Expr)
		} else {
			parts[i] = FormatExpr(a.Expr)
		}
	}
	return strings.Join(parts, ", ")
}

func writeExpr(sb *strings.Builder, e ast.Expr, parentPrec int) {
	switch n := e.(type) {
	case *ast.UnaryOpExpr:
		sb.WriteString(n.Op.String())
		writeExpr(sb, n.Operand, 100)
	case *ast.BinaryOpExpr:
		prec := binaryPrecedence[n.Op]
		needParens := prec < parentPrec
		if needParens {
			sb.WriteByte('(')
		}
		writeExpr(sb, n.Left, prec)
		sb.WriteByte(' ')
		sb.WriteString(n.Op.String())
		sb.WriteByte(' ')
		writeExpr(sb, n.Right, prec+1)
		if needParens {
			sb.WriteByte(')')
		}
	case *ast.TernaryOpExpr:
		sb.WriteByte('(')
		writeExpr(sb, n.Cond, 0)
		sb.WriteString(" ? ")
		writeExpr(sb, n.Then, 0)
		sb.WriteString(" : ")
		writeExpr(sb, n.Else, 0)
		sb.WriteByte(')')
	case *ast.ArrayLookupExpr:
		writeExpr(sb, n.Array, 100)
		sb.WriteByte('[')
		writeExpr(sb, n.Index, 0)
		sb.WriteByte(']')
	case *ast.LiteralExpr:
		sb.WriteString(formatLiteralValue(n.Value))
	case *ast.RangeExpr:
		sb.WriteByte('[')
		writeExpr(sb, n.Begin, 0)
		sb.WriteByte(':')
		if n.Step != nil {
			writeExpr(sb, n.Step, 0)
			sb.WriteByte(':')
		}
		writeExpr(sb, n.End, 0)
		sb.WriteByte(']')
	case *ast.VectorExpr:
		sb.WriteByte('[')
		for i, c := range n.Children {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeExpr(sb, c, 0)
		}
		sb.WriteByte(']')
	case *ast.LookupExpr:
		sb.WriteString(n.Name)
	case *ast.MemberLookupExpr:
		writeExpr(sb, n.Target, 100)
		sb.WriteByte('.')
		sb.WriteString(n.Member)
	case *ast.FunctionCallExpr:
		sb.WriteString(n.Name)
		sb.WriteByte('(')
		sb.WriteString(FormatAssignments(n.Arguments))
		sb.WriteByte(')')
	case *ast.AssertExpr:
		sb.WriteString("assert(")
		sb.WriteString(FormatAssignments(n.Arguments))
		sb.WriteByte(')')
		if n.Body != nil {
			sb.WriteByte(' ')
			writeExpr(sb, n.Body, 0)
		}
	case *ast.EchoExpr:
		sb.WriteString("echo(")
		sb.WriteString(FormatAssignments(n.Arguments))
		sb.WriteByte(')')
		if n.Body != nil {
			sb.WriteByte(' ')
			writeExpr(sb, n.Body, 0)
		}
	case *ast.LetExpr:
		sb.WriteString("let(")
		sb.WriteString(FormatAssignments(n.Arguments))
		sb.WriteString(") ")
		writeExpr(sb, n.Body, 0)
	case *ast.LcIf:
		sb.WriteString("if(")
		writeExpr(sb, n.Cond, 0)
		sb.WriteString(") (")
		writeExpr(sb, n.Then, 0)
		sb.WriteByte(')')
		if n.Else != nil {
			sb.WriteString(" else (")
			writeExpr(sb, n.Else, 0)
			sb.WriteByte(')')
		}
	case *ast.LcFor:
		sb.WriteString("for(")
		sb.WriteString(FormatAssignments(n.Arguments))
		sb.WriteString(") (")
		writeExpr(sb, n.Body, 0)
		sb.WriteByte(')')
	case *ast.LcForC:
		sb.WriteString("for(")
		sb.WriteString(FormatAssignments(n.InitArgs))
		sb.WriteString("; ")
		writeExpr(sb, n.Cond, 0)
		sb.WriteString("; ")
		sb.WriteString(FormatAssignments(n.IncrArgs))
		sb.WriteString(") ")
		writeExpr(sb, n.Body, 0)
	case *ast.LcEach:
		sb.WriteString("each (")
		writeExpr(sb, n.Expr, 0)
		sb.WriteByte(')')
	case *ast.LcLet:
		sb.WriteString("let(")
		sb.WriteString(FormatAssignments(n.Arguments))
		sb.WriteString(") (")
		writeExpr(sb, n.Body, 0)
		sb.WriteByte(')')
	default:
		sb.WriteString(fmt.Sprintf("<%s>", e.Kind()))
	}
}

// formatLiteralValue prints the evaluator.Value a LiteralExpr carries. The
// parser only ever stashes Bool/Number/String/Undefined there (Range and
// Vector values are built through their own AST nodes, never as a bare
// Literal), and every one of those implements String() the way source
// syntax expects (a quoted string, "true"/"false", "undef").
func formatLiteralValue(raw interface{}) string {
	if s, ok := raw.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", raw)
}
