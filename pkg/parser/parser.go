// Package parser builds the pkg/ast expression tree this evaluator walks,
// from the token stream pkg/lexer produces. It owns the FunctionCall
// rewrite decision (assert/echo/let) and the list-comprehension element
// grammar (for/each/let/if inside a vector literal).
package parser

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/vpilat/openscad-eval/pkg/ast"
	"github.com/vpilat/openscad-eval/pkg/evaluator"
	"github.com/vpilat/openscad-eval/pkg/features"
	"github.com/vpilat/openscad-eval/pkg/lexer"
)

// ParseError reports a syntax error at a token's source location.
type ParseError struct {
	Message string
	Loc     ast.Location
}

func (e *ParseError) Error() string { return e.Message }

type parser struct {
	tokens   []lexer.Token
	pos      int
	assertOK bool
	echoOK   bool
}

// Parse lexes and parses source into a single expression tree. fset governs
// whether bare calls to assert/echo reduce to their dedicated AST nodes.
func Parse(source string, fset features.Set) (ast.Expr, error) {
	toks, err := lexer.Tokenize(source)
	if err != nil {
		return nil, errors.Wrap(err, "parser: lex")
	}
	p := &parser{
		tokens:   toks,
		assertOK: fset.Enabled(features.AssertExpression),
		echoOK:   fset.Enabled(features.EchoExpression),
	}
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.check(lexer.TokEOF) {
		return nil, p.errorf("unexpected trailing input after expression")
	}
	return e, nil
}

func (p *parser) cur() lexer.Token             { return p.tokens[p.pos] }
func (p *parser) check(t lexer.TokenType) bool { return p.cur().Type == t }

func (p *parser) advance() lexer.Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(t lexer.TokenType, what string) (lexer.Token, error) {
	if !p.check(t) {
		return lexer.Token{}, p.errorf("expected %s", what)
	}
	return p.advance(), nil
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &ParseError{Message: errors.Errorf(format, args...).Error(), Loc: p.cur().Loc}
}

// --- expression grammar, lowest to highest precedence ---

func (p *parser) parseExpr() (ast.Expr, error) { return p.parseTernary() }

func (p *parser) parseTernary() (ast.Expr, error) {
	cond, err := p.parseLogicOr()
	if err != nil {
		return nil, err
	}
	if !p.check(lexer.TokQuestion) {
		return cond, nil
	}
	loc := p.advance().Loc
	then, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokColon, "':' in ternary expression"); err != nil {
		return nil, err
	}
	els, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ast.TernaryOpExpr{Loc: loc, Cond: cond, Then: then, Else: els}, nil
}

func (p *parser) parseLogicOr() (ast.Expr, error) {
	left, err := p.parseLogicAnd()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokOrOr) {
		loc := p.advance().Loc
		right, err := p.parseLogicAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOpExpr{Loc: loc, Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseLogicAnd() (ast.Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokAndAnd) {
		loc := p.advance().Loc
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOpExpr{Loc: loc, Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokEqEq) || p.check(lexer.TokBangEq) {
		op := ast.OpEq
		if p.check(lexer.TokBangEq) {
			op = ast.OpNe
		}
		loc := p.advance().Loc
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOpExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseRelational() (ast.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Type {
		case lexer.TokLt:
			op = ast.OpLt
		case lexer.TokLe:
			op = ast.OpLe
		case lexer.TokGt:
			op = ast.OpGt
		case lexer.TokGe:
			op = ast.OpGe
		default:
			return left, nil
		}
		loc := p.advance().Loc
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOpExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (ast.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.check(lexer.TokPlus) || p.check(lexer.TokMinus) {
		op := ast.OpAdd
		if p.check(lexer.TokMinus) {
			op = ast.OpSub
		}
		loc := p.advance().Loc
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOpExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		var op ast.BinaryOp
		switch p.cur().Type {
		case lexer.TokStar:
			op = ast.OpMul
		case lexer.TokSlash:
			op = ast.OpDiv
		case lexer.TokPercent:
			op = ast.OpMod
		default:
			return left, nil
		}
		loc := p.advance().Loc
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryOpExpr{Loc: loc, Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (ast.Expr, error) {
	if p.check(lexer.TokBang) {
		loc := p.advance().Loc
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOpExpr{Loc: loc, Op: ast.OpNot, Operand: operand}, nil
	}
	if p.check(lexer.TokMinus) {
		loc := p.advance().Loc
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryOpExpr{Loc: loc, Op: ast.OpNegate, Operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(lexer.TokLBracket):
			loc := p.advance().Loc
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokRBracket, "']'"); err != nil {
				return nil, err
			}
			e = &ast.ArrayLookupExpr{Loc: loc, Array: e, Index: idx}
		case p.check(lexer.TokDot):
			loc := p.advance().Loc
			name, err := p.expect(lexer.TokIdent, "member name after '.'")
			if err != nil {
				return nil, err
			}
			e = &ast.MemberLookupExpr{Loc: loc, Target: e, Member: name.Value}
		default:
			return e, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.TokNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, &ParseError{Message: "invalid number literal " + tok.Value, Loc: tok.Loc}
		}
		return &ast.LiteralExpr{Loc: tok.Loc, Value: evaluator.NewNumber(f)}, nil
	case lexer.TokString:
		p.advance()
		return &ast.LiteralExpr{Loc: tok.Loc, Value: evaluator.NewString(tok.Value)}, nil
	case lexer.TokTrue:
		p.advance()
		return &ast.LiteralExpr{Loc: tok.Loc, Value: evaluator.NewBool(true)}, nil
	case lexer.TokFalse:
		p.advance()
		return &ast.LiteralExpr{Loc: tok.Loc, Value: evaluator.NewBool(false)}, nil
	case lexer.TokUndef:
		p.advance()
		return &ast.LiteralExpr{Loc: tok.Loc, Value: evaluator.NewUndefined()}, nil
	case lexer.TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case lexer.TokLBracket:
		return p.parseBracketLiteral()
	case lexer.TokIdent, lexer.TokLet, lexer.TokAssert, lexer.TokEcho:
		return p.parseIdentOrCall()
	}
	return nil, p.errorf("unexpected token %q in expression", tok.Value)
}

func (p *parser) parseIdentOrCall() (ast.Expr, error) {
	nameTok := p.advance()
	name := nameTok.Value
	switch nameTok.Type {
	case lexer.TokLet:
		name = "let"
	case lexer.TokAssert:
		name = "assert"
	case lexer.TokEcho:
		name = "echo"
	}
	if !p.check(lexer.TokLParen) {
		return &ast.LookupExpr{Loc: nameTok.Loc, Name: name}, nil
	}
	p.advance()
	args, err := p.parseArgumentList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen, "')' after argument list"); err != nil {
		return nil, err
	}
	var body ast.Expr
	if p.startsExpr() {
		body, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if name == "let" && body == nil {
		return nil, &ParseError{Message: "let requires a body expression", Loc: nameTok.Loc}
	}
	return ast.NewFunctionCall(nameTok.Loc, name, args, body, p.assertOK, p.echoOK), nil
}

// startsExpr reports whether the current token can begin an expression,
// used to decide whether assert/echo/let have a trailing body.
func (p *parser) startsExpr() bool {
	switch p.cur().Type {
	case lexer.TokComma, lexer.TokRBracket, lexer.TokRParen, lexer.TokColon,
		lexer.TokSemi, lexer.TokEOF, lexer.TokElse:
		return false
	}
	return true
}

func (p *parser) parseArgumentList() (ast.AssignmentList, error) {
	var args ast.AssignmentList
	if p.check(lexer.TokRParen) {
		return args, nil
	}
	for {
		a, err := p.parseArgument()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.check(lexer.TokComma) {
			break
		}
		p.advance()
	}
	return args, nil
}

func (p *parser) parseArgument() (ast.Assignment, error) {
	loc := p.cur().Loc
	if p.check(lexer.TokIdent) && p.peekIsEquals() {
		name := p.advance().Value
		p.advance() // '='
		e, err := p.parseExpr()
		if err != nil {
			return ast.Assignment{}, err
		}
		return ast.Assignment{Loc: loc, Name: name, Expr: e}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return ast.Assignment{}, err
	}
	return ast.Assignment{Loc: loc, Expr: e}, nil
}

func (p *parser) peekIsEquals() bool {
	if p.pos+1 >= len(p.tokens) {
		return false
	}
	return p.tokens[p.pos+1].Type == lexer.TokEquals
}

// --- vectors, ranges, and list-comprehension elements ---

func (p *parser) parseBracketLiteral() (ast.Expr, error) {
	loc := p.advance().Loc // '['
	if p.check(lexer.TokRBracket) {
		p.advance()
		return &ast.VectorExpr{Loc: loc}, nil
	}

	first, err := p.parseVectorElement()
	if err != nil {
		return nil, err
	}

	if p.check(lexer.TokColon) {
		p.advance()
		second, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var step, end ast.Expr
		if p.check(lexer.TokColon) {
			p.advance()
			end, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
			step = second
		} else {
			end = second
		}
		if _, err := p.expect(lexer.TokRBracket, "']' closing range literal"); err != nil {
			return nil, err
		}
		return &ast.RangeExpr{Loc: loc, Begin: first, Step: step, End: end}, nil
	}

	children := []ast.Expr{first}
	for p.check(lexer.TokComma) {
		p.advance()
		el, err := p.parseVectorElement()
		if err != nil {
			return nil, err
		}
		children = append(children, el)
	}
	if _, err := p.expect(lexer.TokRBracket, "']' closing vector literal"); err != nil {
		return nil, err
	}
	return &ast.VectorExpr{Loc: loc, Children: children}, nil
}

// parseVectorElement parses one element of a vector literal, recognizing
// the four list-comprehension element forms (for, each, let, if) before
// falling back to an ordinary expression.
func (p *parser) parseVectorElement() (ast.Expr, error) {
	switch p.cur().Type {
	case lexer.TokFor:
		return p.parseForComprehension()
	case lexer.TokEach:
		loc := p.advance().Loc
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return &ast.LcEach{Loc: loc, Expr: e}, nil
	case lexer.TokLet:
		return p.parseLcLet()
	case lexer.TokIf:
		return p.parseLcIf()
	}
	return p.parseExpr()
}

// parseLcLet parses a let(...) in vector-element position. It only
// splices (builds an *ast.LcLet) when its body is itself a comprehension
// element (for/each/if/let); a let whose body is an ordinary expression is
// a plain, non-splicing vector element, matching the original's "let only
// forwards its body's own comprehension-ness" rule.
func (p *parser) parseLcLet() (ast.Expr, error) {
	loc := p.advance().Loc // 'let'
	if _, err := p.expect(lexer.TokLParen, "'(' after let"); err != nil {
		return nil, err
	}
	args, err := p.parseAssignmentListUntil(lexer.TokRParen)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen, "')' closing let bindings"); err != nil {
		return nil, err
	}
	body, err := p.parseVectorElement()
	if err != nil {
		return nil, err
	}
	if ast.IsListComprehension(body) {
		return &ast.LcLet{Loc: loc, Arguments: args, Body: body}, nil
	}
	return &ast.LetExpr{Loc: loc, Arguments: args, Body: body}, nil
}

func (p *parser) parseLcIf() (ast.Expr, error) {
	loc := p.advance().Loc // 'if'
	if _, err := p.expect(lexer.TokLParen, "'(' after if"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokRParen, "')' closing if condition"); err != nil {
		return nil, err
	}
	then, err := p.parseVectorElement()
	if err != nil {
		return nil, err
	}
	lc := &ast.LcIf{Loc: loc, Cond: cond, Then: then}
	if p.check(lexer.TokElse) {
		p.advance()
		els, err := p.parseVectorElement()
		if err != nil {
			return nil, err
		}
		lc.Else = els
	}
	return lc, nil
}

// parseForComprehension distinguishes the two for-comprehension forms by
// whether a ';' follows the first binding list: `for (name=values, ...)`
// reduces to nested LcFor nodes (one per binding), `for (init; cond; incr)`
// becomes a single LcForC node.
func (p *parser) parseForComprehension() (ast.Expr, error) {
	loc := p.advance().Loc // 'for'
	if _, err := p.expect(lexer.TokLParen, "'(' after for"); err != nil {
		return nil, err
	}
	firstList, err := p.parseAssignmentListUntil(lexer.TokRParen, lexer.TokSemi)
	if err != nil {
		return nil, err
	}

	if p.check(lexer.TokSemi) {
		p.advance()
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokSemi, "';' after for-loop condition"); err != nil {
			return nil, err
		}
		incrArgs, err := p.parseAssignmentListUntil(lexer.TokRParen)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokRParen, "')' closing for loop"); err != nil {
			return nil, err
		}
		body, err := p.parseVectorElement()
		if err != nil {
			return nil, err
		}
		return &ast.LcForC{Loc: loc, InitArgs: firstList, IncrArgs: incrArgs, Cond: cond, Body: body}, nil
	}

	if _, err := p.expect(lexer.TokRParen, "')' closing for bindings"); err != nil {
		return nil, err
	}
	body, err := p.parseVectorElement()
	if err != nil {
		return nil, err
	}
	if len(firstList) == 0 {
		return nil, p.errorf("for comprehension needs at least one binding")
	}
	result := body
	for i := len(firstList) - 1; i >= 0; i-- {
		result = &ast.LcFor{Loc: loc, Arguments: ast.AssignmentList{firstList[i]}, Body: result}
	}
	return result, nil
}

func (p *parser) parseAssignmentListUntil(stop ...lexer.TokenType) (ast.AssignmentList, error) {
	var out ast.AssignmentList
	if p.atAny(stop) {
		return out, nil
	}
	for {
		loc := p.cur().Loc
		name, err := p.expect(lexer.TokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokEquals, "'=' after parameter name"); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, ast.Assignment{Loc: loc, Name: name.Value, Expr: e})
		if !p.check(lexer.TokComma) {
			break
		}
		p.advance()
	}
	return out, nil
}

func (p *parser) atAny(types []lexer.TokenType) bool {
	for _, t := range types {
		if p.check(t) {
			return true
		}
	}
	return false
}
