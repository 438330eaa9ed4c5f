package formula

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// Expr is the common interface for all AST nodes.
type Expr interface {
	exprNode()
}

// LogicalExpr represents AND / OR.
type LogicalExpr struct {
	Op    string // "AND" | "OR"
	Left  Expr
	Right Expr
}

// NotExpr represents NOT <expr>.
type NotExpr struct {
	Expr Expr
}

// ComparisonExpr represents <expr> <operator> <expr>.
type ComparisonExpr struct {
	Left  Expr
	Op    Operator
	Right Expr
}

// ArithExpr represents + - * / % between two numeric expressions.
type ArithExpr struct {
	Op    byte
	Left  Expr
	Right Expr
}

// NegExpr represents unary minus.
type NegExpr struct {
	Expr Expr
}

// LiteralExpr holds a pre-parsed constant (float64, string or bool).
type LiteralExpr struct {
	Value any
}

// VarExpr holds a dot-separated name like "a" or "in.value".
type VarExpr struct {
	Path []string
}

// CallExpr is a call to one of the built-in functions.
type CallExpr struct {
	Name string
	Args []Expr
}

func (*LogicalExpr) exprNode()    {}
func (*NotExpr) exprNode()        {}
func (*ComparisonExpr) exprNode() {}
func (*ArithExpr) exprNode()      {}
func (*NegExpr) exprNode()        {}
func (*LiteralExpr) exprNode()    {}
func (*VarExpr) exprNode()        {}
func (*CallExpr) exprNode()       {}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // identifier or keyword
	tokOp                      // ==, !=, >=, <=, >, <, + - * / %
	tokString                  // "…" or '…'
	tokNumber                  // 42 | 3.14
	tokBool                    // true | false
	tokLParen
	tokRParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		ch := src[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		switch ch {
		case '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
			continue
		case ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
			continue
		case ',':
			tokens = append(tokens, token{tokComma, ",", i})
			i++
			continue
		case '+', '-', '*', '/', '%':
			// Unary minus is resolved by the parser.
			tokens = append(tokens, token{tokOp, string(ch), i})
			i++
			continue
		case '=', '!', '<', '>':
			if i+1 < len(src) && src[i+1] == '=' {
				tokens = append(tokens, token{tokOp, src[i : i+2], i})
				i += 2
				continue
			}
			if ch == '=' || ch == '!' {
				return nil, fmt.Errorf("unexpected %q at position %d", ch, i)
			}
			tokens = append(tokens, token{tokOp, string(ch), i})
			i++
			continue
		case '"', '\'':
			quote := ch
			j := i + 1
			for j < len(src) && src[j] != quote {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(src) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			inner := src[i+1 : j]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			tokens = append(tokens, token{tokString, inner, i})
			i = j + 1
			continue
		}
		if unicode.IsDigit(rune(ch)) || (ch == '.' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))) {
			j := i
			for j < len(src) && (unicode.IsDigit(rune(src[j])) || src[j] == '.') {
				j++
			}
			// exponent: 1e-3
			if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
				k := j + 1
				if k < len(src) && (src[k] == '+' || src[k] == '-') {
					k++
				}
				if k < len(src) && unicode.IsDigit(rune(src[k])) {
					for k < len(src) && unicode.IsDigit(rune(src[k])) {
						k++
					}
					j = k
				}
			}
			tokens = append(tokens, token{tokNumber, src[i:j], i})
			i = j
			continue
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(src) && (unicode.IsLetter(rune(src[j])) || unicode.IsDigit(rune(src[j])) || src[j] == '_' || src[j] == '.') {
				j++
			}
			word := src[i:j]
			switch strings.ToLower(word) {
			case "true", "false":
				tokens = append(tokens, token{tokBool, strings.ToLower(word), i})
			default:
				tokens = append(tokens, token{tokWord, word, i})
			}
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, "", len(src)})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, val string) error {
	t := p.peek()
	if t.kind != kind || (val != "" && t.val != val) {
		return fmt.Errorf("expected %q at position %d but got %q", val, t.pos, t.val)
	}
	p.consume()
	return nil
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.val, kw)
}

// Parse parses a formula into an AST.
func Parse(src string) (Expr, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return node, nil
}

// or_expr = and_expr ( "OR" and_expr )*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// and_expr = not_expr ( "AND" not_expr )*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &LogicalExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// not_expr = "NOT" not_expr | comparison
func (p *parser) parseNot() (Expr, error) {
	if p.keyword("NOT") {
		p.consume()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	return p.parseComparison()
}

// comparison = sum [ operator sum ]
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	var op Operator
	switch {
	case t.kind == tokOp && isComparison(t.val):
		op = Operator(t.val)
	case p.keyword("contains"):
		op = OpContains
	case p.keyword("matches"):
		op = OpMatches
	default:
		return left, nil
	}
	p.consume()

	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	return &ComparisonExpr{Left: left, Op: op, Right: right}, nil
}

// sum = product ( ("+" | "-") product )*
func (p *parser) parseSum() (Expr, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.val == "+" || t.val == "-"); t = p.peek() {
		p.consume()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &ArithExpr{Op: t.val[0], Left: left, Right: right}
	}
	return left, nil
}

// product = unary ( ("*" | "/" | "%") unary )*
func (p *parser) parseProduct() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokOp && (t.val == "*" || t.val == "/" || t.val == "%"); t = p.peek() {
		p.consume()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ArithExpr{Op: t.val[0], Left: left, Right: right}
	}
	return left, nil
}

// unary = "-" unary | primary
func (p *parser) parseUnary() (Expr, error) {
	if t := p.peek(); t.kind == tokOp && t.val == "-" {
		p.consume()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if lit, ok := inner.(*LiteralExpr); ok {
			if f, ok := lit.Value.(float64); ok {
				return &LiteralExpr{Value: -f}, nil
			}
		}
		return &NegExpr{Expr: inner}, nil
	}
	return p.parsePrimary()
}

// primary = number | string | bool | name [ "(" args ")" ] | "(" or_expr ")"
func (p *parser) parsePrimary() (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokString:
		p.consume()
		return &LiteralExpr{Value: t.val}, nil
	case tokNumber:
		p.consume()
		f, err := strconv.ParseFloat(t.val, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &LiteralExpr{Value: f}, nil
	case tokBool:
		p.consume()
		return &LiteralExpr{Value: t.val == "true"}, nil
	case tokLParen:
		p.consume()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokWord:
		p.consume()
		if p.peek().kind == tokLParen {
			return p.parseCall(t)
		}
		return &VarExpr{Path: strings.Split(t.val, ".")}, nil
	default:
		return nil, fmt.Errorf("expected operand at position %d, got %q", t.pos, t.val)
	}
}

func (p *parser) parseCall(name token) (Expr, error) {
	fn := strings.ToLower(name.val)
	if _, ok := builtins[fn]; !ok {
		return nil, fmt.Errorf("unknown function %q at position %d", name.val, name.pos)
	}
	p.consume() // (
	call := &CallExpr{Name: fn}
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.peek().kind != tokComma {
				break
			}
			p.consume()
		}
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	if b := builtins[fn]; len(call.Args) != b.arity {
		return nil, fmt.Errorf("%s expects %d argument(s), got %d", fn, b.arity, len(call.Args))
	}
	return call, nil
}
