package expr

import "fmt"

// Expr is a parsed expression, ready for repeated evaluation.
type Expr struct {
	root node
	text string
}

// Text returns the original expression text.
func (e *Expr) Text() string {
	return e.text
}

// Parse compiles expression text into an Expr. The grammar, loosest binding
// first:
//
//	sequence : ternary (';' ternary)*
//	ternary  : or ('?' ternary ':' ternary)?
//	or       : and (('or' | '||') and)*
//	and      : cmp (('and' | '&&') cmp)*
//	cmp      : sum (('==' | '!=' | '<' | '<=' | '>' | '>=') sum)*
//	sum      : term (('+' | '-') term)*
//	term     : factor (('*' | '/' | '%') factor)*
//	factor   : ('-' | 'not' | '!') factor | primary
//	primary  : INT | STRING | 'true' | 'false' | '(' sequence ')'
//	         | IDENT '.' IDENT ('(' arguments? ')')?
func Parse(text string) (*Expr, error) {
	tokens, err := lex(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	root, err := p.sequence()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf(p.peek(), "unexpected %q", p.peek().text)
	}
	return &Expr{root: root, text: text}, nil
}

type parser struct {
	tokens []token
	index  int
}

func (p *parser) peek() token {
	return p.tokens[p.index]
}

func (p *parser) next() token {
	t := p.tokens[p.index]
	if t.kind != tokEOF {
		p.index++
	}
	return t
}

func (p *parser) accept(kind tokenKind) (token, bool) {
	if p.peek().kind == kind {
		return p.next(), true
	}
	return token{}, false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return token{}, p.errorf(t, "expected %s", what)
	}
	return p.next(), nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%w: %s at position %d", ErrSyntax, msg, t.pos)
}

func (p *parser) sequence() (node, error) {
	first, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokSemicolon {
		return first, nil
	}

	exprs := []node{first}
	for {
		if _, ok := p.accept(tokSemicolon); !ok {
			break
		}
		// Trailing semicolons are allowed.
		if k := p.peek().kind; k == tokEOF || k == tokRParen {
			break
		}
		next, err := p.ternary()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, next)
	}
	if len(exprs) == 1 {
		return first, nil
	}
	return &sequenceNode{at: first.pos(), exprs: exprs}, nil
}

func (p *parser) ternary() (node, error) {
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	q, ok := p.accept(tokQuestion)
	if !ok {
		return cond, nil
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return &ternaryNode{at: q.pos, cond: cond, then: then, els: els}, nil
}

func (p *parser) or() (node, error) {
	return p.binaryChain(p.and, tokOr)
}

func (p *parser) and() (node, error) {
	return p.binaryChain(p.cmp, tokAnd)
}

func (p *parser) cmp() (node, error) {
	return p.binaryChain(p.sum, tokEq, tokNeq, tokLt, tokLeq, tokGt, tokGeq)
}

func (p *parser) sum() (node, error) {
	return p.binaryChain(p.term, tokPlus, tokMinus)
}

func (p *parser) term() (node, error) {
	return p.binaryChain(p.factor, tokStar, tokSlash, tokPercent)
}

// binaryChain parses a left-associative run of operators at one precedence
// level.
func (p *parser) binaryChain(operand func() (node, error), ops ...tokenKind) (node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if t, ok := p.accept(op); ok {
				right, err := operand()
				if err != nil {
					return nil, err
				}
				left = &binaryNode{at: t.pos, op: op, left: left, right: right}
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *parser) factor() (node, error) {
	if t := p.peek(); t.kind == tokMinus || t.kind == tokNot {
		p.next()
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		return &unaryNode{at: t.pos, op: t.kind, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokInt:
		v, err := parseInt(t.text, t.pos)
		if err != nil {
			return nil, err
		}
		return &intLit{at: t.pos, value: v}, nil

	case tokString:
		return &stringLit{at: t.pos, value: t.text}, nil

	case tokTrue:
		return &boolLit{at: t.pos, value: true}, nil

	case tokFalse:
		return &boolLit{at: t.pos, value: false}, nil

	case tokLParen:
		inner, err := p.sequence()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		return p.reference(t)

	default:
		return nil, p.errorf(t, "unexpected %q", t.text)
	}
}

// reference parses the tail of a name: a mandatory '.' attribute, then an
// optional call. Bare names are rejected; only attributes and methods of
// the bound objects exist.
func (p *parser) reference(object token) (node, error) {
	if _, err := p.expect(tokDot, fmt.Sprintf("'.' after %q", object.text)); err != nil {
		return nil, err
	}
	member, err := p.expect(tokIdent, "attribute name")
	if err != nil {
		return nil, err
	}

	if _, ok := p.accept(tokLParen); !ok {
		return &attrNode{at: object.pos, object: object.text, name: member.text}, nil
	}

	var args []node
	if p.peek().kind != tokRParen {
		for {
			arg, err := p.ternary()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if _, ok := p.accept(tokComma); !ok {
				break
			}
		}
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	return &callNode{at: object.pos, object: object.text, method: member.text, args: args}, nil
}
