package dml

import (
	"fmt"
	"strconv"
)

// Program is a parsed script.
type Program struct {
	Statements []Statement
}

// Statement is either an assignment or a print.
type Statement interface {
	statementLine() int
}

// Assign binds the value of Expr to Name.
type Assign struct {
	Name string
	Expr Expr
	Line int
}

// Print writes its argument to the engine output.
type Print struct {
	Arg  Expr
	Line int
}

func (s *Assign) statementLine() int { return s.Line }
func (s *Print) statementLine() int  { return s.Line }

// Expr is an expression node.
type Expr interface {
	exprLine() int
}

// Number is a numeric literal.
type Number struct {
	Value float64
	Line  int
}

// String is a string literal.
type String struct {
	Value string
	Line  int
}

// Ident references a variable.
type Ident struct {
	Name string
	Line int
}

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
	Line  int
}

// Call invokes a builtin with positional and named arguments.
type Call struct {
	Func  string
	Args  []Expr
	Named map[string]Expr
	Line  int
}

func (e *Number) exprLine() int     { return e.Line }
func (e *String) exprLine() int     { return e.Line }
func (e *Ident) exprLine() int      { return e.Line }
func (e *BinaryExpr) exprLine() int { return e.Line }
func (e *Call) exprLine() int       { return e.Line }

// Parse parses script source into a Program.
func Parse(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.program()
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOp(text string) bool {
	t := p.peek()
	return t.kind == tokOp && t.text == text
}

func (p *parser) expectOp(text string) error {
	t := p.next()
	if t.kind != tokOp || t.text != text {
		return &SyntaxError{Line: t.line, Message: fmt.Sprintf("expected %q, found %s", text, t)}
	}
	return nil
}

func (p *parser) skipSeparators() {
	for p.peek().kind == tokNewline || p.isOp(";") {
		p.next()
	}
}

func (p *parser) program() (*Program, error) {
	prog := &Program{}
	for {
		p.skipSeparators()
		if p.peek().kind == tokEOF {
			return prog, nil
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)

		t := p.peek()
		if t.kind != tokEOF && t.kind != tokNewline && !p.isOp(";") {
			return nil, &SyntaxError{Line: t.line, Message: fmt.Sprintf("expected end of statement, found %s", t)}
		}
	}
}

func (p *parser) statement() (Statement, error) {
	t := p.next()
	if t.kind != tokIdent {
		return nil, &SyntaxError{Line: t.line, Message: fmt.Sprintf("expected statement, found %s", t)}
	}

	if t.text == "print" && p.isOp("(") {
		p.next()
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return &Print{Arg: arg, Line: t.line}, nil
	}

	if err := p.expectOp("="); err != nil {
		return nil, err
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	return &Assign{Name: t.text, Expr: e, Line: t.line}, nil
}

// expr := term (("+" | "-") term)*
func (p *parser) expr() (Expr, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.text, Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

// term := power (("*" | "/" | "%*%") power)*
func (p *parser) term() (Expr, error) {
	left, err := p.power()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("%*%") {
		op := p.next()
		right, err := p.power()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op.text, Left: left, Right: right, Line: op.line}
	}
	return left, nil
}

// power := primary ("^" power)?
func (p *parser) power() (Expr, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.isOp("^") {
		op := p.next()
		exp, err := p.power()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op.text, Left: base, Right: exp, Line: op.line}, nil
	}
	return base, nil
}

func (p *parser) primary() (Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, &SyntaxError{Line: t.line, Message: fmt.Sprintf("invalid number %q", t.text)}
		}
		return &Number{Value: v, Line: t.line}, nil
	case tokString:
		return &String{Value: t.text, Line: t.line}, nil
	case tokIdent:
		if p.isOp("(") {
			return p.call(t)
		}
		return &Ident{Name: t.text, Line: t.line}, nil
	case tokOp:
		if t.text == "(" {
			e, err := p.expr()
			if err != nil {
				return nil, err
			}
			if err := p.expectOp(")"); err != nil {
				return nil, err
			}
			return e, nil
		}
		if t.text == "-" {
			if n := p.peek(); n.kind == tokNumber {
				p.next()
				v, err := strconv.ParseFloat(n.text, 64)
				if err != nil {
					return nil, &SyntaxError{Line: n.line, Message: fmt.Sprintf("invalid number %q", n.text)}
				}
				return &Number{Value: -v, Line: t.line}, nil
			}
		}
	}
	return nil, &SyntaxError{Line: t.line, Message: fmt.Sprintf("unexpected %s", t)}
}

func (p *parser) call(name token) (Expr, error) {
	p.next() // "("
	c := &Call{Func: name.text, Named: map[string]Expr{}, Line: name.line}
	if p.isOp(")") {
		p.next()
		return c, nil
	}

	for {
		if err := p.argument(c); err != nil {
			return nil, err
		}
		if p.isOp(",") {
			p.next()
			continue
		}
		if err := p.expectOp(")"); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// argument parses one positional argument or a named IDENT "=" expr pair.
func (p *parser) argument(c *Call) error {
	if p.peek().kind == tokIdent && p.pos+1 < len(p.toks) {
		if nt := p.toks[p.pos+1]; nt.kind == tokOp && nt.text == "=" {
			argName := p.next()
			p.next()
			e, err := p.expr()
			if err != nil {
				return err
			}
			if _, dup := c.Named[argName.text]; dup {
				return &SyntaxError{Line: argName.line, Message: fmt.Sprintf("duplicate argument %q", argName.text)}
			}
			c.Named[argName.text] = e
			return nil
		}
	}

	e, err := p.expr()
	if err != nil {
		return err
	}
	c.Args = append(c.Args, e)
	return nil
}
