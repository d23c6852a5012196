package dml

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/lindiff/internal/lineage"
)

// RuntimeError reports a failure while executing a statement.
type RuntimeError struct {
	Line    int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Unwrap returns the underlying lineage error, if any.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// value is either a matrix handle or a string.
type value struct {
	m   *lineage.Matrix
	str string
}

func (v value) isString() bool {
	return v.m == nil
}

// Interpreter executes programs against a lineage context.
type Interpreter struct {
	lctx       *lineage.Context
	out        io.Writer
	logger     *slog.Logger
	vars       map[string]value
	statements int
}

// NewInterpreter creates an interpreter whose print output goes to out.
// A nil logger discards debug events.
func NewInterpreter(lctx *lineage.Context, out io.Writer, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Interpreter{
		lctx:   lctx,
		out:    out,
		logger: logger,
		vars:   make(map[string]value),
	}
}

// Statements returns the number of statements executed so far.
func (in *Interpreter) Statements() int {
	return in.statements
}

// Lookup returns the matrix bound to name.
func (in *Interpreter) Lookup(name string) (*lineage.Matrix, bool) {
	v, ok := in.vars[name]
	if !ok || v.isString() {
		return nil, false
	}
	return v.m, true
}

// Exec runs every statement of prog in order, checking ctx between statements.
func (in *Interpreter) Exec(ctx context.Context, prog *Program) error {
	for _, stmt := range prog.Statements {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := in.exec(stmt); err != nil {
			return err
		}
		in.statements++
	}
	return nil
}

func (in *Interpreter) exec(stmt Statement) error {
	switch s := stmt.(type) {
	case *Assign:
		v, err := in.eval(s.Expr)
		if err != nil {
			return err
		}
		in.vars[s.Name] = v
		in.logger.Debug("assigned", "name", s.Name, "line", s.Line)
		return nil
	case *Print:
		v, err := in.eval(s.Arg)
		if err != nil {
			return err
		}
		text, err := in.format(v, s.Line)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(in.out, text)
		return err
	}
	return &RuntimeError{Line: stmt.statementLine(), Message: fmt.Sprintf("unsupported statement %T", stmt)}
}

func (in *Interpreter) format(v value, line int) (string, error) {
	if v.isString() {
		return v.str, nil
	}
	vals, err := v.m.Values()
	if err != nil {
		return "", &RuntimeError{Line: line, Message: "print", Err: err}
	}
	if len(vals) == 1 {
		return formatNumber(vals[0]), nil
	}

	var b strings.Builder
	for i := 0; i < v.m.Rows(); i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j := 0; j < v.m.Cols(); j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(formatNumber(vals[i*v.m.Cols()+j]))
		}
	}
	return b.String(), nil
}

// binaryOps maps script operators to lineage opcodes.
var binaryOps = map[string]string{
	"+":   lineage.OpPlus,
	"-":   lineage.OpMinus,
	"*":   lineage.OpMult,
	"/":   lineage.OpDiv,
	"^":   lineage.OpPow,
	"%*%": lineage.OpMatMult,
}

func (in *Interpreter) eval(e Expr) (value, error) {
	switch x := e.(type) {
	case *Number:
		return value{m: in.lctx.Scalar(x.Value)}, nil
	case *String:
		return value{str: x.Value}, nil
	case *Ident:
		v, ok := in.vars[x.Name]
		if !ok {
			return value{}, &RuntimeError{Line: x.Line, Message: fmt.Sprintf("undefined variable %q", x.Name)}
		}
		return v, nil
	case *BinaryExpr:
		return in.evalBinary(x)
	case *Call:
		return in.evalCall(x)
	}
	return value{}, &RuntimeError{Line: e.exprLine(), Message: fmt.Sprintf("unsupported expression %T", e)}
}

func (in *Interpreter) evalBinary(x *BinaryExpr) (value, error) {
	left, err := in.matrixOperand(x.Left)
	if err != nil {
		return value{}, err
	}
	right, err := in.matrixOperand(x.Right)
	if err != nil {
		return value{}, err
	}
	opcode, ok := binaryOps[x.Op]
	if !ok {
		return value{}, &RuntimeError{Line: x.Line, Message: fmt.Sprintf("unsupported operator %q", x.Op)}
	}
	return in.checked(left.Binary(opcode, right), x.Line, x.Op)
}

func (in *Interpreter) evalCall(c *Call) (value, error) {
	switch c.Func {
	case "matrix":
		return in.evalMatrix(c)
	case "lineage":
		m, err := in.unary(c)
		if err != nil {
			return value{}, err
		}
		text, err := m.LineageTrace()
		if err != nil {
			return value{}, &RuntimeError{Line: c.Line, Message: "lineage", Err: err}
		}
		return value{str: text}, nil
	case "t":
		m, err := in.unary(c)
		if err != nil {
			return value{}, err
		}
		return in.checked(m.Transpose(), c.Line, c.Func)
	case "sum":
		m, err := in.unary(c)
		if err != nil {
			return value{}, err
		}
		return in.checked(m.Sum(), c.Line, c.Func)
	case "min", "max":
		if len(c.Args) != 2 || len(c.Named) != 0 {
			return value{}, &RuntimeError{Line: c.Line, Message: fmt.Sprintf("%s expects 2 arguments", c.Func)}
		}
		a, err := in.matrixOperand(c.Args[0])
		if err != nil {
			return value{}, err
		}
		b, err := in.matrixOperand(c.Args[1])
		if err != nil {
			return value{}, err
		}
		return in.checked(a.Binary(c.Func, b), c.Line, c.Func)
	}
	return value{}, &RuntimeError{Line: c.Line, Message: fmt.Sprintf("unknown function %q", c.Func)}
}

// evalMatrix handles matrix(value, rows=r, cols=c).
func (in *Interpreter) evalMatrix(c *Call) (value, error) {
	if len(c.Args) != 1 {
		return value{}, &RuntimeError{Line: c.Line, Message: "matrix expects one positional fill value"}
	}
	fill, err := in.number(c.Args[0], c.Line)
	if err != nil {
		return value{}, err
	}

	dims := make(map[string]int, 2)
	for _, name := range []string{"rows", "cols"} {
		e, ok := c.Named[name]
		if !ok {
			return value{}, &RuntimeError{Line: c.Line, Message: fmt.Sprintf("matrix requires %s=", name)}
		}
		n, err := in.number(e, c.Line)
		if err != nil {
			return value{}, err
		}
		if n > lineage.MaxCells {
			return value{}, &RuntimeError{Line: c.Line, Message: c.Func, Err: &lineage.SizeError{Opcode: lineage.OpRand, Rows: int(n), Cols: 1}}
		}
		if n != float64(int(n)) {
			return value{}, &RuntimeError{Line: c.Line, Message: fmt.Sprintf("%s must be an integer, got %s", name, formatNumber(n))}
		}
		dims[name] = int(n)
	}
	if len(c.Named) != 2 {
		return value{}, &RuntimeError{Line: c.Line, Message: "matrix accepts only rows= and cols="}
	}

	return in.checked(in.lctx.Full(dims["rows"], dims["cols"], fill), c.Line, c.Func)
}

// number evaluates a literal or scalar expression to a float without
// recording it in lineage. Numeric arguments of builtins are operation data,
// not inputs.
func (in *Interpreter) number(e Expr, line int) (float64, error) {
	if n, ok := e.(*Number); ok {
		return n.Value, nil
	}
	m, err := in.matrixOperand(e)
	if err != nil {
		return 0, err
	}
	vals, err := m.Values()
	if err != nil {
		return 0, &RuntimeError{Line: line, Message: "scalar argument", Err: err}
	}
	if len(vals) != 1 {
		return 0, &RuntimeError{Line: line, Message: "expected a scalar argument"}
	}
	return vals[0], nil
}

func (in *Interpreter) unary(c *Call) (*lineage.Matrix, error) {
	if len(c.Args) != 1 || len(c.Named) != 0 {
		return nil, &RuntimeError{Line: c.Line, Message: fmt.Sprintf("%s expects 1 argument", c.Func)}
	}
	return in.matrixOperand(c.Args[0])
}

func (in *Interpreter) matrixOperand(e Expr) (*lineage.Matrix, error) {
	v, err := in.eval(e)
	if err != nil {
		return nil, err
	}
	if v.isString() {
		return nil, &RuntimeError{Line: e.exprLine(), Message: "expected a matrix operand, found a string"}
	}
	return v.m, nil
}

func (in *Interpreter) checked(m *lineage.Matrix, line int, op string) (value, error) {
	if err := m.Err(); err != nil {
		return value{}, &RuntimeError{Line: line, Message: op, Err: err}
	}
	return value{m: m}, nil
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
