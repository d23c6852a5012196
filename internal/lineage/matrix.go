package lineage

import "math"

// Matrix is a handle to an eagerly computed result and its lineage.
//
// Operations never panic. An operation on a failed handle yields a failed
// handle carrying the first error, which LineageTrace and Values report.
type Matrix struct {
	ctx  *Context
	item *Item
	rows int
	cols int
	data []float64
	err  error
}

// Scalar creates a 1x1 literal. Binary operations broadcast 1x1 operands.
func (c *Context) Scalar(value float64) *Matrix {
	item := newItem(OpLiteral, []string{formatFloat(value)})
	return c.evaluate(item, 1, 1, func() []float64 { return []float64{value} })
}

// Err returns the handle's error, if any.
func (m *Matrix) Err() error {
	switch {
	case m == nil || m.ctx == nil || m.item == nil:
		return ErrNotMaterialized
	case m.err != nil:
		return m.err
	case m.ctx.Closed():
		return ErrContextClosed
	}
	return nil
}

// Rows returns the number of rows.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the number of columns.
func (m *Matrix) Cols() int { return m.cols }

// Item returns the lineage item that produced the handle.
func (m *Matrix) Item() *Item { return m.item }

// Values returns a row-major copy of the cells.
func (m *Matrix) Values() ([]float64, error) {
	if err := m.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(m.data))
	copy(out, m.data)
	return out, nil
}

// LineageTrace serializes the handle's lineage DAG. It implements Source.
func (m *Matrix) LineageTrace() (string, error) {
	if err := m.Err(); err != nil {
		return "", err
	}
	return Serialize(m.item), nil
}

// Add returns m + o.
func (m *Matrix) Add(o *Matrix) *Matrix {
	return m.elementwise(OpPlus, o, func(a, b float64) float64 { return a + b })
}

// Sub returns m - o.
func (m *Matrix) Sub(o *Matrix) *Matrix {
	return m.elementwise(OpMinus, o, func(a, b float64) float64 { return a - b })
}

// Mul returns the element-wise product of m and o.
func (m *Matrix) Mul(o *Matrix) *Matrix {
	return m.elementwise(OpMult, o, func(a, b float64) float64 { return a * b })
}

// Div returns the element-wise quotient of m and o.
func (m *Matrix) Div(o *Matrix) *Matrix {
	return m.elementwise(OpDiv, o, func(a, b float64) float64 { return a / b })
}

// Min returns the element-wise minimum of m and o.
func (m *Matrix) Min(o *Matrix) *Matrix {
	return m.elementwise(OpMin, o, math.Min)
}

// Max returns the element-wise maximum of m and o.
func (m *Matrix) Max(o *Matrix) *Matrix {
	return m.elementwise(OpMax, o, math.Max)
}

// Pow raises m to o element-wise.
func (m *Matrix) Pow(o *Matrix) *Matrix {
	return m.elementwise(OpPow, o, math.Pow)
}

// Binary applies the element-wise operator named by opcode.
// Unknown opcodes produce a failed handle.
func (m *Matrix) Binary(opcode string, o *Matrix) *Matrix {
	switch opcode {
	case OpPlus:
		return m.Add(o)
	case OpMinus:
		return m.Sub(o)
	case OpMult:
		return m.Mul(o)
	case OpDiv:
		return m.Div(o)
	case OpMin:
		return m.Min(o)
	case OpMax:
		return m.Max(o)
	case OpPow:
		return m.Pow(o)
	case OpMatMult:
		return m.MatMul(o)
	}
	return m.fail(&UnknownOpError{Opcode: opcode})
}

func (m *Matrix) elementwise(opcode string, o *Matrix, fn func(a, b float64) float64) *Matrix {
	if err := firstErr(m, o); err != nil {
		return m.fail(err)
	}
	rows, cols, ok := broadcastShape(m, o)
	if !ok {
		return m.fail(&ShapeError{Opcode: opcode, Left: [2]int{m.rows, m.cols}, Right: [2]int{o.rows, o.cols}})
	}

	item := newItem(opcode, nil, m.item, o.item)
	return m.ctx.evaluate(item, rows, cols, func() []float64 {
		out := make([]float64, rows*cols)
		for i := range out {
			out[i] = fn(cellAt(m, i), cellAt(o, i))
		}
		return out
	})
}

// MatMul returns the matrix product of m and o.
func (m *Matrix) MatMul(o *Matrix) *Matrix {
	if err := firstErr(m, o); err != nil {
		return m.fail(err)
	}
	if m.cols != o.rows {
		return m.fail(&ShapeError{Opcode: OpMatMult, Left: [2]int{m.rows, m.cols}, Right: [2]int{o.rows, o.cols}})
	}
	if err := CheckDims(OpMatMult, m.rows, o.cols); err != nil {
		return m.fail(err)
	}

	item := newItem(OpMatMult, nil, m.item, o.item)
	return m.ctx.evaluate(item, m.rows, o.cols, func() []float64 {
		out := make([]float64, m.rows*o.cols)
		for i := 0; i < m.rows; i++ {
			for k := 0; k < m.cols; k++ {
				a := m.data[i*m.cols+k]
				for j := 0; j < o.cols; j++ {
					out[i*o.cols+j] += a * o.data[k*o.cols+j]
				}
			}
		}
		return out
	})
}

// Transpose returns the transpose of m.
func (m *Matrix) Transpose() *Matrix {
	if err := m.Err(); err != nil {
		return m.fail(err)
	}
	item := newItem(OpTranspose, nil, m.item)
	return m.ctx.evaluate(item, m.cols, m.rows, func() []float64 {
		out := make([]float64, len(m.data))
		for i := 0; i < m.rows; i++ {
			for j := 0; j < m.cols; j++ {
				out[j*m.rows+i] = m.data[i*m.cols+j]
			}
		}
		return out
	})
}

// Sum returns the sum of all cells as a 1x1 matrix.
func (m *Matrix) Sum() *Matrix {
	if err := m.Err(); err != nil {
		return m.fail(err)
	}
	item := newItem(OpSum, nil, m.item)
	return m.ctx.evaluate(item, 1, 1, func() []float64 {
		var s float64
		for _, v := range m.data {
			s += v
		}
		return []float64{s}
	})
}

func (m *Matrix) fail(err error) *Matrix {
	if m == nil {
		return &Matrix{err: err}
	}
	return &Matrix{ctx: m.ctx, item: m.item, err: err}
}

func firstErr(ms ...*Matrix) error {
	for _, m := range ms {
		if err := m.Err(); err != nil {
			return err
		}
	}
	return nil
}

func broadcastShape(a, b *Matrix) (int, int, bool) {
	switch {
	case a.rows == b.rows && a.cols == b.cols:
		return a.rows, a.cols, true
	case b.rows == 1 && b.cols == 1:
		return a.rows, a.cols, true
	case a.rows == 1 && a.cols == 1:
		return b.rows, b.cols, true
	}
	return 0, 0, false
}

func cellAt(m *Matrix, i int) float64 {
	if len(m.data) == 1 {
		return m.data[0]
	}
	return m.data[i]
}
