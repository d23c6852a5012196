package harness

import (
	"fmt"

	"github.com/roach88/lindiff/internal/lineage"
)

// Step operations that are not binary operators.
const (
	OpFull      = "full"
	OpScalar    = "scalar"
	OpTranspose = "t"
	OpSum       = "sum"
)

// binarySteps maps scenario operators to lineage opcodes. The operator
// spelling matches the engine's script syntax.
var binarySteps = map[string]string{
	"+":   lineage.OpPlus,
	"-":   lineage.OpMinus,
	"*":   lineage.OpMult,
	"/":   lineage.OpDiv,
	"^":   lineage.OpPow,
	"%*%": lineage.OpMatMult,
	"min": lineage.OpMin,
	"max": lineage.OpMax,
}

func stepArity(op string) (int, bool) {
	switch op {
	case OpFull, OpScalar:
		return 0, true
	case OpTranspose, OpSum:
		return 1, true
	}
	if _, ok := binarySteps[op]; ok {
		return 2, true
	}
	return 0, false
}

// Build evaluates steps in lctx and returns every named handle. The first
// step whose operation fails stops the build.
func Build(lctx *lineage.Context, steps []Step) (map[string]*lineage.Matrix, error) {
	vars := make(map[string]*lineage.Matrix, len(steps))

	operand := func(i int, name string) (*lineage.Matrix, error) {
		m, ok := vars[name]
		if !ok {
			return nil, fmt.Errorf("steps[%d]: %q is not defined before use", i, name)
		}
		return m, nil
	}

	for i, step := range steps {
		arity, ok := stepArity(step.Op)
		if !ok {
			return nil, fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if len(step.Args) != arity {
			return nil, fmt.Errorf("steps[%d]: op %q takes %d args, got %d", i, step.Op, arity, len(step.Args))
		}

		operands := make([]*lineage.Matrix, arity)
		for j, arg := range step.Args {
			m, err := operand(i, arg)
			if err != nil {
				return nil, err
			}
			operands[j] = m
		}

		var m *lineage.Matrix
		switch step.Op {
		case OpFull:
			m = lctx.Full(step.Rows, step.Cols, step.Value)
		case OpScalar:
			m = lctx.Scalar(step.Value)
		case OpTranspose:
			m = operands[0].Transpose()
		case OpSum:
			m = operands[0].Sum()
		default:
			m = operands[0].Binary(binarySteps[step.Op], operands[1])
		}

		if err := m.Err(); err != nil {
			return nil, fmt.Errorf("steps[%d] (%s = %s): %w", i, step.Let, step.Op, err)
		}
		vars[step.Let] = m
	}
	return vars, nil
}
