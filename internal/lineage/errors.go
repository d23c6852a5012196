package lineage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotMaterialized is returned when a handle was never produced by a Context.
	ErrNotMaterialized = errors.New("lineage: handle not materialized")

	// ErrContextClosed is returned for operations on, or handles of, a closed Context.
	ErrContextClosed = errors.New("lineage: context closed")
)

// ShapeError reports operands whose dimensions do not fit an operation.
type ShapeError struct {
	Opcode string
	Left   [2]int
	Right  [2]int
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("lineage: %s: incompatible shapes %dx%d and %dx%d",
		e.Opcode, e.Left[0], e.Left[1], e.Right[0], e.Right[1])
}

// UnknownOpError reports an opcode the context cannot evaluate.
type UnknownOpError struct {
	Opcode string
}

// Error implements the error interface.
func (e *UnknownOpError) Error() string {
	return fmt.Sprintf("lineage: unknown operator %q", e.Opcode)
}

// SizeError reports dimensions whose cell count exceeds MaxCells.
type SizeError struct {
	Opcode string
	Rows   int
	Cols   int
}

// Error implements the error interface.
func (e *SizeError) Error() string {
	return fmt.Sprintf("lineage: %s: %dx%d exceeds %d cells", e.Opcode, e.Rows, e.Cols, MaxCells)
}
