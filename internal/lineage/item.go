package lineage

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/roach88/lindiff/internal/trace"
)

// Opcodes recorded in lineage items.
const (
	OpRand      = "rand"
	OpLiteral   = "lit"
	OpPlus      = "+"
	OpMinus     = "-"
	OpMult      = "*"
	OpDiv       = "/"
	OpMin       = "min"
	OpMax       = "max"
	OpPow       = "^"
	OpMatMult   = "ba+*"
	OpTranspose = "r'"
	OpSum       = "uak+"
)

// Item is one node of a lineage DAG.
type Item struct {
	Opcode string
	Inputs []*Item
	Data   []string

	key string
}

func newItem(opcode string, data []string, inputs ...*Item) *Item {
	it := &Item{Opcode: opcode, Inputs: inputs, Data: data}
	it.key = structuralKey(it)
	return it
}

// Key identifies the item by structure: equal opcodes, data and input keys
// give equal keys. Used as the reuse-cache key.
func (it *Item) Key() string {
	return it.key
}

// structuralKey hashes the opcode, data and input keys with a null separator
// between components so adjacent values cannot run together.
func structuralKey(it *Item) string {
	h := sha256.New()
	h.Write([]byte(it.Opcode))
	for _, d := range it.Data {
		h.Write([]byte{0x00})
		h.Write([]byte(d))
	}
	for _, in := range it.Inputs {
		h.Write([]byte{0x01})
		h.Write([]byte(in.key))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Serialize renders the DAG rooted at it in post-order, each item once.
// IDs are assigned in emission order starting at 1.
func Serialize(root *Item) string {
	ids := make(map[*Item]int)
	var lines []string

	var visit func(it *Item)
	visit = func(it *Item) {
		if _, seen := ids[it]; seen {
			return
		}
		for _, in := range it.Inputs {
			visit(in)
		}
		ids[it] = len(ids) + 1

		refs := make([]string, len(it.Inputs))
		for i, in := range it.Inputs {
			refs[i] = ref(ids[in])
		}
		fields := append([]string{it.Opcode, ref(ids[it]), strings.Join(refs, ",")}, it.Data...)
		lines = append(lines, strings.Join(fields, trace.Separator))
	}
	visit(root)

	return strings.Join(lines, "\n")
}

func ref(id int) string {
	return "(" + strconv.Itoa(id) + ")"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
