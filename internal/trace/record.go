package trace

import "strings"

// Separator delimits fields within a single trace line.
const Separator = "°"

// Record is one trace line split into its fields.
// Field order is fixed by the producing engine.
type Record []string

// Command returns the first field of the record, the lineage opcode.
// An empty record has an empty command.
func (r Record) Command() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// String joins the fields back into their line form.
func (r Record) String() string {
	return strings.Join(r, Separator)
}

// Equal reports whether both records have identical fields.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Sequence is an ordered list of records in emission order.
type Sequence []Record

// Commands projects every record onto its command field.
// The result is never nil so that empty sequences compare equal.
func (s Sequence) Commands() []string {
	cmds := make([]string, len(s))
	for i, r := range s {
		cmds[i] = r.Command()
	}
	return cmds
}

// Lines renders every record in its line form.
func (s Sequence) Lines() []string {
	lines := make([]string, len(s))
	for i, r := range s {
		lines[i] = r.String()
	}
	return lines
}

// String renders the sequence as newline-separated records, the inverse of
// ParseString for sequences without blank records.
func (s Sequence) String() string {
	return strings.Join(s.Lines(), "\n")
}
