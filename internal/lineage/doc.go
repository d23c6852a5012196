// Package lineage is the in-process computation context the harness drives.
//
// A Context evaluates matrix operations eagerly and records, for every result,
// the lineage item that produced it: the opcode, its inputs and its literal
// data. A handle's lineage trace is the post-order serialization of that item
// DAG, one record per line with fields separated by trace.Separator:
//
//	rand°(1)°°10°10°1
//	+°(2)°(1),(1)
//
// The fields are opcode, item ID, comma-separated input IDs and opcode data.
// IDs are assigned while serializing, so the trace of a handle does not depend
// on what else the context has executed.
//
// Computed values are memoized in a bounded reuse cache keyed by the
// structural lineage of a result. Reuse never changes a trace: each operation
// still creates its own lineage item.
//
// The context is process-wide state with an explicit lifecycle:
//
//	lctx := lineage.Open()
//	defer lctx.Close()
//
//	m := lctx.Full(10, 10, 1)
//	res := m.Add(m)
//	text, err := res.LineageTrace()
package lineage
