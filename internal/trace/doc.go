// Package trace parses textual lineage traces into comparable record sequences.
//
// A lineage trace is line oriented. Each line is one record whose fields are
// separated by Separator. The first field is the command (the lineage opcode);
// the remaining fields are operands and metadata whose count varies by command.
//
// Two sources are supported:
//
//   - In-memory strings returned by an in-process lineage accessor. Every line
//     is a record; nothing is stripped.
//   - Captured stdout of the external engine. The first line is an informational
//     header and the last FooterLines lines are the engine's statistics footer.
//     Both are removed before the sequence is returned.
//
// # Usage
//
//	text, err := m.LineageTrace()
//	if err != nil {
//	    return err
//	}
//	seq := trace.ParseString(text)
//
//	out, err := trace.ParseFile("temp/trace1.txt")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(out.Sequence.Commands())
package trace
