package trace

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// HeaderLines is the number of leading lines of engine output that precede
// the lineage trace.
const HeaderLines = 1

// FooterLines is the number of trailing engine status lines printed after the
// lineage trace. Only StripFooter should depend on this value.
const FooterLines = 3

// maxLineSize bounds a single trace line. Lineage items of large programs
// carry long operand lists, so the bufio default of 64KiB is not enough.
const maxLineSize = 16 * 1024 * 1024

// Output is the parsed form of captured engine output.
type Output struct {
	// Header is the discarded first line, kept for diagnostics.
	Header string

	// Sequence holds the trace records with header and footer removed.
	Sequence Sequence
}

// ParseLine trims and normalizes a single line and splits it into fields.
func ParseLine(line string) Record {
	line = norm.NFC.String(strings.TrimSpace(line))
	return Record(strings.Split(line, Separator))
}

// ParseString parses an in-process lineage trace. Every line is a record.
//
// Empty and whitespace-only input yields an empty sequence. Blank lines at the
// end of the input (a terminating newline) do not produce records; interior
// blank lines become records with an empty command.
func ParseString(s string) Sequence {
	seq := Sequence{}
	if strings.TrimSpace(s) == "" {
		return seq
	}

	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}

	for _, line := range lines {
		seq = append(seq, ParseLine(line))
	}
	return seq
}

// ParseReader parses captured engine output from r.
//
// The first line is returned as Output.Header and never appears in the
// sequence. All remaining lines are parsed as records and the engine footer is
// removed with StripFooter. Zero-byte input yields an empty sequence.
func ParseReader(r io.Reader) (Output, error) {
	out := Output{Sequence: Sequence{}}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		if lineNo < HeaderLines {
			out.Header = strings.TrimSpace(scanner.Text())
		} else {
			out.Sequence = append(out.Sequence, ParseLine(scanner.Text()))
		}
		lineNo++
	}
	if err := scanner.Err(); err != nil {
		return Output{}, fmt.Errorf("read trace output: %w", err)
	}

	out.Sequence = StripFooter(out.Sequence)
	return out, nil
}

// ParseFile opens path and parses it with ParseReader.
// Open errors wrap the underlying *os.PathError, so errors.Is(err, os.ErrNotExist)
// holds for missing files.
func ParseFile(path string) (Output, error) {
	f, err := os.Open(path)
	if err != nil {
		return Output{}, fmt.Errorf("open trace output: %w", err)
	}
	defer f.Close()

	out, err := ParseReader(f)
	if err != nil {
		return Output{}, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// StripFooter drops the engine footer from the end of seq.
// Sequences shorter than the footer become empty.
func StripFooter(seq Sequence) Sequence {
	if len(seq) <= FooterLines {
		return Sequence{}
	}
	return seq[:len(seq)-FooterLines]
}
