package dml

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNewline
	tokIdent
	tokNumber
	tokString
	tokOp
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of script"
	case tokNewline:
		return "newline"
	case tokString:
		return fmt.Sprintf("string %q", t.text)
	}
	return fmt.Sprintf("%q", t.text)
}

// SyntaxError reports a lexing or parsing failure.
type SyntaxError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// operators ordered longest first so "%*%" wins over single characters.
var operators = []string{"%*%", "=", "+", "-", "*", "/", "^", "(", ")", ",", ";"}

func lex(src string) ([]token, error) {
	var toks []token
	line := 1
	depth := 0
	i := 0

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n':
			// Newlines inside parentheses continue the statement.
			if depth == 0 {
				toks = append(toks, token{kind: tokNewline, text: "\n", line: line})
			}
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '"' || c == '\'':
			end := strings.IndexByte(src[i+1:], c)
			if end < 0 {
				return nil, &SyntaxError{Line: line, Message: "unterminated string literal"}
			}
			text := src[i+1 : i+1+end]
			if strings.Contains(text, "\n") {
				return nil, &SyntaxError{Line: line, Message: "newline in string literal"}
			}
			toks = append(toks, token{kind: tokString, text: text, line: line})
			i += end + 2
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
				i++
				if i < len(src) && (src[i] == '+' || src[i] == '-') {
					i++
				}
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], line: line})
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) && isIdentPart(rune(src[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], line: line})
		default:
			matched := false
			for _, op := range operators {
				if strings.HasPrefix(src[i:], op) {
					switch op {
					case "(":
						depth++
					case ")":
						if depth > 0 {
							depth--
						}
					}
					toks = append(toks, token{kind: tokOp, text: op, line: line})
					i += len(op)
					matched = true
					break
				}
			}
			if !matched {
				return nil, &SyntaxError{Line: line, Message: fmt.Sprintf("unexpected character %q", c)}
			}
		}
	}

	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
