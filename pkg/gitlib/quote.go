package gitlib

import "strings"

// octalEscapeLen is the number of digits in a `\NNN` escape.
const octalEscapeLen = 3

// cEscapes maps the single-character escapes git uses in quoted paths.
var cEscapes = map[byte]byte{
	'\\': '\\',
	'"':  '"',
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
}

// Unquote decodes a path as printed by git when core.quotePath applies.
// A path wrapped in double quotes has the quotes stripped and every `\NNN`
// octal escape replaced by the byte it encodes. Unquoted paths are returned
// unchanged.
func Unquote(path string) string {
	if len(path) < 2 || path[0] != '"' || path[len(path)-1] != '"' {
		return path
	}

	inner := path[1 : len(path)-1]
	if strings.IndexByte(inner, '\\') < 0 {
		return inner
	}

	var buf strings.Builder

	buf.Grow(len(inner))

	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' || i+1 >= len(inner) {
			buf.WriteByte(c)

			continue
		}

		if b, ok := octalByte(inner[i+1:]); ok {
			buf.WriteByte(b)

			i += octalEscapeLen

			continue
		}

		if b, ok := cEscapes[inner[i+1]]; ok {
			buf.WriteByte(b)

			i++

			continue
		}

		buf.WriteByte(c)
	}

	return buf.String()
}

// octalByte decodes exactly three leading octal digits into one byte.
// Values above 0377 do not fit a byte and are rejected.
func octalByte(s string) (byte, bool) {
	if len(s) < octalEscapeLen {
		return 0, false
	}

	var v int

	for i := range octalEscapeLen {
		d := s[i]
		if d < '0' || d > '7' {
			return 0, false
		}

		v = v<<3 | int(d-'0')
	}

	if v > 0xff {
		return 0, false
	}

	return byte(v), true
}
