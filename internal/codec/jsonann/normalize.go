package jsonann

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// pythonLiterals are the bare words a Python dict repr may contain.
var pythonLiterals = map[string]string{
	"nan":   "null",
	"NaN":   "null",
	"None":  "null",
	"True":  "true",
	"False": "false",
}

// Normalize rewrites Python-literal text into strict JSON: single-quoted
// strings become double-quoted and the bare words nan, NaN, None, True and
// False become null/true/false. Text inside strings is never rewritten, so a
// filename containing "nan" survives. Input that is not valid UTF-8 is read as
// Latin-1. Strict JSON passes through unchanged.
func Normalize(data []byte) []byte {
	if !utf8.Valid(data) {
		if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
			data = decoded
		}
	}

	var out bytes.Buffer
	out.Grow(len(data))

	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '"':
			i = copyDoubleQuoted(&out, data, i)
		case c == '\'':
			i = convertSingleQuoted(&out, data, i)
		case isIdentStart(c):
			j := i + 1
			for j < len(data) && isIdentPart(data[j]) {
				j++
			}
			word := string(data[i:j])
			if lit, ok := pythonLiterals[word]; ok {
				out.WriteString(lit)
			} else {
				out.WriteString(word)
			}
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.Bytes()
}

// copyDoubleQuoted copies a JSON string starting at data[i] and returns the
// index just past its closing quote.
func copyDoubleQuoted(out *bytes.Buffer, data []byte, i int) int {
	out.WriteByte('"')
	for i++; i < len(data); i++ {
		c := data[i]
		out.WriteByte(c)
		if c == '\\' && i+1 < len(data) {
			i++
			out.WriteByte(data[i])
			continue
		}
		if c == '"' {
			return i + 1
		}
	}
	return i
}

// convertSingleQuoted rewrites a Python single-quoted string as a JSON string.
func convertSingleQuoted(out *bytes.Buffer, data []byte, i int) int {
	out.WriteByte('"')
	for i++; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			if data[i] == '\'' {
				out.WriteByte('\'')
			} else {
				out.WriteByte('\\')
				out.WriteByte(data[i])
			}
		case c == '"':
			out.WriteString(`\"`)
		case c == '\'':
			out.WriteByte('"')
			return i + 1
		default:
			out.WriteByte(c)
		}
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
