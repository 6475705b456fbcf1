package db

import (
	"strings"

	"riskadmin/internal/domain"
)

// bindNamed rewrites @Name references in text to positional placeholders and
// returns the matching argument list. Quoted literals and @@variables are left alone.
// Every input parameter must be referenced at least once. backslash reports whether
// the store treats a backslash inside a string literal as an escape (MySQL does, SQLite does not).
func bindNamed(text string, params Params, backslash bool) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
		used = make(map[string]bool, len(params))
	)
	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			end := closingQuote(text, i, backslash)
			b.WriteString(text[i:end])
			i = end - 1
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			b.WriteString(text[i : i+end])
			i += end - 1
		case c == '@' && i+1 < len(text) && text[i+1] == '@':
			j := i + 2
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			b.WriteString(text[i:j])
			i = j - 1
		case c == '@' && i+1 < len(text) && isIdentStart(text[i+1]):
			j := i + 1
			for j < len(text) && isIdentByte(text[j]) {
				j++
			}
			name := text[i+1 : j]
			p, ok := params.Lookup(name)
			if !ok {
				return "", nil, domain.InvalidArgument(name, "unknown parameter")
			}
			if !p.isInput() {
				return "", nil, domain.InvalidArgument(name, "output parameter cannot be bound as a value")
			}
			used[strings.ToLower(p.Name)] = true
			args = append(args, p.Value)
			b.WriteByte('?')
			i = j - 1
		default:
			b.WriteByte(c)
		}
	}

	for _, p := range params {
		if p.isInput() && !used[strings.ToLower(p.Name)] {
			return "", nil, domain.InvalidArgument(p.Name, "parameter is not referenced by the command")
		}
	}
	return b.String(), args, nil
}

// closingQuote returns the index just past the literal opened at text[start].
// A doubled quote inside the literal is an escape, and so is a backslash when backslash is set.
func closingQuote(text string, start int, backslash bool) int {
	q := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			if backslash && q != '`' {
				i++
			}
		case q:
			if i+1 < len(text) && text[i+1] == q {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(text)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
