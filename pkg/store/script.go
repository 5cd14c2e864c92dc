package store

import "strings"

// SplitStatements splits a DDL script into statements on top-level semicolons.
// Comments ("--" to end of line and /* ... */) are dropped. Semicolons inside
// comments, 'string literals' and "quoted identifiers" do not end a statement.
// Each statement keeps its terminating semicolon.
func SplitStatements(ddl string) []string {
	var (
		stmts   []string
		current strings.Builder
		quote   rune // ' or " while inside a literal
	)
	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" && stmt != ";" {
			stmts = append(stmts, stmt)
		}
		current.Reset()
	}

	src := []rune(ddl)
	for i := 0; i < len(src); i++ {
		r := src[i]
		switch {
		case quote != 0:
			current.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == '-' && i+1 < len(src) && src[i+1] == '-':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			current.WriteByte('\n')
		case r == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i < len(src) && (src[i] != '*' || i+1 >= len(src) || src[i+1] != '/') {
				i++
			}
			i++ // skip the closing slash
			current.WriteByte(' ')
		case r == ';':
			current.WriteRune(r)
			flush()
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return stmts
}
