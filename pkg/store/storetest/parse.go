package storetest

import (
	"fmt"
	"strings"
)

func verb(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

// ident strips identifier quoting.
func ident(raw string) string {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

func idents(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, ident(p))
	}
	return out
}

// assignments parses `"a" = ?` terms joined by sep and returns the column names.
func assignments(raw, sep string) []string {
	parts := strings.Split(raw, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		lhs, _, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		out = append(out, ident(lhs))
	}
	return out
}

func cutFold(s, token string) (before, after string, found bool) {
	i := strings.Index(strings.ToUpper(s), token)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(token):], true
}

func parseInsert(query string) (table string, cols []string, returning string, err error) {
	_, rest, ok := cutFold(query, "INSERT INTO ")
	if !ok {
		return "", nil, "", fmt.Errorf("storetest: cannot parse insert: %s", query)
	}
	if body, ret, found := cutFold(rest, " RETURNING "); found {
		rest, returning = body, ident(ret)
	}
	if head, _, found := cutFold(rest, " DEFAULT VALUES"); found {
		return ident(head), nil, returning, nil
	}
	open := strings.Index(rest, " (")
	closeIdx := strings.Index(rest, ")")
	if open == -1 || closeIdx == -1 || closeIdx <= open {
		return "", nil, "", fmt.Errorf("storetest: cannot parse insert: %s", query)
	}
	return ident(rest[:open]), idents(rest[open+2:closeIdx], ","), returning, nil
}

func parseUpdate(query string) (table string, cols, keys []string, err error) {
	_, rest, ok := cutFold(query, "UPDATE ")
	if !ok {
		return "", nil, nil, fmt.Errorf("storetest: cannot parse update: %s", query)
	}
	head, body, ok := cutFold(rest, " SET ")
	if !ok {
		return "", nil, nil, fmt.Errorf("storetest: cannot parse update: %s", query)
	}
	set, where, ok := cutFold(body, " WHERE ")
	if !ok {
		return "", nil, nil, fmt.Errorf("storetest: update without predicate: %s", query)
	}
	return ident(head), assignments(set, ","), assignments(where, " AND "), nil
}

func parseDelete(query string) (table string, keys []string, err error) {
	_, rest, ok := cutFold(query, "DELETE FROM ")
	if !ok {
		return "", nil, fmt.Errorf("storetest: cannot parse delete: %s", query)
	}
	head, where, ok := cutFold(rest, " WHERE ")
	if !ok {
		return "", nil, fmt.Errorf("storetest: delete without predicate: %s", query)
	}
	return ident(head), assignments(where, " AND "), nil
}

func parseSelect(query string) (table string, cols []string, err error) {
	_, rest, ok := cutFold(query, "SELECT ")
	if !ok {
		return "", nil, fmt.Errorf("storetest: cannot parse select: %s", query)
	}
	list, from, ok := cutFold(rest, " FROM ")
	if !ok {
		return "", nil, fmt.Errorf("storetest: cannot parse select: %s", query)
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return "", nil, fmt.Errorf("storetest: cannot parse select: %s", query)
	}
	if strings.EqualFold(strings.TrimSpace(list), "COUNT(*)") {
		return ident(from), []string{"COUNT(*)"}, nil
	}
	return ident(from), idents(list, ","), nil
}
