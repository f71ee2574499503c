// Package ftquery renders compiled boolean queries into FT.SEARCH query
// strings (dialect 2). Rendered strings are stable, so they can be stored
// and re-run later.
package ftquery

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caselens/lexalert/internal/domain/search/query"
)

// Render translates a compiled query into an FT.SEARCH query string. A
// match-all query renders as "*".
func Render(q query.CompiledQuery) (string, error) {
	if q.IsMatchAll() {
		return "*", nil
	}

	var parts []string
	for _, f := range q.Filters {
		part, err := renderFilter(f)
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}

	if q.Text != nil {
		parts = append(parts, renderText(q.Text))
	}

	return strings.Join(parts, " "), nil
}

// ScopeToKey restricts a rendered query to a single document by its id tag.
// Used when percolating one document against stored queries.
func ScopeToKey(rendered, idField, id string) string {
	scope := fmt.Sprintf("@%s:{%s}", idField, EscapeTag(id))
	if rendered == "*" {
		return scope
	}
	return scope + " (" + rendered + ")"
}

func renderFilter(f query.Filter) (string, error) {
	switch f := f.(type) {
	case query.TermFilter:
		return fmt.Sprintf("@%s:{%s}", f.Field, EscapeTag(f.Value)), nil
	case query.MatchFilter:
		return fmt.Sprintf("@%s:(%s)", f.Field, escapeText(f.Value)), nil
	case query.TermsFilter:
		escaped := make([]string, len(f.Values))
		for i, v := range f.Values {
			escaped[i] = EscapeTag(v)
		}
		return fmt.Sprintf("@%s:{%s}", f.Field, strings.Join(escaped, "|")), nil
	case query.DateRangeFilter:
		return renderDateRange(f)
	default:
		return "", fmt.Errorf("unknown filter type %T", f)
	}
}

// renderDateRange maps RFC 3339 bounds onto the numeric epoch-second
// representation the index stores dates in.
func renderDateRange(f query.DateRangeFilter) (string, error) {
	minBound := "-inf"
	maxBound := "+inf"

	if f.GTE != "" {
		t, err := time.Parse(time.RFC3339, f.GTE)
		if err != nil {
			return "", fmt.Errorf("range lower bound %q: %w", f.GTE, err)
		}
		minBound = strconv.FormatInt(t.Unix(), 10)
	}
	if f.LTE != "" {
		t, err := time.Parse(time.RFC3339, f.LTE)
		if err != nil {
			return "", fmt.Errorf("range upper bound %q: %w", f.LTE, err)
		}
		maxBound = strconv.FormatInt(t.Unix(), 10)
	}

	return fmt.Sprintf("@%s:[%s %s]", f.Field, minBound, maxBound), nil
}

// renderText emits one weighted clause per target field, OR-ed together.
// The user text is passed through as-is: its grammar (phrases, booleans,
// fielded lookups) is the engine's own, and it was syntax-checked upstream.
func renderText(c *query.FulltextClause) string {
	if len(c.Fields) == 0 {
		return "(" + c.Query + ")"
	}

	parts := make([]string, len(c.Fields))
	for i, f := range c.Fields {
		clause := fmt.Sprintf("@%s:(%s)", f.Name, c.Query)
		if f.Boost > 0 && f.Boost != 1 {
			clause = fmt.Sprintf("(%s)=>{$weight: %s;}", clause, strconv.FormatFloat(f.Boost, 'g', -1, 64))
		}
		parts[i] = clause
	}
	return "(" + strings.Join(parts, " | ") + ")"
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

// EscapeTag escapes RediSearch tag syntax characters in a value.
func EscapeTag(s string) string {
	return tagEscaper.Replace(s)
}

// textEscaper neutralizes query syntax inside literal match-filter values.
// Spaces stay unescaped so multi-word values still tokenize.
var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`:`, `\:`,
	`+`, `\+`,
)

func escapeText(s string) string {
	return textEscaper.Replace(s)
}
