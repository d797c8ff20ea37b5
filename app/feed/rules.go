package feed

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// entryFields maps a filter field name to the entry text it inspects.
var entryFields = map[string]func(Entry) string{
	"title":      func(e Entry) string { return e.Title },
	"summary":    func(e Entry) string { return e.Summary },
	"content":    func(e Entry) string { return e.Content },
	"authors":    func(e Entry) string { return strings.Join(e.Authors, " ") },
	"link":       func(e Entry) string { return e.Link },
	"categories": func(e Entry) string { return strings.Join(e.Categories, " ") },
}

func isFilterField(field string) bool {
	_, ok := entryFields[field]
	return ok
}

type rule struct {
	field    string
	value    func(Entry) string
	includes []string
	excludes []string
}

// Rules are the compiled include/exclude filters of one source. Patterns are
// case-insensitive substrings.
type Rules []rule

func CompileRules(filters []ConfigFilter) Rules {
	lower := func(s string, _ int) string { return strings.ToLower(s) }

	return lo.FilterMap(filters, func(f ConfigFilter, _ int) (rule, bool) {
		value, ok := entryFields[f.Field]
		if !ok {
			return rule{}, false
		}
		return rule{
			field:    f.Field,
			value:    value,
			includes: lo.Map(f.Includes, lower),
			excludes: lo.Map(f.Excludes, lower),
		}, true
	})
}

// Reject returns the reason the entry is filtered out, or "" when it passes.
func (rs Rules) Reject(entry Entry) string {
	for _, r := range rs {
		text := strings.ToLower(r.value(entry))
		contains := func(pattern string) bool { return strings.Contains(text, pattern) }

		if pattern, found := lo.Find(r.excludes, contains); found {
			return fmt.Sprintf("%s contains %q", r.field, pattern)
		}
		if len(r.includes) > 0 && !lo.ContainsBy(r.includes, contains) {
			return fmt.Sprintf("%s matches none of %v", r.field, r.includes)
		}
	}
	return ""
}
