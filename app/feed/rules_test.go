package feed

import (
	"strings"
	"testing"
)

func TestRulesEmpty(t *testing.T) {
	rules := CompileRules(nil)

	if reason := rules.Reject(Entry{Title: "Новость"}); reason != "" {
		t.Errorf("Expected entry to pass without rules, got '%s'", reason)
	}
}

func TestRulesIncludeExclude(t *testing.T) {
	rules := CompileRules([]ConfigFilter{
		{Field: "title", Includes: []string{"Экономика"}, Excludes: []string{"реклама"}},
	})

	tests := []struct {
		title  string
		reason string
	}{
		{"Экономика: рост ВВП", ""},
		{"Экономика: РЕКЛАМА вклада", `title contains "реклама"`},
		{"Спорт: итоги матча", "title matches none of [экономика]"},
	}

	for _, tt := range tests {
		if got := rules.Reject(Entry{Title: tt.title}); got != tt.reason {
			t.Errorf("%s: expected reason '%s', got '%s'", tt.title, tt.reason, got)
		}
	}
}

func TestRulesFields(t *testing.T) {
	entry := Entry{
		Title:      "Заголовок",
		Summary:    "Анонс",
		Content:    "Текст",
		Authors:    []string{"a@example.com", "b@example.com"},
		Link:       "https://example.com/promo/1",
		Categories: []string{"Политика", "Мир"},
	}

	tests := []struct {
		field   string
		pattern string
	}{
		{"title", "заголовок"},
		{"summary", "анонс"},
		{"content", "текст"},
		{"authors", "b@example.com"},
		{"link", "/promo/"},
		{"categories", "мир"},
	}

	for _, tt := range tests {
		rules := CompileRules([]ConfigFilter{{Field: tt.field, Excludes: []string{tt.pattern}}})
		if reason := rules.Reject(entry); !strings.HasPrefix(reason, tt.field) {
			t.Errorf("%s: expected exclusion, got '%s'", tt.field, reason)
		}
	}
}

func TestRulesSkipUnknownField(t *testing.T) {
	rules := CompileRules([]ConfigFilter{
		{Field: "unknown", Excludes: []string{"x"}},
		{Field: "categories", Includes: []string{"politics"}},
	})

	if len(rules) != 1 {
		t.Fatalf("Expected 1 compiled rule, got %d", len(rules))
	}
	if reason := rules.Reject(Entry{Title: "x"}); reason == "" {
		t.Error("Expected entry without categories to be rejected")
	}
}
