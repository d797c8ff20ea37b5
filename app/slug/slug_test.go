package slug

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Тест новости", "test-novosti"},
		{"Главное", "glavnoe"},
		{"Hello, World!", "hello-world"},
		{"  multiple   spaces__and_underscores ", "multiple-spaces-and-underscores"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		if got := Normalize(tt.input); got != tt.expected {
			t.Errorf("Normalize(%q): expected '%s', got '%s'", tt.input, tt.expected, got)
		}
	}
}

func TestForItem(t *testing.T) {
	if got := ForItem("tass", "Главное", "https://tass.ru/1"); got != "tass-glavnoe" {
		t.Errorf("Expected 'tass-glavnoe', got '%s'", got)
	}
	if got := ForItem("site", "Тест новости", "http://site.test/news/1"); got != "site-test-novosti" {
		t.Errorf("Expected 'site-test-novosti', got '%s'", got)
	}
	if got := ForItem("", "Title", "https://x.test"); got != "news-title" {
		t.Errorf("Expected fallback prefix, got '%s'", got)
	}
}

func TestForItemHashFallback(t *testing.T) {
	got := ForItem("src", "???", "https://x.test/a")
	expected := "src-" + LinkHash("https://x.test/a")
	if got != expected {
		t.Errorf("Expected '%s', got '%s'", expected, got)
	}
	if len(LinkHash("anything")) != 8 {
		t.Error("Expected 8-character link hash")
	}
}

func TestForItemTruncation(t *testing.T) {
	title := strings.Repeat("очень длинный заголовок ", 10)
	got := ForItem(strings.Repeat("source", 10), title, "https://x.test")

	prefix, rest, _ := strings.Cut(got, "-")
	if len(prefix) > MaxPrefixLength {
		t.Errorf("Expected prefix within %d chars, got %d", MaxPrefixLength, len(prefix))
	}
	if len(rest) > MaxTitleLength {
		t.Errorf("Expected title part within %d chars, got %d ('%s')", MaxTitleLength, len(rest), rest)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("Expected no trailing dash, got '%s'", got)
	}
	if !IsValid(got) {
		t.Errorf("Expected valid slug, got '%s'", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc-def-ghi", 7); got != "abc-def" {
		t.Errorf("Expected 'abc-def', got '%s'", got)
	}
	if got := Truncate("abc-def-ghi", 8); got != "abc-def" {
		t.Errorf("Expected 'abc-def', got '%s'", got)
	}
	if got := Truncate("abcdefghij", 4); got != "abcd" {
		t.Errorf("Expected hard cut 'abcd', got '%s'", got)
	}
	if got := Truncate("short", 50); got != "short" {
		t.Errorf("Expected unchanged, got '%s'", got)
	}
}

func TestSuffixed(t *testing.T) {
	if got := Suffixed("tass-glavnoe", 1); got != "tass-glavnoe" {
		t.Errorf("Expected base slug, got '%s'", got)
	}
	if got := Suffixed("tass-glavnoe", 2); got != "tass-glavnoe-2" {
		t.Errorf("Expected 'tass-glavnoe-2', got '%s'", got)
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"news-feed", "a1", "tass-glavnoe-2"}
	invalid := []string{"", "-a", "a-", "a--b", "a_b", "Новости", "News"}

	for _, s := range valid {
		if !IsValid(s) {
			t.Errorf("Expected '%s' to be valid", s)
		}
	}
	for _, s := range invalid {
		if IsValid(s) {
			t.Errorf("Expected '%s' to be invalid", s)
		}
	}
}

func TestForName(t *testing.T) {
	if got := ForName("News feed", "category"); got != "news-feed" {
		t.Errorf("Expected 'news-feed', got '%s'", got)
	}
	if got := ForName("???", "category"); got != "category" {
		t.Errorf("Expected fallback, got '%s'", got)
	}
}
