package links

import "testing"

func TestCanonicalLinkStripsTracking(t *testing.T) {
	a, err := CanonicalLink("https://example.com/a?utm_source=x")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	b, err := CanonicalLink("https://example.com/a")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if a != b {
		t.Errorf("Expected equal canonical links, got '%s' and '%s'", a, b)
	}
}

func TestCanonicalLinkCases(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"keeps other params in order", "https://site.test/n?id=5&utm_medium=rss&page=2", "https://site.test/n?id=5&page=2"},
		{"strips click ids", "https://site.test/n?fbclid=abc&gclid=1&yclid=2&ysclid=3", "https://site.test/n"},
		{"lowercases scheme and host", "HTTPS://News.Site.TEST/Path", "https://news.site.test/Path"},
		{"drops fragment", "https://site.test/a#comments", "https://site.test/a"},
		{"drops default port", "http://site.test:80/a", "http://site.test/a"},
		{"keeps custom port", "http://site.test:8080/a", "http://site.test:8080/a"},
		{"protocol relative", "//site.test/a?utm_campaign=x", "https://site.test/a"},
		{"encoded tracking name", "https://site.test/a?utm%5Fsource=x&q=1", "https://site.test/a?q=1"},
		{"tracking params dropped", "http://site.test/news/1?utm_source=rss", "http://site.test/news/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalLink(tt.input)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestCanonicalLinkRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "/relative/path", "mailto:a@b.c", "ftp://site.test/a"} {
		if _, err := CanonicalLink(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestHostname(t *testing.T) {
	tests := map[string]string{
		"https://www.Example.com/a":  "example.com",
		"http://news.site.ru:8080/x": "news.site.ru",
		"www.site.ru":                "site.ru",
		"site.ru":                    "site.ru",
		"":                           "",
	}

	for input, expected := range tests {
		if got := Hostname(input); got != expected {
			t.Errorf("Hostname(%q): expected '%s', got '%s'", input, expected, got)
		}
	}
}

func TestMatchDomain(t *testing.T) {
	table := NormalizeDomainKeys(map[string]int{
		"www.site.ru":        1,
		"https://strict.org": 2,
	})

	if v, ok := MatchDomain("site.ru", table); !ok || v != 1 {
		t.Errorf("Expected exact match 1, got %d (%v)", v, ok)
	}
	if v, ok := MatchDomain("news.site.ru", table); !ok || v != 1 {
		t.Errorf("Expected parent-domain match 1, got %d (%v)", v, ok)
	}
	if v, ok := MatchDomain("strict.org", table); !ok || v != 2 {
		t.Errorf("Expected match 2, got %d (%v)", v, ok)
	}
	if _, ok := MatchDomain("othersite.ru", table); ok {
		t.Error("Expected no match for a different domain sharing a suffix")
	}
	if _, ok := MatchDomain("ru", table); ok {
		t.Error("Expected no match for a bare TLD")
	}
}
