package quality

import (
	"strings"
	"testing"
)

func words(n int, word string) string {
	return strings.TrimSpace(strings.Repeat(word+" ", n))
}

func TestGateCharBoundary(t *testing.T) {
	gate := NewGate(Config{MinChars: 10, MinWords: 1})

	if out := gate.Check("https://site.test/a", Candidate{Text: "123456789"}); out.Accepted {
		t.Error("Expected 9 characters to be rejected")
	} else if out.Reason != ReasonShortText {
		t.Errorf("Expected reason '%s', got '%s'", ReasonShortText, out.Reason)
	}

	if out := gate.Check("https://site.test/a", Candidate{Text: "1234567890"}); !out.Accepted {
		t.Errorf("Expected 10 characters to be accepted, got reason '%s'", out.Reason)
	}
}

func TestGateCountsRunesNotBytes(t *testing.T) {
	gate := NewGate(Config{MinChars: 5, MinWords: 1})

	if out := gate.Check("https://site.test/a", Candidate{Text: "Тесты"}); !out.Accepted {
		t.Errorf("Expected 5 Cyrillic runes to pass, got reason '%s'", out.Reason)
	}
}

func TestGateWordBoundary(t *testing.T) {
	gate := NewGate(Config{MinChars: 1, MinWords: 40})

	if out := gate.Check("https://site.test/a", Candidate{Text: words(39, "слово")}); out.Reason != ReasonFewWords {
		t.Errorf("Expected reason '%s', got '%s'", ReasonFewWords, out.Reason)
	}
	if out := gate.Check("https://site.test/a", Candidate{Text: words(40, "слово")}); !out.Accepted {
		t.Errorf("Expected 40 words to pass, got reason '%s'", out.Reason)
	}
}

func TestGateDefaultsRejectShortScenario(t *testing.T) {
	gate := NewGate(DefaultConfig())

	out := gate.Check("http://site.test/news/1", Candidate{Text: "Короткий текст."})
	if out.Accepted {
		t.Fatal("Expected short text to be rejected")
	}
	if out.Reason != "insufficient text" {
		t.Errorf("Expected reason 'insufficient text', got '%s'", out.Reason)
	}
}

func TestGateDomainOverride(t *testing.T) {
	minChars := 5
	requireImage := true
	gate := NewGate(Config{
		MinChars: 100,
		MinWords: 1,
		Domains: map[string]DomainRule{
			"www.loose.ru": {MinChars: &minChars},
			"strict.ru":    {RequireImage: &requireImage},
		},
	})

	if out := gate.Check("https://news.loose.ru/1", Candidate{Text: "short text"}); !out.Accepted {
		t.Errorf("Expected loose domain to accept, got reason '%s'", out.Reason)
	}
	if out := gate.Check("https://other.ru/1", Candidate{Text: "short text"}); out.Accepted {
		t.Error("Expected default threshold for other domain")
	}

	long := strings.Repeat("a", 100)
	if out := gate.Check("https://strict.ru/1", Candidate{Text: long}); out.Reason != ReasonImageMissing {
		t.Errorf("Expected reason '%s', got '%s'", ReasonImageMissing, out.Reason)
	}
	if out := gate.Check("https://strict.ru/1", Candidate{Text: long, ImageURL: "https://strict.ru/i.jpg"}); !out.Accepted {
		t.Errorf("Expected accepted with image, got reason '%s'", out.Reason)
	}
}

func TestGateBlocklist(t *testing.T) {
	gate := NewGate(Config{
		MinChars:   1,
		MinWords:   1,
		Blocklist:  []string{"spam.example"},
		AllowEmpty: true,
	})

	out := gate.Check("https://www.spam.example/a", Candidate{Text: words(100, "word")})
	if out.Accepted {
		t.Error("Expected blocked domain to be rejected even with allow-empty")
	}
	if out.Reason != ReasonBlocked {
		t.Errorf("Expected reason '%s', got '%s'", ReasonBlocked, out.Reason)
	}

	if out := gate.Check("https://sub.spam.example/a", Candidate{Text: "x"}); out.Accepted {
		t.Error("Expected subdomain of blocked domain to be rejected")
	}
}

func TestGateAllowEmpty(t *testing.T) {
	gate := NewGate(Config{MinChars: 100, MinWords: 1, AllowEmpty: true})

	out := gate.Check("https://site.test/a", Candidate{Text: "short"})
	if !out.Accepted {
		t.Fatal("Expected allow-empty to accept")
	}
	if !out.Placeholder {
		t.Error("Expected placeholder flag")
	}
	if out.Reason != ReasonShortText {
		t.Errorf("Expected reason to be kept, got '%s'", out.Reason)
	}
	if gate.Placeholder() != DefaultPlaceholder {
		t.Errorf("Expected default placeholder, got '%s'", gate.Placeholder())
	}
}

func TestCountWords(t *testing.T) {
	tests := map[string]int{
		"":                      0,
		"one":                   1,
		"  два   слова ":        2,
		"dash - separated":      2,
		"числа 2024 и ... знак": 4,
	}

	for input, expected := range tests {
		if got := CountWords(input); got != expected {
			t.Errorf("CountWords(%q): expected %d, got %d", input, expected, got)
		}
	}
}

func TestSufficient(t *testing.T) {
	gate := NewGate(Config{MinChars: 10, MinWords: 2})

	if gate.Sufficient("https://site.test", "short") {
		t.Error("Expected short text to be insufficient")
	}
	if !gate.Sufficient("https://site.test", "long enough text") {
		t.Error("Expected text to be sufficient")
	}
}
