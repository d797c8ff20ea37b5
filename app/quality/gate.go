package quality

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/izotovlife/izotovlife.ru-sub000/app/links"
)

const (
	DefaultMinChars    = 280
	DefaultMinWords    = 40
	DefaultPlaceholder = "Текст недоступен"
)

const (
	ReasonBlocked      = "blocked domain"
	ReasonShortText    = "insufficient text"
	ReasonFewWords     = "insufficient words"
	ReasonImageMissing = "image required"
)

// Thresholds for one domain; nil fields inherit the gate defaults.
type DomainRule struct {
	MinChars     *int
	MinWords     *int
	RequireImage *bool
}

type Config struct {
	MinChars     int
	MinWords     int
	RequireImage bool
	Domains      map[string]DomainRule
	Blocklist    []string
	AllowEmpty   bool
	Placeholder  string
}

func DefaultConfig() Config {
	return Config{
		MinChars:    DefaultMinChars,
		MinWords:    DefaultMinWords,
		Placeholder: DefaultPlaceholder,
	}
}

// Candidate is what the gate looks at: cleaned text and the chosen image.
type Candidate struct {
	Text     string
	ImageURL string
}

type Outcome struct {
	Accepted    bool
	Reason      string
	Placeholder bool
}

type Gate struct {
	cfg       Config
	domains   map[string]DomainRule
	blocklist map[string]bool
}

func NewGate(cfg Config) *Gate {
	if cfg.Placeholder == "" {
		cfg.Placeholder = DefaultPlaceholder
	}

	blocklist := make(map[string]bool, len(cfg.Blocklist))
	for _, domain := range cfg.Blocklist {
		if host := links.Hostname(domain); host != "" {
			blocklist[host] = true
		}
	}

	return &Gate{
		cfg:       cfg,
		domains:   links.NormalizeDomainKeys(cfg.Domains),
		blocklist: blocklist,
	}
}

func (g *Gate) Placeholder() string {
	return g.cfg.Placeholder
}

func (g *Gate) AllowEmpty() bool {
	return g.cfg.AllowEmpty
}

// Check decides whether the item behind link may be imported. It never
// modifies the candidate; with AllowEmpty an under-threshold item is accepted
// and flagged so the caller substitutes the placeholder text.
func (g *Gate) Check(link string, c Candidate) Outcome {
	host := links.Hostname(link)
	if g.isBlocked(host) {
		return Outcome{Reason: ReasonBlocked}
	}

	minChars, minWords, requireImage := g.thresholds(host)

	reason := ""
	text := strings.TrimSpace(c.Text)
	switch {
	case utf8.RuneCountInString(text) < minChars:
		reason = ReasonShortText
	case CountWords(text) < minWords:
		reason = ReasonFewWords
	case requireImage && strings.TrimSpace(c.ImageURL) == "":
		reason = ReasonImageMissing
	}

	if reason == "" {
		return Outcome{Accepted: true}
	}
	if g.cfg.AllowEmpty {
		return Outcome{Accepted: true, Reason: reason, Placeholder: reason != ReasonImageMissing}
	}
	return Outcome{Reason: reason}
}

// Sufficient reports whether text alone passes the length thresholds for link.
func (g *Gate) Sufficient(link, text string) bool {
	minChars, minWords, _ := g.thresholds(links.Hostname(link))
	text = strings.TrimSpace(text)
	return utf8.RuneCountInString(text) >= minChars && CountWords(text) >= minWords
}

func (g *Gate) thresholds(host string) (int, int, bool) {
	minChars, minWords, requireImage := g.cfg.MinChars, g.cfg.MinWords, g.cfg.RequireImage

	rule, ok := links.MatchDomain(host, g.domains)
	if !ok {
		return minChars, minWords, requireImage
	}
	if rule.MinChars != nil {
		minChars = *rule.MinChars
	}
	if rule.MinWords != nil {
		minWords = *rule.MinWords
	}
	if rule.RequireImage != nil {
		requireImage = *rule.RequireImage
	}
	return minChars, minWords, requireImage
}

func (g *Gate) isBlocked(host string) bool {
	if host == "" || len(g.blocklist) == 0 {
		return false
	}
	_, ok := links.MatchDomain(host, g.blocklist)
	return ok
}

// CountWords counts whitespace-separated tokens that hold at least one letter or digit.
func CountWords(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		if strings.IndexFunc(field, isWordRune) >= 0 {
			count++
		}
	}
	return count
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
