package content

import (
	"strings"

	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
)

type Config struct {
	MaxParagraphs int
	MaxChars      int
}

func DefaultConfig() Config {
	return Config{
		MaxParagraphs: DefaultMaxParagraphs,
		MaxChars:      DefaultMaxChars,
	}
}

type Extracted struct {
	Text     string // full cleaned text, used for quality decisions
	Summary  string // truncated text that is stored
	ImageURL string
}

type Extractor struct {
	cfg Config
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.MaxParagraphs <= 0 {
		cfg.MaxParagraphs = DefaultMaxParagraphs
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	return &Extractor{cfg: cfg}
}

// Extract cleans the entry text (content first, then summary) and picks its image.
func (e *Extractor) Extract(entry feed.Entry) Extracted {
	var result Extracted

	for _, raw := range []string{entry.Content, entry.Summary} {
		if text := ToText(raw); text != "" {
			result.Text = text
			break
		}
	}
	result.Summary = e.Summarize(result.Text)

	result.ImageURL = PickImage(entry.Images, entry.Link)
	if result.ImageURL == "" {
		for _, raw := range []string{entry.Content, entry.Summary} {
			if img := FirstImage(raw, entry.Link); img != "" {
				result.ImageURL = img
				break
			}
		}
	}

	return result
}

func (e *Extractor) Summarize(text string) string {
	return Truncate(strings.TrimSpace(text), e.cfg.MaxParagraphs, e.cfg.MaxChars)
}

// Merge applies a page fallback to feed-derived content. Text is replaced only
// by longer text; a missing image is filled in.
func (e *Extractor) Merge(current Extracted, page *Page) (Extracted, bool) {
	if page == nil {
		return current, false
	}

	improved := false
	if RuneLen(page.Text) > RuneLen(current.Text) {
		current.Text = page.Text
		current.Summary = e.Summarize(page.Text)
		improved = true
	}
	if current.ImageURL == "" && page.ImageURL != "" {
		current.ImageURL = page.ImageURL
		improved = true
	}

	return current, improved
}
