package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/izotovlife/izotovlife.ru-sub000/app/cache"
	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
)

const (
	minPageParagraph  = 40
	maxPageParagraphs = 3

	// Expired failures are swept once the negative cache grows past this size.
	failedSweepSize = 512
)

var (
	ErrPageUnavailable = errors.New("page unavailable")

	containerPattern = regexp.MustCompile(`(?i)article|content|post`)
)

type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

type Page struct {
	URL      string
	Text     string
	ImageURL string
}

// PageExtractor scrapes the article page as a fallback for thin feed entries.
// URLs that failed recently are remembered in the negative cache and skipped.
type PageExtractor struct {
	fetcher PageFetcher
	failed  *cache.Cache[string]
}

func NewPageExtractor(f PageFetcher, failed *cache.Cache[string]) *PageExtractor {
	return &PageExtractor{
		fetcher: f,
		failed:  failed,
	}
}

func (p *PageExtractor) Extract(ctx context.Context, pageURL string) (*Page, error) {
	if p.failed != nil {
		if reason, ok := p.failed.Get(pageURL); ok {
			return nil, fmt.Errorf("%w: %s (cached)", ErrPageUnavailable, reason)
		}
	}

	page, err := p.extract(ctx, pageURL)
	if err != nil {
		if p.failed != nil && ctx.Err() == nil {
			if p.failed.Len() >= failedSweepSize {
				p.failed.Sweep()
			}
			p.failed.Set(pageURL, err.Error())
		}
		return nil, err
	}
	return page, nil
}

func (p *PageExtractor) extract(ctx context.Context, pageURL string) (*Page, error) {
	resp, err := p.fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageUnavailable, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%w: status %d", ErrPageUnavailable, resp.StatusCode)
	}

	page, err := ParsePage(resp.Body, resp.URL)
	if err != nil {
		return nil, err
	}
	if page.Text == "" && page.ImageURL == "" {
		return nil, fmt.Errorf("%w: no content found", ErrPageUnavailable)
	}

	slog.Debug("Page fallback extracted", "url", pageURL, "text_length", RuneLen(page.Text), "image", page.ImageURL != "")
	return page, nil
}

// ParsePage extracts the description text and the lead image of an article page.
// The meta description is preferred; container paragraphs are used without one.
func ParsePage(data []byte, pageURL string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	container := findContainer(doc)

	text := Normalize(metaContent(doc, "og:description", "description"))
	if text == "" {
		paragraphs := make([]string, 0, maxPageParagraphs)
		container.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			p := Normalize(SelectionText(s))
			if RuneLen(p) > minPageParagraph {
				paragraphs = append(paragraphs, p)
			}
			return len(paragraphs) < maxPageParagraphs
		})
		text = strings.Join(paragraphs, "\n\n")
	}

	image := ResolveURL(pageURL, metaContent(doc, "og:image", "twitter:image"))
	if image == "" {
		image = imageFrom(container.Find("img"), pageURL)
	}

	return &Page{
		URL:      pageURL,
		Text:     StripBoilerplate(text),
		ImageURL: image,
	}, nil
}

func findContainer(doc *goquery.Document) *goquery.Selection {
	if article := doc.Find("article").First(); article.Length() > 0 {
		return article
	}

	match := doc.Find("[id], [class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		class, _ := s.Attr("class")
		return containerPattern.MatchString(id + " " + class)
	}).First()
	if match.Length() > 0 {
		return match
	}

	return doc.Find("body")
}

// metaContent returns the first non-empty content of the named meta tags,
// matching both property= and name= attributes.
func metaContent(doc *goquery.Document, names ...string) string {
	for _, name := range names {
		for _, attr := range []string{"property", "name"} {
			value, ok := doc.Find(fmt.Sprintf(`meta[%s="%s"]`, attr, name)).First().Attr("content")
			if ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value)
			}
		}
	}
	return ""
}
