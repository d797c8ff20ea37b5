package feed

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/samber/lo"
)

var ErrNoEntries = errors.New("feed has no entries")

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses raw feed bytes. The parser never performs network requests itself.
func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
		Language:    feed.Language,
	}

	if feed.Image != nil {
		metadata.ImageURL = feed.Image.URL
	}

	if feed.PublishedParsed != nil {
		metadata.FeedPublishedAt = feed.PublishedParsed
	}

	if len(feed.Items) == 0 {
		return metadata, nil, ErrNoEntries
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.normalizeItem(item))
	}

	return metadata, entries, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Entry {
	entry := Entry{
		GUID:    cmp.Or(item.GUID, item.Link),
		Title:   strings.TrimSpace(item.Title),
		Link:    strings.TrimSpace(item.Link),
		Summary: item.Description,
		Content: item.Content,
	}

	if entry.Link == "" && len(item.Links) > 0 {
		entry.Link = strings.TrimSpace(item.Links[0])
	}

	entry.PublishedAt = cmp.Or(item.PublishedParsed, item.UpdatedParsed)
	entry.Authors = p.extractAuthors(item)

	for _, category := range item.Categories {
		if category = strings.TrimSpace(category); category != "" {
			entry.Categories = append(entry.Categories, category)
		}
	}

	entry.Images = p.extractImages(item)

	return entry
}

// extractImages collects image candidates in priority order: enclosures,
// media:content, media:thumbnail, then the item image.
func (p *Parser) extractImages(item *gofeed.Item) []ImageHint {
	var hints []ImageHint

	for _, enclosure := range item.Enclosures {
		if enclosure == nil || strings.TrimSpace(enclosure.URL) == "" {
			continue
		}
		hints = append(hints, ImageHint{
			URL:    strings.TrimSpace(enclosure.URL),
			Type:   enclosure.Type,
			Origin: OriginEnclosure,
		})
	}

	media := item.Extensions["media"]
	for _, content := range mediaElements(media, "content") {
		if url := content.Attrs["url"]; url != "" {
			hints = append(hints, ImageHint{
				URL:    url,
				Type:   cmp.Or(content.Attrs["type"], content.Attrs["medium"]),
				Origin: OriginMediaContent,
			})
		}
	}
	for _, thumbnail := range mediaElements(media, "thumbnail") {
		if url := thumbnail.Attrs["url"]; url != "" {
			hints = append(hints, ImageHint{URL: url, Origin: OriginMediaThumbnail})
		}
	}

	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		hints = append(hints, ImageHint{URL: strings.TrimSpace(item.Image.URL), Origin: OriginItemImage})
	}

	// gofeed derives item.Image from the same media elements; keep the first occurrence.
	return lo.UniqBy(hints, func(hint ImageHint) string { return hint.URL })
}

// mediaElements returns media:<name> elements, including the ones nested in media:group.
func mediaElements(media map[string][]ext.Extension, name string) []ext.Extension {
	if media == nil {
		return nil
	}

	elements := append([]ext.Extension{}, media[name]...)
	for _, group := range media["group"] {
		elements = append(elements, group.Children[name]...)
	}
	return elements
}

func (p *Parser) extractAuthors(item *gofeed.Item) []string {
	var authors []string

	if len(item.Authors) > 0 {
		for _, author := range item.Authors {
			if author != nil {
				authorStr := p.formatAuthor(author.Name, author.Email)
				if authorStr != "" {
					authors = append(authors, authorStr)
				}
			}
		}
	} else if item.Author != nil {
		authorStr := p.formatAuthor(item.Author.Name, item.Author.Email)
		if authorStr != "" {
			authors = append(authors, authorStr)
		}
	}

	return authors
}

func (p *Parser) formatAuthor(name, email string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name != "" && email != "" {
		return fmt.Sprintf("%s (%s)", email, name)
	} else if name != "" {
		return name
	} else if email != "" {
		return email
	}

	return ""
}
