package feed

import (
	"errors"
	"testing"
)

func TestParseRSS2(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <language>ru</language>
    <image>
      <url>https://example.com/icon.png</url>
      <title>Test Feed</title>
      <link>https://example.com</link>
    </image>
    <item>
      <title>Тест новости</title>
      <link>https://example.com/item1?utm_source=rss</link>
      <description><![CDATA[<p>Короткий текст.</p>]]></description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <author>test@example.com (Test Author)</author>
      <category>Политика</category>
      <category>Экономика</category>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>Test Item 2 Description</description>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(rssData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if metadata.Title != "Test Feed" {
		t.Errorf("Expected title 'Test Feed', got: %s", metadata.Title)
	}
	if metadata.Language != "ru" {
		t.Errorf("Expected language 'ru', got: %s", metadata.Language)
	}
	if metadata.ImageURL != "https://example.com/icon.png" {
		t.Errorf("Expected image URL 'https://example.com/icon.png', got: %s", metadata.ImageURL)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got: %d", len(entries))
	}

	entry := entries[0]
	if entry.Title != "Тест новости" {
		t.Errorf("Expected title 'Тест новости', got: %s", entry.Title)
	}
	if entry.Link != "https://example.com/item1?utm_source=rss" {
		t.Errorf("Expected raw link, got: %s", entry.Link)
	}
	if entry.Summary != "<p>Короткий текст.</p>" {
		t.Errorf("Expected HTML summary, got: %s", entry.Summary)
	}
	if entry.GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", entry.GUID)
	}
	if len(entry.Categories) != 2 || entry.Categories[0] != "Политика" {
		t.Errorf("Expected category hints, got: %v", entry.Categories)
	}
	if entry.PublishedAt == nil {
		t.Error("Expected published time")
	}

	if entries[1].GUID != "https://example.com/item2" {
		t.Errorf("Expected GUID to fall back to link, got: %s", entries[1].GUID)
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Test Atom Feed</title>
  <link href="https://example.com"/>
  <updated>2023-07-03T12:00:00Z</updated>
  <id>urn:uuid:1234567890</id>
  <entry>
    <title>Test Entry</title>
    <link href="https://example.com/entry1"/>
    <id>urn:uuid:entry-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
    <content type="html">&lt;p&gt;Test content&lt;/p&gt;</content>
  </entry>
</feed>`

	parser := NewParser()
	metadata, entries, err := parser.Run([]byte(atomData))

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if metadata.Title != "Test Atom Feed" {
		t.Errorf("Expected title 'Test Atom Feed', got: %s", metadata.Title)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got: %d", len(entries))
	}
	if entries[0].Link != "https://example.com/entry1" {
		t.Errorf("Expected link 'https://example.com/entry1', got: %s", entries[0].Link)
	}
	if entries[0].PublishedAt == nil {
		t.Error("Expected published time to fall back to updated")
	}
	if entries[0].Content == "" {
		t.Error("Expected content")
	}
}

func TestParseInvalidFeed(t *testing.T) {
	parser := NewParser()
	_, _, err := parser.Run([]byte("not a feed"))

	if err == nil {
		t.Error("Expected error for invalid feed")
	}
}

func TestParseEmptyFeed(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Empty</title><link>https://example.com</link></channel></rss>`

	parser := NewParser()
	_, _, err := parser.Run([]byte(rssData))

	if !errors.Is(err, ErrNoEntries) {
		t.Errorf("Expected ErrNoEntries, got: %v", err)
	}
}

func TestParseRSSImageHints(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Media Feed</title>
    <link>https://example.com</link>
    <item>
      <title>With media</title>
      <link>https://example.com/m1</link>
      <enclosure url="https://example.com/audio.mp3" length="1000" type="audio/mpeg"/>
      <media:content url="https://example.com/photo.jpg" medium="image"/>
      <media:group>
        <media:content url="https://example.com/group.jpg" type="image/jpeg"/>
      </media:group>
      <media:thumbnail url="https://example.com/thumb.jpg"/>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	hints := entries[0].Images
	if len(hints) != 4 {
		t.Fatalf("Expected 4 image hints, got: %d (%v)", len(hints), hints)
	}

	expected := []ImageHint{
		{URL: "https://example.com/audio.mp3", Type: "audio/mpeg", Origin: OriginEnclosure},
		{URL: "https://example.com/photo.jpg", Type: "image", Origin: OriginMediaContent},
		{URL: "https://example.com/group.jpg", Type: "image/jpeg", Origin: OriginMediaContent},
		{URL: "https://example.com/thumb.jpg", Origin: OriginMediaThumbnail},
	}
	for i, want := range expected {
		if hints[i] != want {
			t.Errorf("Hint %d: expected %+v, got %+v", i, want, hints[i])
		}
	}
}

func TestParseRSSWithHTMLEntities(t *testing.T) {
	rssData := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Entities</title>
    <link>https://example.com</link>
    <item>
      <title>Tom &amp; Jerry</title>
      <link>https://example.com/e1</link>
    </item>
  </channel>
</rss>`

	parser := NewParser()
	_, entries, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if entries[0].Title != "Tom & Jerry" {
		t.Errorf("Expected decoded title, got: %s", entries[0].Title)
	}
}
