package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/izotovlife/izotovlife.ru-sub000/app/cache"
	"github.com/izotovlife/izotovlife.ru-sub000/app/content"
	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
	"github.com/izotovlife/izotovlife.ru-sub000/app/quality"
)

var longText = strings.Repeat("Длинный текст новости для проверки. ", 12)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test</title>
<link>%[1]s</link>
<description>Test feed</description>
%[2]s
</channel>
</rss>`

func rssItem(title, link, description string) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description><pubDate>Mon, 06 May 2024 10:00:00 +0000</pubDate></item>`,
		title, link, description)
}

type testEnv struct {
	db       *database.DB
	server   *httptest.Server
	pipeline *Pipeline
	items    *database.ItemRepo
	logs     *database.LogRepo
	sources  *database.SourceRepo
}

// newTestEnv starts a server with the given feeds (path -> item markup) and
// writes one source file per entry of sources (key -> YAML, "{server}" is
// replaced with the server URL).
func newTestEnv(t *testing.T, feeds map[string]func(base string) string, pages map[string]string, sources map[string]string) *testEnv {
	t.Helper()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	for path, items := range feeds {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, rssTemplate, server.URL, items(server.URL))
		})
	}
	for path, body := range pages {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		})
	}

	dir := t.TempDir()
	for key, data := range sources {
		data = strings.ReplaceAll(data, "{server}", server.URL)
		if err := os.WriteFile(filepath.Join(dir, key+".yml"), []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write source config: %v", err)
		}
	}
	configs := feed.NewConfigCache(dir)
	if err := configs.Run(); err != nil {
		t.Fatalf("Failed to load source configs: %v", err)
	}

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	f := fetcher.New(fetcher.Config{
		Default: fetcher.Policy{ConnectTimeout: time.Second, ReadTimeout: 2 * time.Second, Retries: 0},
		Backoff: time.Millisecond,
	})

	env := &testEnv{
		db:      db,
		server:  server,
		items:   database.NewItemRepository(db),
		logs:    database.NewLogRepository(db),
		sources: database.NewSourceRepository(db),
	}
	env.pipeline = NewPipeline(Deps{
		Configs:    configs,
		Sources:    env.sources,
		Items:      env.items,
		Categories: database.NewCategoryRepository(db),
		Logs:       env.logs,
		Fetcher:    f,
		Pages:      content.NewPageExtractor(f, cache.New[string](time.Minute)),
		Extractor:  content.NewExtractor(content.DefaultConfig()),
		Gate:       quality.NewGate(quality.DefaultConfig()),
	})
	return env
}

func (e *testEnv) run(t *testing.T, opts Options) Summary {
	t.Helper()
	summary, err := e.pipeline.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Expected run to succeed, got %v", err)
	}
	return summary
}

func TestPipelineRejectsShortText(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string { return rssItem("Тест новости", base+"/news/1", "Короткий текст") },
		},
		nil,
		map[string]string{"site": "name: Site\nurl: {server}/rss\nslug: site\nsettings:\n  enabled: true\n"},
	)

	summary := env.run(t, Options{})
	if summary.Added != 0 || summary.Skipped != 1 {
		t.Fatalf("Expected 0 added and 1 skipped, got %s", summary)
	}

	logs, err := env.logs.ListByRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("Failed to list logs: %v", err)
	}

	found := false
	for _, entry := range logs {
		if entry.Level == database.LevelInfo && entry.Message == quality.ReasonShortText && strings.HasSuffix(entry.Link, "/news/1") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected info log %q for /news/1, got %+v", quality.ReasonShortText, logs)
	}
}

func TestPipelineUsesPageFallback(t *testing.T) {
	description := strings.TrimSpace(strings.Repeat("слово ", 50))
	page := `<html><head><meta property="og:description" content="` + description + `"></head><body><p>short</p></body></html>`

	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string { return rssItem("Тест новости", base+"/news/2", "Короткий текст") },
		},
		map[string]string{"/news/2": page},
		map[string]string{"site": "name: Site\nurl: {server}/rss\nslug: site\nsettings:\n  enabled: true\n"},
	)

	summary := env.run(t, Options{})
	if summary.Added != 1 {
		t.Fatalf("Expected 1 added, got %s", summary)
	}

	item, err := env.items.GetBySlug(context.Background(), "site-test-novosti")
	if err != nil || item == nil {
		t.Fatalf("Expected item site-test-novosti, got %v (err %v)", item, err)
	}
	if item.CategoryName != "News feed" {
		t.Errorf("Expected category News feed, got %q", item.CategoryName)
	}
	if item.Summary != description {
		t.Errorf("Expected page description as summary, got %q", item.Summary)
	}
}

func TestPipelineIsIdempotent(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string {
				return rssItem("Первая", base+"/a?utm_source=rss", longText) +
					rssItem("Вторая", base+"/b", longText)
			},
		},
		nil,
		map[string]string{"site": "name: Site\nurl: {server}/rss\nslug: site\nsettings:\n  enabled: true\n"},
	)

	first := env.run(t, Options{})
	if first.Added != 2 || first.SourcesOK != 1 {
		t.Fatalf("Expected 2 added from 1 source, got %s", first)
	}

	second := env.run(t, Options{})
	if second.Added != 0 || second.Updated != 2 {
		t.Errorf("Expected second run to only update, got %s", second)
	}

	count, err := env.items.Count(context.Background(), database.ItemFilter{})
	if err != nil || count != 2 {
		t.Errorf("Expected 2 items, got %d (err %v)", count, err)
	}

	item, err := env.items.GetByLink(context.Background(), env.server.URL+"/a")
	if err != nil || item == nil {
		t.Fatalf("Expected item stored under canonical link, got %v (err %v)", item, err)
	}
	if !strings.HasPrefix(item.Slug, "site-") {
		t.Errorf("Expected slug with site prefix, got %s", item.Slug)
	}
	if first.NeedsReview() || second.NeedsReview() {
		t.Error("Expected runs without unexpected errors")
	}
}

func TestPipelineResolvesSlugCollisions(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string {
				return rssItem("Главное", base+"/a", longText) + rssItem("Главное", base+"/b", longText)
			},
		},
		nil,
		map[string]string{"tass": "name: TASS\nurl: {server}/rss\nslug: tass\nsettings:\n  enabled: true\n"},
	)

	summary := env.run(t, Options{})
	if summary.Added != 2 {
		t.Fatalf("Expected 2 added, got %s", summary)
	}

	for _, s := range []string{"tass-glavnoe", "tass-glavnoe-2"} {
		item, err := env.items.GetBySlug(context.Background(), s)
		if err != nil || item == nil {
			t.Errorf("Expected item %s, got %v (err %v)", s, item, err)
		}
	}
}

func TestPipelineSourceFailures(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string { return rssItem("Главное", base+"/a", longText) },
		},
		map[string]string{"/broken": "not a feed"},
		map[string]string{
			"good":    "name: Good\nurl: {server}/rss\nsettings:\n  enabled: true\n",
			"broken":  "name: Broken\nurl: {server}/broken\nsettings:\n  enabled: true\n",
			"missing": "name: Missing\nurl: {server}/missing\nsettings:\n  enabled: true\n",
			"off":     "name: Off\nurl: {server}/off\nsettings:\n  enabled: false\n",
		},
	)

	summary := env.run(t, Options{})
	if summary.SourcesOK != 1 || summary.SourcesFailed != 2 {
		t.Errorf("Expected 1 ok and 2 failed sources, got %s", summary)
	}
	if summary.Added != 1 {
		t.Errorf("Expected 1 added, got %s", summary)
	}
	if summary.NeedsReview() {
		t.Error("Expected source failures not to need review")
	}

	good, err := env.sources.GetByKey(context.Background(), "good")
	if err != nil || good == nil {
		t.Fatalf("Expected source good, got %v (err %v)", good, err)
	}
	if good.Slug != "good" {
		t.Errorf("Expected backfilled slug good, got %q", good.Slug)
	}
	if good.LastFetchedAt == nil {
		t.Error("Expected last fetched time to be set")
	}

	logs, err := env.logs.ListByRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("Failed to list logs: %v", err)
	}
	levels := map[string]database.LogLevel{}
	for _, entry := range logs {
		if entry.Source != "" && entry.Link == "" {
			levels[entry.Source] = entry.Level
		}
	}
	if levels["missing"] != database.LevelError {
		t.Errorf("Expected error log for missing feed, got %q", levels["missing"])
	}
	if levels["broken"] != database.LevelWarning {
		t.Errorf("Expected warning log for unparsable feed, got %q", levels["broken"])
	}
}

func TestPipelineOnly(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/one": func(base string) string { return rssItem("Один", base+"/1", longText) },
			"/two": func(base string) string { return rssItem("Два", base+"/2", longText) },
		},
		nil,
		map[string]string{
			"one": "name: One\nurl: {server}/one\nslug: one\nsettings:\n  enabled: true\n",
			"two": "name: Two\nurl: {server}/two\nslug: two\nsettings:\n  enabled: true\n",
		},
	)

	summary := env.run(t, Options{Only: []string{"two", "nope"}})
	if summary.Added != 1 || summary.SourcesOK != 1 {
		t.Errorf("Expected only source two to run, got %s", summary)
	}

	items, err := env.items.List(context.Background(), database.ItemFilter{SourceSlug: "two"})
	if err != nil || len(items) != 1 {
		t.Errorf("Expected 1 item from two, got %d (err %v)", len(items), err)
	}
}

func TestPipelineAllowEmpty(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string { return rssItem("Тест новости", base+"/news/1", "Короткий текст") },
		},
		nil,
		map[string]string{"site": "name: Site\nurl: {server}/rss\nslug: site\ncategory: Политика\nsettings:\n  enabled: true\n"},
	)

	cfg := quality.DefaultConfig()
	cfg.AllowEmpty = true
	env.pipeline.deps.Gate = quality.NewGate(cfg)

	summary := env.run(t, Options{})
	if summary.Added != 1 {
		t.Fatalf("Expected 1 added, got %s", summary)
	}

	item, err := env.items.GetBySlug(context.Background(), "site-test-novosti")
	if err != nil || item == nil {
		t.Fatalf("Expected item site-test-novosti, got %v (err %v)", item, err)
	}
	if item.Summary != quality.DefaultPlaceholder || !item.IsPlaceholder {
		t.Errorf("Expected placeholder summary, got %q (placeholder=%v)", item.Summary, item.IsPlaceholder)
	}
	if item.CategoryName != "Политика" {
		t.Errorf("Expected source category hint, got %q", item.CategoryName)
	}
}

func TestPipelineAppliesSourceFilters(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string {
				return rssItem("Главное за день", base+"/news/1", longText) +
					rssItem("Реклама вкладов", base+"/news/2", longText)
			},
		},
		nil,
		map[string]string{"site": "name: Site\nurl: {server}/rss\nslug: site\nsettings:\n  enabled: true\nfilters:\n  - field: title\n    excludes: [реклама]\n"},
	)

	summary := env.run(t, Options{})
	if summary.Added != 1 || summary.Skipped != 1 {
		t.Fatalf("Expected 1 added and 1 skipped, got %s", summary)
	}

	logs, err := env.logs.ListByRun(context.Background(), summary.RunID)
	if err != nil {
		t.Fatalf("Failed to list logs: %v", err)
	}
	found := false
	for _, entry := range logs {
		if strings.HasPrefix(entry.Message, "filtered: ") && strings.HasSuffix(entry.Link, "/news/2") {
			found = true
		}
	}
	if !found {
		t.Error("Expected a filtered log entry for /news/2")
	}
}

func TestPipelineKeepsStoredDateForUndatedEntries(t *testing.T) {
	env := newTestEnv(t,
		map[string]func(string) string{
			"/rss": func(base string) string {
				return fmt.Sprintf(`<item><title>Без даты</title><link>%s/news/1</link><description>%s</description></item>`, base, longText)
			},
		},
		nil,
		map[string]string{"site": "name: Site\nurl: {server}/rss\nslug: site\nsettings:\n  enabled: true\n"},
	)

	env.run(t, Options{})
	first, err := env.items.GetBySlug(context.Background(), "site-bez-daty")
	if err != nil || first == nil {
		t.Fatalf("Expected item site-bez-daty, got %v (err %v)", first, err)
	}

	time.Sleep(1100 * time.Millisecond)

	summary := env.run(t, Options{})
	if summary.Updated != 1 {
		t.Fatalf("Expected 1 updated, got %s", summary)
	}
	second, err := env.items.GetBySlug(context.Background(), "site-bez-daty")
	if err != nil || second == nil {
		t.Fatalf("Expected item site-bez-daty, got %v (err %v)", second, err)
	}
	if !second.PublishedAt.Equal(first.PublishedAt) {
		t.Errorf("Expected published_at %v to be kept, got %v", first.PublishedAt, second.PublishedAt)
	}
}
