package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/izotovlife/izotovlife.ru-sub000/app/content"
	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/feed"
	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
	"github.com/izotovlife/izotovlife.ru-sub000/app/links"
	"github.com/izotovlife/izotovlife.ru-sub000/app/quality"
	"github.com/izotovlife/izotovlife.ru-sub000/app/slug"
)

// PageSource fetches the article page behind a feed entry.
type PageSource interface {
	Extract(ctx context.Context, pageURL string) (*content.Page, error)
}

type Deps struct {
	Configs         *feed.ConfigCache
	Sources         database.SourceRepository
	Items           database.ItemRepository
	Categories      database.CategoryRepository
	Logs            database.LogRepository
	Fetcher         feed.Fetcher
	Pages           PageSource
	Extractor       *content.Extractor
	Gate            *quality.Gate
	DefaultCategory string
}

type Options struct {
	Only []string // source slugs or keys; empty means every active source
}

// Pipeline runs fetch, parse, extract, gate and upsert for each active source.
// Sources are processed one after another.
type Pipeline struct {
	deps     Deps
	parser   *feed.Parser
	upserter *Upserter
}

func NewPipeline(deps Deps) *Pipeline {
	if deps.Extractor == nil {
		deps.Extractor = content.NewExtractor(content.DefaultConfig())
	}
	if deps.Gate == nil {
		deps.Gate = quality.NewGate(quality.DefaultConfig())
	}
	if deps.DefaultCategory == "" {
		deps.DefaultCategory = "News feed"
	}

	return &Pipeline{
		deps:     deps,
		parser:   feed.NewParser(),
		upserter: NewUpserter(deps.Items),
	}
}

type run struct {
	id         string
	summary    *Summary
	categories map[string]int64
}

func (p *Pipeline) Run(ctx context.Context, opts Options) (Summary, error) {
	summary := Summary{RunID: uuid.NewString()}
	r := &run{id: summary.RunID, summary: &summary, categories: make(map[string]int64)}
	started := time.Now()

	if err := p.syncSources(ctx, r); err != nil {
		return summary, err
	}

	sources, err := p.deps.Sources.List(ctx, true)
	if err != nil {
		return summary, err
	}
	sources = p.selectSources(ctx, r, sources, opts.Only)

	p.record(ctx, r, database.LevelInfo, "", "", fmt.Sprintf("run started with %d sources", len(sources)))

	for i := range sources {
		if err := ctx.Err(); err != nil {
			p.record(ctx, r, database.LevelWarning, "", "", "run canceled")
			return summary, err
		}
		p.processSource(ctx, r, &sources[i])
	}

	p.record(ctx, r, database.LevelInfo, "", "", "run finished: "+summary.String())

	slog.Info("Ingestion completed",
		"run", r.id,
		"duration", time.Since(started),
		"added", summary.Added,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"unexpected", summary.Unexpected,
		"sources_ok", summary.SourcesOK,
		"sources_failed", summary.SourcesFailed)

	return summary, ctx.Err()
}

// syncSources writes the source configuration into the database and assigns
// slugs to sources that have none.
func (p *Pipeline) syncSources(ctx context.Context, r *run) error {
	if p.deps.Configs != nil {
		for _, cfg := range p.deps.Configs.GetConfigs() {
			_, err := p.deps.Sources.Sync(ctx, database.SourceState{
				Key:          cfg.Key,
				Name:         cfg.Name,
				FeedURL:      cfg.URL,
				Slug:         cfg.Slug,
				IsActive:     cfg.Settings.Enabled,
				CategoryHint: cfg.Category,
			})
			if err != nil {
				p.record(ctx, r, database.LevelError, cfg.Key, "", err.Error())
			}
		}
	}

	sources, err := p.deps.Sources.List(ctx, false)
	if err != nil {
		return err
	}

	for _, source := range sources {
		if source.Slug != "" {
			continue
		}
		assigned, err := p.backfillSlug(ctx, source)
		if err != nil {
			p.record(ctx, r, database.LevelError, source.Key, "", err.Error())
			continue
		}
		slog.Info("Source slug assigned", "source", source.Key, "slug", assigned)
	}
	return nil
}

func (p *Pipeline) backfillSlug(ctx context.Context, source database.Source) (string, error) {
	base := slug.Truncate(slug.ForName(source.Name, slug.ForName(source.Key, "source")), slug.MaxPrefixLength)

	for n := 1; n <= maxSlugAttempts; n++ {
		candidate := slug.Suffixed(base, n)

		taken, err := p.deps.Sources.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}

		err = p.deps.Sources.SetSlug(ctx, source.ID, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, database.ErrDuplicate) {
			return "", err
		}
	}
	return "", fmt.Errorf("failed to find a free slug for source %s", source.Key)
}

func (p *Pipeline) selectSources(ctx context.Context, r *run, sources []database.Source, only []string) []database.Source {
	if len(only) == 0 {
		return sources
	}

	selected := lo.Filter(sources, func(s database.Source, _ int) bool {
		return lo.Contains(only, s.Slug) || lo.Contains(only, s.Key)
	})

	for _, name := range only {
		if !lo.ContainsBy(selected, func(s database.Source) bool { return s.Slug == name || s.Key == name }) {
			p.record(ctx, r, database.LevelWarning, name, "", "requested source is unknown or inactive")
		}
	}
	return selected
}

func (p *Pipeline) processSource(ctx context.Context, r *run, source *database.Source) {
	defer func() {
		if rec := recover(); rec != nil {
			r.summary.Unexpected++
			r.summary.SourcesFailed++
			p.record(ctx, r, database.LevelError, source.Slug, "", fmt.Sprintf("unexpected error: %v", rec))
			slog.Error("Unexpected error while processing source", "source", source.Slug, "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	started := time.Now()

	_, entries, err := feed.FetchEntries(ctx, p.deps.Fetcher, p.parser, source.FeedURL)
	if err != nil {
		r.summary.SourcesFailed++
		p.record(ctx, r, sourceErrorLevel(err), source.Slug, "", err.Error())
		return
	}

	if err := p.deps.Sources.Touch(ctx, source.ID, time.Now()); err != nil {
		slog.Warn("Failed to update source fetch time", "source", source.Slug, "error", err)
	}

	var sourceConfig *feed.Config
	if p.deps.Configs != nil {
		sourceConfig, _ = p.deps.Configs.GetConfig(source.Key)
	}

	var rules feed.Rules
	maxItems := feed.DefaultMaxItems
	if sourceConfig != nil {
		rules = feed.CompileRules(sourceConfig.Filters)
		if sourceConfig.Settings.MaxItems > 0 {
			maxItems = sourceConfig.Settings.MaxItems
		}
	}

	before := *r.summary
	processed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if reason := rules.Reject(entry); reason != "" {
			r.summary.Skipped++
			p.record(ctx, r, database.LevelInfo, source.Slug, entry.Link, "filtered: "+reason)
			continue
		}
		if processed >= maxItems {
			break
		}
		processed++
		p.processEntry(ctx, r, source, entry)
	}

	r.summary.SourcesOK++

	slog.Info("Source processed",
		"source", source.Slug,
		"duration", time.Since(started),
		"entries", len(entries),
		"added", r.summary.Added-before.Added,
		"updated", r.summary.Updated-before.Updated,
		"skipped", r.summary.Skipped-before.Skipped,
		"failed", r.summary.Failed-before.Failed)
}

func (p *Pipeline) processEntry(ctx context.Context, r *run, source *database.Source, entry feed.Entry) {
	defer func() {
		if rec := recover(); rec != nil {
			r.summary.Unexpected++
			p.record(ctx, r, database.LevelError, source.Slug, entry.Link, fmt.Sprintf("unexpected error: %v", rec))
			slog.Error("Unexpected error while processing entry", "source", source.Slug, "link", entry.Link, "panic", rec, "stack", string(debug.Stack()))
		}
	}()

	link, err := links.CanonicalLink(entry.Link)
	if err != nil {
		r.summary.Skipped++
		p.record(ctx, r, database.LevelWarning, source.Slug, entry.Link, "invalid link: "+err.Error())
		return
	}

	title := content.ToText(entry.Title)
	if title == "" {
		r.summary.Skipped++
		p.record(ctx, r, database.LevelWarning, source.Slug, link, "missing title")
		return
	}

	extracted := p.deps.Extractor.Extract(entry)
	if p.deps.Pages != nil && (!p.deps.Gate.Sufficient(link, extracted.Text) || extracted.ImageURL == "") {
		page, err := p.deps.Pages.Extract(ctx, entry.Link)
		if err != nil {
			slog.Debug("Page fallback unavailable", "link", entry.Link, "error", err)
		} else if merged, improved := p.deps.Extractor.Merge(extracted, page); improved {
			extracted = merged
			slog.Debug("Page fallback applied", "link", link)
		}
	}

	outcome := p.deps.Gate.Check(link, quality.Candidate{Text: extracted.Text, ImageURL: extracted.ImageURL})
	if !outcome.Accepted {
		r.summary.Skipped++
		p.record(ctx, r, database.LevelInfo, source.Slug, link, outcome.Reason)
		return
	}

	summaryText := extracted.Summary
	if outcome.Placeholder {
		summaryText = p.deps.Gate.Placeholder()
	}

	categoryID, err := p.categoryID(ctx, r, p.categoryHint(source, entry))
	if err != nil {
		r.summary.Failed++
		p.record(ctx, r, database.LevelError, source.Slug, link, err.Error())
		return
	}

	var published time.Time
	if entry.PublishedAt != nil {
		published = *entry.PublishedAt
	}

	item, created, err := p.upserter.Upsert(ctx, Candidate{
		Title:         title,
		Link:          link,
		Summary:       summaryText,
		ImageURL:      extracted.ImageURL,
		PublishedAt:   published,
		Source:        source,
		CategoryID:    &categoryID,
		IsPlaceholder: outcome.Placeholder,
	})
	if err != nil {
		r.summary.Failed++
		p.record(ctx, r, database.LevelError, source.Slug, link, err.Error())
		return
	}

	if created {
		r.summary.Added++
		slog.Debug("Item created", "source", source.Slug, "slug", item.Slug)
	} else {
		r.summary.Updated++
		slog.Debug("Item updated", "source", source.Slug, "slug", item.Slug)
	}
	if outcome.Placeholder {
		p.record(ctx, r, database.LevelWarning, source.Slug, link, "imported with placeholder: "+outcome.Reason)
	}
}

func (p *Pipeline) categoryHint(source *database.Source, entry feed.Entry) string {
	if hint, ok := lo.Find(entry.Categories, func(c string) bool { return strings.TrimSpace(c) != "" }); ok {
		return strings.TrimSpace(hint)
	}
	if hint := strings.TrimSpace(source.CategoryHint); hint != "" {
		return hint
	}
	return p.deps.DefaultCategory
}

func (p *Pipeline) categoryID(ctx context.Context, r *run, name string) (int64, error) {
	if id, ok := r.categories[name]; ok {
		return id, nil
	}
	category, err := p.deps.Categories.GetOrCreate(ctx, name)
	if err != nil {
		return 0, err
	}
	r.categories[name] = category.ID
	return category.ID, nil
}

// record writes a notable event to slog and to the operation log of the run.
func (p *Pipeline) record(ctx context.Context, r *run, level database.LogLevel, source, link, message string) {
	attrs := []any{"run", r.id, "source", source, "link", link}
	switch level {
	case database.LevelError:
		slog.Error(message, attrs...)
	case database.LevelWarning:
		slog.Warn(message, attrs...)
	default:
		slog.Info(message, attrs...)
	}

	if p.deps.Logs == nil {
		return
	}
	err := p.deps.Logs.Add(context.WithoutCancel(ctx), database.OperationLog{
		RunID:   r.id,
		Level:   level,
		Source:  source,
		Link:    link,
		Message: message,
	})
	if err != nil {
		slog.Warn("Failed to write operation log", "error", err)
	}
}

// sourceErrorLevel separates network failures from unusable feed content.
func sourceErrorLevel(err error) database.LogLevel {
	var fetchErr *fetcher.FetchError
	var statusErr *feed.StatusError
	if errors.As(err, &fetchErr) || errors.As(err, &statusErr) {
		return database.LevelError
	}
	return database.LevelWarning
}
