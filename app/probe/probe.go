package probe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/izotovlife/izotovlife.ru-sub000/app/cache"
	"github.com/izotovlife/izotovlife.ru-sub000/app/database"
	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
)

const (
	DefaultWorkers  = 16
	DefaultCacheTTL = 10 * time.Minute
)

const (
	StatusOK         = "ok"
	StatusBroken     = "broken"
	StatusNotImage   = "not_image"
	StatusError      = "error"
	StatusNotChecked = "not_checked"
)

type Requester interface {
	FetchWithPolicy(ctx context.Context, method, rawURL string, policy fetcher.Policy) (*fetcher.Response, error)
}

type Config struct {
	Workers        int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	CacheTTL       time.Duration
}

// Result is the outcome of probing one image URL.
type Result struct {
	URL         string
	Status      string
	StatusCode  int
	ContentType string
	Method      string
	Elapsed     time.Duration
	Error       string
}

// Row ties a probed image back to the item that references it.
type Row struct {
	ItemID int64
	Slug   string
	Link   string
	Result
}

type Prober struct {
	requester Requester
	policy    fetcher.Policy
	workers   int
	results   *cache.Cache[Result]
}

func NewProber(requester Requester, cfg Config) *Prober {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = fetcher.DefaultConnectTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = fetcher.DefaultReadTimeout
	}

	return &Prober{
		requester: requester,
		policy: fetcher.Policy{
			ConnectTimeout: cfg.ConnectTimeout,
			ReadTimeout:    cfg.ReadTimeout,
		},
		workers: cfg.Workers,
		results: cache.New[Result](cfg.CacheTTL),
	}
}

// Run probes every distinct image URL of refs with at most Workers requests
// in flight. On cancellation it stops starting new probes and returns the
// rows collected so far together with the context error; unprobed images
// are reported as not checked.
func (p *Prober) Run(ctx context.Context, refs []database.ImageRef) ([]Row, error) {
	urls := lo.Uniq(lo.Map(refs, func(ref database.ImageRef, _ int) string { return ref.ImageURL }))

	var mu sync.Mutex
	results := make(map[string]Result, len(urls))

	g := &errgroup.Group{}
	g.SetLimit(p.workers)

	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			result := p.Probe(ctx, u)
			if ctx.Err() != nil {
				return nil
			}
			mu.Lock()
			results[u] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	rows := make([]Row, 0, len(refs))
	for _, ref := range refs {
		result, ok := results[ref.ImageURL]
		if !ok {
			result = Result{URL: ref.ImageURL, Status: StatusNotChecked}
		}
		rows = append(rows, Row{ItemID: ref.ID, Slug: ref.Slug, Link: ref.Link, Result: result})
	}

	slog.Info("Image probe completed", "items", len(refs), "urls", len(urls), "probed", len(results))

	return rows, ctx.Err()
}

// Probe checks one URL with HEAD, falling back to GET when the server does not
// answer HEAD properly. Results are cached per URL; canceled probes are not.
func (p *Prober) Probe(ctx context.Context, rawURL string) Result {
	if result, ok := p.results.Get(rawURL); ok {
		return result
	}

	result := p.request(ctx, http.MethodHead, rawURL)
	if result.Status != StatusOK && ctx.Err() == nil {
		result = p.request(ctx, http.MethodGet, rawURL)
	}

	if ctx.Err() == nil {
		p.results.Set(rawURL, result)
	}
	return result
}

func (p *Prober) request(ctx context.Context, method, rawURL string) Result {
	result := Result{URL: rawURL, Method: method}

	resp, err := p.requester.FetchWithPolicy(ctx, method, rawURL, p.policy)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()

		var fetchErr *fetcher.FetchError
		if errors.As(err, &fetchErr) {
			result.Error = string(fetchErr.Kind) + ": " + fetchErr.Err.Error()
		}
		return result
	}

	result.StatusCode = resp.StatusCode
	result.Elapsed = resp.Elapsed
	result.ContentType = resp.Header.Get("Content-Type")

	switch {
	case !resp.OK():
		result.Status = StatusBroken
	case result.ContentType != "" && !strings.HasPrefix(strings.ToLower(result.ContentType), "image/"):
		result.Status = StatusNotImage
	default:
		result.Status = StatusOK
	}
	return result
}
