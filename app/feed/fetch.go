package feed

import (
	"context"
	"fmt"

	"github.com/izotovlife/izotovlife.ru-sub000/app/fetcher"
)

type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// StatusError reports a feed request that ended with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed %s returned status %d", e.URL, e.StatusCode)
}

// FetchEntries downloads the feed through f and parses the bytes.
func FetchEntries(ctx context.Context, f Fetcher, parser *Parser, feedURL string) (*Metadata, []Entry, error) {
	resp, err := f.Get(ctx, feedURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	if !resp.OK() {
		return nil, nil, &StatusError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	return parser.Run(resp.Body)
}
