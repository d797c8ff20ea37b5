package ingest

import "fmt"

// Summary counts the outcomes of one ingestion run.
type Summary struct {
	RunID         string
	Added         int
	Updated       int
	Skipped       int
	Failed        int
	Unexpected    int
	SourcesOK     int
	SourcesFailed int
}

// NeedsReview is true only when processing hit an unexpected (recovered) error.
func (s Summary) NeedsReview() bool {
	return s.Unexpected > 0
}

func (s Summary) String() string {
	return fmt.Sprintf("added=%d updated=%d skipped=%d failed=%d unexpected=%d sources_ok=%d sources_failed=%d",
		s.Added, s.Updated, s.Skipped, s.Failed, s.Unexpected, s.SourcesOK, s.SourcesFailed)
}
