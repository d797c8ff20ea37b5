package probe

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var reportHeader = []string{"item_id", "slug", "link", "image_url", "status", "http_status", "content_type", "method", "elapsed_ms", "error"}

func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(reportHeader); err != nil {
		return fmt.Errorf("failed to write report header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.ItemID, 10),
			row.Slug,
			row.Link,
			row.URL,
			row.Status,
			strconv.Itoa(row.StatusCode),
			row.ContentType,
			row.Method,
			strconv.FormatInt(row.Elapsed.Milliseconds(), 10),
			row.Error,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write report row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush report: %w", err)
	}
	return nil
}

// Counts returns the number of rows per status.
func Counts(rows []Row) map[string]int {
	counts := make(map[string]int)
	for _, row := range rows {
		counts[row.Status]++
	}
	return counts
}
