package artifacts

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Summary holds the per-sample read counts extracted from an artifact's
// HTML summary. The totals feed resource sizing for the array job; a
// summary that exists but cannot be parsed is not fatal, callers fall
// back to default resources.
type Summary struct {
	Reads map[string]int64
}

// TotalReads is the read count across all samples.
func (s *Summary) TotalReads() int64 {
	var total int64
	for _, n := range s.Reads {
		total += n
	}
	return total
}

// ParseSummary reads the HTML summary at path and extracts the
// filename -> read count table.
func ParseSummary(path string) (*Summary, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening summary: %w", err)
	}
	defer fh.Close()

	doc, err := goquery.NewDocumentFromReader(fh)
	if err != nil {
		return nil, fmt.Errorf("parsing summary html: %w", err)
	}

	summary := &Summary{Reads: map[string]int64{}}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		name := strings.TrimSpace(cells.Eq(0).Text())
		count, err := parseCount(cells.Eq(1).Text())
		if name == "" || err != nil {
			return
		}
		summary.Reads[name] = count
	})

	if len(summary.Reads) == 0 {
		return nil, fmt.Errorf("summary %s has no per-sample read table", path)
	}
	return summary, nil
}

// parseCount parses a read count cell, tolerating thousands separators.
func parseCount(text string) (int64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	return strconv.ParseInt(cleaned, 10, 64)
}
