// Package export renders leads as CSV for download.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fikircreative/prospector/internal/lead"
)

// ContentType is the MIME type of the rendered file.
const ContentType = "text/csv; charset=utf-8"

var header = []string{"Name", "Address", "Phone", "Website", "Rating", "City", "Country"}

// Filename returns the download name for an export created at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("prospector_leads_%d.csv", t.UnixMilli())
}

// WriteCSV writes a header and one row per lead. Every field is quoted and
// rows are separated by a bare newline with no trailing newline.
func WriteCSV(w io.Writer, leads []lead.Lead) error {
	lines := make([]string, 0, len(leads)+1)
	lines = append(lines, row(header))
	for _, l := range leads {
		lines = append(lines, row([]string{
			l.Name,
			deref(l.Address),
			deref(l.Phone),
			deref(l.Website),
			formatRating(l.Rating),
			l.City,
			l.Country,
		}))
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func row(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(quoted, ",")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatRating(r *float64) string {
	if r == nil {
		return ""
	}
	return strconv.FormatFloat(*r, 'f', 1, 64)
}
