package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// DateLabelError reports a header cell that is not a recognizable date
type DateLabelError struct {
	Sheet string
	Cell  string
	Label string
}

func (e *DateLabelError) Error() string {
	return fmt.Sprintf("sheet %q cell %s: unrecognized date label %q", e.Sheet, e.Cell, e.Label)
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"01/02/2006",
	"1/2/2006",
	"01-02-06",
	"2006/01/02",
	"2006-01",
	"2006/01",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan-06",
	"02-Jan-2006",
	"2 January 2006",
}

// minExcelSerial is 1927-05-18; smaller numbers are rejected as headers
const minExcelSerial = 10000

var monthNames = map[string]time.Month{}

func init() {
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		monthNames[name] = m
		monthNames[name[:3]] = m
	}
	monthNames["sept"] = time.September
}

// Labels such as "2018june", "2018 Jun", "june2018" or "Jun_2018"
var (
	yearFirst  = regexp.MustCompile(`^(\d{4})[\s_\-]*([a-z]+)$`)
	monthFirst = regexp.MustCompile(`^([a-z]+)[\s_\-]*(\d{4})$`)
)

// ParseDateLabel normalizes a column header to a date. Month-only labels
// resolve to the first of the month; the pipeline keys on the month anyway.
func ParseDateLabel(label string) (time.Time, error) {
	s := strings.TrimSpace(label)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date label")
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		// Serials below minExcelSerial (1927) are bare years or counts, not dates
		if serial < minExcelSerial {
			return time.Time{}, fmt.Errorf("date label %q is not a date serial", s)
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("date label %q: %w", s, err)
		}
		return t, nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	lower := strings.ToLower(s)
	if m := yearFirst.FindStringSubmatch(lower); m != nil {
		if t, ok := yearMonth(m[1], m[2]); ok {
			return t, nil
		}
	}
	if m := monthFirst.FindStringSubmatch(lower); m != nil {
		if t, ok := yearMonth(m[2], m[1]); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date label %q", s)
}

func yearMonth(year, name string) (time.Time, bool) {
	month, ok := monthNames[name]
	if !ok {
		return time.Time{}, false
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(y, month, 1, 0, 0, 0, 0, time.UTC), true
}
