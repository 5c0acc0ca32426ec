package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrEmptyPanel is returned when no month survives alignment
var ErrEmptyPanel = errors.New("panel has no securities or no common months")

// AlignmentError reports input series that disagree on security identifiers.
// It is fatal: no partial result is produced.
type AlignmentError struct {
	Series  string   // Series compared against the reference (prices)
	Missing []string // In prices but not in Series
	Extra   []string // In Series but not in prices
}

func (e *AlignmentError) Error() string {
	parts := []string{fmt.Sprintf("series %q does not match price securities", e.Series)}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "extra "+strings.Join(e.Extra, ","))
	}
	return strings.Join(parts, ": ")
}

// NewAlignmentError builds an AlignmentError with sorted id lists
func NewAlignmentError(series string, missing, extra []string) *AlignmentError {
	sort.Strings(missing)
	sort.Strings(extra)
	return &AlignmentError{Series: series, Missing: missing, Extra: extra}
}

// InsufficientHistoryError marks a month that lacks the 12 months of history
// needed for lagged assets. Soft: the month's I/A is absent and the run continues.
type InsufficientHistoryError struct {
	Month    Month
	Required Month // Month whose assets would be needed
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("month %s: lagged assets need %s, which is outside the panel", e.Month, e.Required)
}

// EmptyPortfolioWarning marks a label with no members (or zero total weight)
// in a month. Soft: the portfolio return is absent.
type EmptyPortfolioWarning struct {
	Month   Month
	Label   string
	Members int
}

func (e *EmptyPortfolioWarning) Error() string {
	if e.Members == 0 {
		return fmt.Sprintf("month %s: portfolio %s has no members", e.Month, e.Label)
	}
	return fmt.Sprintf("month %s: portfolio %s has %d members but zero usable weight", e.Month, e.Label, e.Members)
}
