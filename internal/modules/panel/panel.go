// Package panel aligns the five raw input series into one security x month grid.
package panel

import (
	"github.com/aristath/hxzfactors/internal/domain"
)

// Field selects one of the aligned series
type Field int

const (
	FieldPrice Field = iota
	FieldDividends
	FieldAssets
	FieldROE
	FieldMarketCap
	fieldCount
)

func (f Field) String() string {
	switch f {
	case FieldPrice:
		return "price"
	case FieldDividends:
		return "dividends"
	case FieldAssets:
		return "assets"
	case FieldROE:
		return "roe"
	case FieldMarketCap:
		return "marketcap"
	}
	return "unknown"
}

// Panel is the aligned, read-only SecurityPanel. All fields share the same
// security set and month axis; missing cells hold domain.Absent.
type Panel struct {
	securities []string
	months     []domain.Month
	monthIndex map[domain.Month]int
	cells      [fieldCount][][]domain.Value // [field][security][month]
}

// Securities returns the sorted security identifiers
func (p *Panel) Securities() []string {
	out := make([]string, len(p.securities))
	copy(out, p.securities)
	return out
}

// Months returns the ascending month axis
func (p *Panel) Months() []domain.Month {
	out := make([]domain.Month, len(p.months))
	copy(out, p.months)
	return out
}

// NumSecurities returns the cross-section size
func (p *Panel) NumSecurities() int {
	return len(p.securities)
}

// NumMonths returns the length of the month axis
func (p *Panel) NumMonths() int {
	return len(p.months)
}

// Security returns the identifier at row i
func (p *Panel) Security(i int) string {
	return p.securities[i]
}

// Month returns the month at axis position t
func (p *Panel) Month(t int) domain.Month {
	return p.months[t]
}

// IndexOf returns the axis position of m
func (p *Panel) IndexOf(m domain.Month) (int, bool) {
	t, ok := p.monthIndex[m]
	return t, ok
}

// Cell returns field f for security row i at axis position t
func (p *Panel) Cell(f Field, i, t int) domain.Value {
	return p.cells[f][i][t]
}

// At returns field f for security row i in calendar month m; months off the
// axis are Absent
func (p *Panel) At(f Field, i int, m domain.Month) domain.Value {
	t, ok := p.monthIndex[m]
	if !ok {
		return domain.Absent()
	}
	return p.cells[f][i][t]
}
