// Package ingest loads the five raw input series from an Excel workbook.
//
// Each dataset lives on its own sheet. Row 1 holds date labels, column A holds
// security identifiers and the remaining cells hold numbers. Blank and "#N/A"
// style cells become Absent values.
package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/aristath/hxzfactors/internal/domain"
)

// DefaultSheets names the sheet holding each dataset
var DefaultSheets = map[domain.Dataset]string{
	domain.DatasetPrices:    "prices",
	domain.DatasetDividends: "dividends",
	domain.DatasetAssets:    "assets",
	domain.DatasetROE:       "roe",
	domain.DatasetMarketCap: "marketcap",
}

// ErrSheetNotFound means a required dataset sheet is missing from the workbook
var ErrSheetNotFound = errors.New("sheet not found")

// Options configures the workbook loader
type Options struct {
	// Sheets overrides DefaultSheets per dataset; names match case-insensitively
	Sheets map[domain.Dataset]string
}

var missingMarkers = map[string]bool{
	"":      true,
	"#n/a":  true,
	"n/a":   true,
	"na":    true,
	"nan":   true,
	"-":     true,
	"#null": true,
}

// Loader reads raw series from workbooks
type Loader struct {
	sheets map[domain.Dataset]string
	log    zerolog.Logger
}

// NewLoader creates a workbook loader
func NewLoader(opts Options, log zerolog.Logger) *Loader {
	sheets := make(map[domain.Dataset]string, len(DefaultSheets))
	for d, name := range DefaultSheets {
		sheets[d] = name
	}
	for d, name := range opts.Sheets {
		if strings.TrimSpace(name) != "" {
			sheets[d] = name
		}
	}
	return &Loader{
		sheets: sheets,
		log:    log.With().Str("component", "workbook_loader").Logger(),
	}
}

// LoadFile reads all datasets from the workbook at path
func (l *Loader) LoadFile(path string) (domain.Inputs, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	in, err := l.read(f)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("workbook %s: %w", path, err)
	}
	return in, nil
}

// Load reads all datasets from a workbook stream
func (l *Loader) Load(r io.Reader) (domain.Inputs, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()
	return l.read(f)
}

func (l *Loader) read(f *excelize.File) (domain.Inputs, error) {
	var in domain.Inputs
	for _, d := range domain.AllDatasets {
		sheet, ok := findSheet(f, l.sheets[d])
		if !ok {
			if d == domain.DatasetDividends {
				continue
			}
			return domain.Inputs{}, fmt.Errorf("%s: %q: %w", d, l.sheets[d], ErrSheetNotFound)
		}

		series, err := readSheet(f, sheet)
		if err != nil {
			return domain.Inputs{}, fmt.Errorf("%s: %w", d, err)
		}
		in.Set(d, series)

		l.log.Debug().
			Str("dataset", string(d)).
			Str("sheet", sheet).
			Int("securities", len(series)).
			Msg("Sheet loaded")
	}

	// A workbook without a dividend sheet means no security paid dividends
	if in.Dividends == nil {
		l.log.Info().Msg("No dividend sheet; treating dividends as zero")
		in.Dividends = make(domain.RawSeries, len(in.Prices))
		for id := range in.Prices {
			in.Dividends[id] = nil
		}
	}

	l.log.Info().Int("securities", len(in.Prices)).Msg("Workbook loaded")
	return in, nil
}

func findSheet(f *excelize.File, name string) (string, bool) {
	for _, sheet := range f.GetSheetList() {
		if strings.EqualFold(strings.TrimSpace(sheet), strings.TrimSpace(name)) {
			return sheet, true
		}
	}
	return "", false
}

// readSheet parses one dataset sheet. Column B is skipped as a descriptive
// column when its header is not a date and none of its cells hold a number.
func readSheet(f *excelize.File, sheet string) (domain.RawSeries, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	type column struct {
		index int
		date  domain.Observation
	}
	var columns []column
	for c := 1; c < len(rows[0]); c++ {
		label := rows[0][c]
		date, err := ParseDateLabel(label)
		if err != nil {
			if c == 1 && len(rows[0]) > 2 && isDescriptive(rows[1:], c) {
				continue
			}
			if strings.TrimSpace(label) == "" {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, 1)
			return nil, &DateLabelError{Sheet: sheet, Cell: cell, Label: label}
		}
		columns = append(columns, column{index: c, date: domain.Observation{Date: date}})
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("sheet %q has no date columns", sheet)
	}

	series := make(domain.RawSeries, len(rows)-1)
	for r := 1; r < len(rows); r++ {
		row := rows[r]
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		id := strings.TrimSpace(row[0])
		if _, dup := series[id]; dup {
			return nil, fmt.Errorf("sheet %q: security %s appears twice", sheet, id)
		}

		obs := make([]domain.Observation, len(columns))
		for k, col := range columns {
			obs[k] = col.date
			if col.index >= len(row) {
				obs[k].Value = domain.Absent()
				continue
			}
			v, err := parseCell(row[col.index])
			if err != nil {
				cell, _ := excelize.CoordinatesToCellName(col.index+1, r+1)
				return nil, fmt.Errorf("sheet %q cell %s: %w", sheet, cell, err)
			}
			obs[k].Value = v
		}
		series[id] = obs
	}
	return series, nil
}

// isDescriptive reports whether column c holds text only, such as security names
func isDescriptive(rows [][]string, c int) bool {
	for _, row := range rows {
		if c >= len(row) {
			continue
		}
		if v, err := parseCell(row[c]); err == nil && v.IsPresent() {
			return false
		}
	}
	return true
}

func parseCell(raw string) (domain.Value, error) {
	s := strings.TrimSpace(raw)
	if missingMarkers[strings.ToLower(s)] {
		return domain.Absent(), nil
	}
	x, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return domain.Absent(), fmt.Errorf("invalid number %q", raw)
	}
	// NaN and Inf collapse to Absent
	return domain.Present(x), nil
}
