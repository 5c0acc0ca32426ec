package panel

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/domain"
)

// Options controls how less frequent series are spread over the month axis
type Options struct {
	// MaxFillMonths forward-fills assets and ROE from the last reported value for
	// at most this many axis months. Zero leaves non-reporting months absent.
	MaxFillMonths int `json:"max_fill_months"`
}

// Builder assembles a Panel from raw series
type Builder struct {
	opts Options
	log  zerolog.Logger
}

// NewBuilder creates a panel builder
func NewBuilder(opts Options, log zerolog.Logger) *Builder {
	return &Builder{
		opts: opts,
		log:  log.With().Str("component", "panel_builder").Logger(),
	}
}

// Build normalizes every date label to its month, checks that all five series
// cover the same securities and aligns them on the months reported by both
// prices and market cap.
func (b *Builder) Build(in domain.Inputs) (*Panel, error) {
	if err := checkAlignment(in); err != nil {
		return nil, err
	}

	securities := in.Prices.Securities()
	sort.Strings(securities)

	priceMonths := calendar(in.Prices)
	capMonths := calendar(in.MarketCap)
	months := make([]domain.Month, 0, len(priceMonths))
	for m := range priceMonths {
		if capMonths[m] {
			months = append(months, m)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	if len(securities) == 0 || len(months) == 0 {
		return nil, domain.ErrEmptyPanel
	}

	p := &Panel{
		securities: securities,
		months:     months,
		monthIndex: make(map[domain.Month]int, len(months)),
	}
	for t, m := range months {
		p.monthIndex[m] = t
	}

	dividendCalendar := calendar(in.Dividends)

	for f := Field(0); f < fieldCount; f++ {
		raw := in.Series(datasetFor(f))
		grid := make([][]domain.Value, len(securities))
		for i, id := range securities {
			observed := byMonth(raw[id])
			row := make([]domain.Value, len(months))
			for t, m := range months {
				v, ok := observed[m]
				switch {
				case ok:
					row[t] = v
				case f == FieldDividends && !dividendCalendar[m]:
					// No dividend report that month: treated as nothing paid
					row[t] = domain.Present(0)
				default:
					row[t] = domain.Absent()
				}
			}
			if (f == FieldAssets || f == FieldROE) && b.opts.MaxFillMonths > 0 {
				forwardFill(row, b.opts.MaxFillMonths)
			}
			grid[i] = row
		}
		p.cells[f] = grid
	}

	b.log.Debug().
		Int("securities", len(securities)).
		Int("months", len(months)).
		Str("first", months[0].String()).
		Str("last", months[len(months)-1].String()).
		Msg("Panel aligned")

	return p, nil
}

func datasetFor(f Field) domain.Dataset {
	switch f {
	case FieldPrice:
		return domain.DatasetPrices
	case FieldDividends:
		return domain.DatasetDividends
	case FieldAssets:
		return domain.DatasetAssets
	case FieldROE:
		return domain.DatasetROE
	default:
		return domain.DatasetMarketCap
	}
}

// checkAlignment compares every series' security set against prices
func checkAlignment(in domain.Inputs) error {
	reference := make(map[string]bool, len(in.Prices))
	for id := range in.Prices {
		reference[id] = true
	}

	for _, d := range domain.AllDatasets[1:] {
		series := in.Series(d)
		var missing, extra []string
		for id := range reference {
			if _, ok := series[id]; !ok {
				missing = append(missing, id)
			}
		}
		for id := range series {
			if !reference[id] {
				extra = append(extra, id)
			}
		}
		if len(missing) > 0 || len(extra) > 0 {
			return fmt.Errorf("failed to align panel: %w", domain.NewAlignmentError(string(d), missing, extra))
		}
	}
	return nil
}

// calendar returns every month that appears in the series
func calendar(s domain.RawSeries) map[domain.Month]bool {
	months := make(map[domain.Month]bool)
	for _, obs := range s {
		for _, o := range obs {
			months[domain.MonthOf(o.Date)] = true
		}
	}
	return months
}

// byMonth keys observations by month; when a month holds several observations
// the latest-dated present one wins. A month is Absent only if nothing in it was reported.
func byMonth(obs []domain.Observation) map[domain.Month]domain.Value {
	sorted := make([]domain.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	out := make(map[domain.Month]domain.Value, len(sorted))
	for _, o := range sorted {
		m := domain.MonthOf(o.Date)
		if _, seen := out[m]; seen && !o.Value.IsPresent() {
			continue
		}
		out[m] = o.Value
	}
	return out
}

// forwardFill carries the last reported value over at most limit absent cells
func forwardFill(row []domain.Value, limit int) {
	last := domain.Absent()
	gap := 0
	for t, v := range row {
		if v.IsPresent() {
			last = v
			gap = 0
			continue
		}
		gap++
		if last.IsPresent() && gap <= limit {
			row[t] = last
		}
	}
}
