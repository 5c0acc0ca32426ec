// Package testing provides fixtures and helpers shared by the factor tests.
package testing

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/hxzfactors/internal/domain"
)

// InputsBuilder assembles synthetic raw series on a contiguous monthly calendar.
// Observations are dated on the last day of each month. NaN marks a blank cell.
type InputsBuilder struct {
	start  domain.Month
	months int
	in     domain.Inputs
}

// NewInputsBuilder creates a builder covering months consecutive months from start
func NewInputsBuilder(start domain.Month, months int) *InputsBuilder {
	b := &InputsBuilder{start: start, months: months}
	for _, d := range domain.AllDatasets {
		b.in.Set(d, domain.RawSeries{})
	}
	return b
}

// Months returns the calendar covered by the builder
func (b *InputsBuilder) Months() []domain.Month {
	out := make([]domain.Month, b.months)
	for t := range out {
		out[t] = b.start.AddMonths(t)
	}
	return out
}

// AddSecurity registers a security whose five series are constant over the calendar
func (b *InputsBuilder) AddSecurity(id string, price, dividends, assets, roe, marketCap float64) *InputsBuilder {
	b.Constant(domain.DatasetPrices, id, price)
	b.Constant(domain.DatasetDividends, id, dividends)
	b.Constant(domain.DatasetAssets, id, assets)
	b.Constant(domain.DatasetROE, id, roe)
	b.Constant(domain.DatasetMarketCap, id, marketCap)
	return b
}

// Constant sets every month of one series to v
func (b *InputsBuilder) Constant(d domain.Dataset, id string, v float64) *InputsBuilder {
	values := make([]float64, b.months)
	for t := range values {
		values[t] = v
	}
	return b.Set(d, id, values...)
}

// Set replaces one series with one value per month; it panics on a length
// mismatch so fixtures fail loudly
func (b *InputsBuilder) Set(d domain.Dataset, id string, values ...float64) *InputsBuilder {
	if len(values) != b.months {
		panic(fmt.Sprintf("fixture %s/%s: got %d values for %d months", d, id, len(values), b.months))
	}
	obs := make([]domain.Observation, b.months)
	for t, v := range values {
		obs[t] = domain.Observation{Date: b.start.AddMonths(t).End(), Value: domain.Present(v)}
	}
	b.in.Series(d)[id] = obs
	return b
}

// SetAt overrides a single month of one series
func (b *InputsBuilder) SetAt(d domain.Dataset, id string, t int, v float64) *InputsBuilder {
	b.in.Series(d)[id][t].Value = domain.Present(v)
	return b
}

// Inputs returns the assembled series
func (b *InputsBuilder) Inputs() domain.Inputs {
	return b.in
}

// NaN is shorthand for a blank cell in fixture tables
var NaN = math.NaN()

// TwentySecurityGrowth builds 24 months (2017-01..2018-12) for S01..S20.
//
// Assets are 100 for the first year and 100+i for the second, so from month
// 13 on I/A = i/100. ROE = ((7i mod 20)+1)/100 and market cap
// 1000 + 10*(3i mod 20) are constant, which leaves two labels empty:
// Small-High_IA-High_ROE and Big-High_IA-Low_ROE. Prices compound at 1%, 2%
// or 3% a month by investment tercile (S01-S06, S07-S14, S15-S20).
func TwentySecurityGrowth() *InputsBuilder {
	b := NewInputsBuilder(domain.NewMonth(2017, time.January), 24)
	for i := 1; i <= 20; i++ {
		id := fmt.Sprintf("S%02d", i)
		roe := float64((7*i)%20+1) / 100
		mcap := 1000 + 10*float64((3*i)%20)
		b.AddSecurity(id, 10, 0, 100, roe, mcap)

		growth := 0.02
		switch {
		case i <= 6:
			growth = 0.01
		case i >= 15:
			growth = 0.03
		}
		prices := make([]float64, 24)
		for t := range prices {
			prices[t] = 10 * math.Pow(1+growth, float64(t))
		}
		b.Set(domain.DatasetPrices, id, prices...)
		for t := 12; t < 24; t++ {
			b.SetAt(domain.DatasetAssets, id, t, 100+float64(i))
		}
	}
	return b
}
