// Package aggregation turns a month's labelled cross-section into the 18
// value-weighted portfolio returns.
package aggregation

import (
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/classification"
	"github.com/aristath/hxzfactors/pkg/formulas"
)

// Holding is one labelled security with its formation-month weight and the
// return realized over the following month
type Holding struct {
	Security      string
	Label         classification.Label
	Weight        domain.Value // market cap at formation
	ForwardReturn domain.Value
}

// Portfolio is one label's value-weighted result for a month
type Portfolio struct {
	Label   classification.Label `json:"label"`
	Members []string             `json:"members"`
	// Contributing counts members with both a forward return and a weight
	Contributing int          `json:"contributing"`
	TotalWeight  float64      `json:"total_weight"`
	Return       domain.Value `json:"return"`
}

// Empty reports whether the portfolio produced no return
func (p Portfolio) Empty() bool {
	return !p.Return.IsPresent()
}

// Aggregator computes portfolio returns
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a portfolio aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{log: log.With().Str("component", "aggregator").Logger()}
}

// Aggregate returns all 18 portfolios in classification.AllLabels order.
// A label with no contributing members, or zero total weight, gets an absent
// return and an EmptyPortfolioWarning.
func (a *Aggregator) Aggregate(month domain.Month, holdings []Holding) ([]Portfolio, []error) {
	byLabel := make(map[classification.Label][]Holding)
	for _, h := range holdings {
		byLabel[h.Label] = append(byLabel[h.Label], h)
	}

	labels := classification.AllLabels()
	portfolios := make([]Portfolio, len(labels))
	var warnings []error

	for k, label := range labels {
		members := byLabel[label]
		p := Portfolio{Label: label, Members: make([]string, 0, len(members))}

		var returns, weights []float64
		for _, h := range members {
			p.Members = append(p.Members, h.Security)
			r, okR := h.ForwardReturn.Get()
			w, okW := h.Weight.Get()
			if !okR || !okW {
				continue
			}
			returns = append(returns, r)
			weights = append(weights, w)
		}
		sort.Strings(p.Members)
		p.Contributing = len(returns)

		if vw, err := formulas.WeightedMean(returns, weights); err == nil {
			p.Return = domain.Present(vw)
			p.TotalWeight = floats.Sum(weights)
		} else {
			p.Return = domain.Absent()
			warnings = append(warnings, &domain.EmptyPortfolioWarning{
				Month:   month,
				Label:   label.Code(),
				Members: len(members),
			})
		}
		portfolios[k] = p
	}

	a.log.Debug().
		Str("month", month.String()).
		Int("holdings", len(holdings)).
		Int("empty", len(warnings)).
		Msg("Portfolios aggregated")

	return portfolios, warnings
}

// ReturnsByLabel indexes portfolio returns by label
func ReturnsByLabel(portfolios []Portfolio) map[classification.Label]domain.Value {
	out := make(map[classification.Label]domain.Value, len(portfolios))
	for _, p := range portfolios {
		out[p.Label] = p.Return
	}
	return out
}
