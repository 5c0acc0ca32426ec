// Package ratios derives the per-security series the classifier and the
// aggregator consume: lagged assets, investment-to-assets and returns.
package ratios

import (
	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/panel"
)

// AssetLagMonths is the look-back used for lagged assets
const AssetLagMonths = 12

// Derived holds the DerivedSeries for every (security, month) of a panel.
// Rows and columns follow the panel's security order and month axis.
type Derived struct {
	LaggedAssets  [][]domain.Value
	Investment    [][]domain.Value
	IA            [][]domain.Value
	Return        [][]domain.Value
	ForwardReturn [][]domain.Value
}

// Engine computes derived series
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a ratio engine
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "ratio_engine").Logger()}
}

// Derive computes every derived series. The returned diagnostics hold one
// InsufficientHistoryError per month whose lagged-assets month is off the axis.
func (e *Engine) Derive(p *panel.Panel) (*Derived, []error) {
	n, T := p.NumSecurities(), p.NumMonths()
	d := &Derived{
		LaggedAssets:  grid(n, T),
		Investment:    grid(n, T),
		IA:            grid(n, T),
		Return:        grid(n, T),
		ForwardReturn: grid(n, T),
	}

	var diagnostics []error
	for t := 0; t < T; t++ {
		m := p.Month(t)
		if _, ok := p.IndexOf(m.AddMonths(-AssetLagMonths)); !ok {
			diagnostics = append(diagnostics, &domain.InsufficientHistoryError{
				Month:    m,
				Required: m.AddMonths(-AssetLagMonths),
			})
		}
	}

	for i := 0; i < n; i++ {
		for t := 0; t < T; t++ {
			m := p.Month(t)
			lagged := LaggedAssets(p, i, m)
			investment := p.Cell(panel.FieldAssets, i, t).Sub(lagged)
			d.LaggedAssets[i][t] = lagged
			d.Investment[i][t] = investment
			d.IA[i][t] = IA(p, i, m)
			d.Return[i][t] = Return(p, i, m)
		}
		for t := 0; t < T; t++ {
			d.ForwardReturn[i][t] = Return(p, i, p.Month(t).AddMonths(1))
		}
	}

	e.log.Debug().
		Int("securities", n).
		Int("months", T).
		Int("short_history_months", len(diagnostics)).
		Msg("Derived series computed")

	return d, diagnostics
}

// LaggedAssets returns assets twelve calendar months before m
func LaggedAssets(p *panel.Panel, i int, m domain.Month) domain.Value {
	return p.At(panel.FieldAssets, i, m.AddMonths(-AssetLagMonths))
}

// IA returns (assets(m) - assets(m-12)) / assets(m-12); absent when either
// side is missing or lagged assets are zero
func IA(p *panel.Panel, i int, m domain.Month) domain.Value {
	lagged := LaggedAssets(p, i, m)
	return p.At(panel.FieldAssets, i, m).Sub(lagged).Div(lagged)
}

// Return is the single-period total return
// (price(m) - price(m-1) + dividends(m)) / price(m-1)
func Return(p *panel.Panel, i int, m domain.Month) domain.Value {
	prev := p.At(panel.FieldPrice, i, m.AddMonths(-1))
	gain := p.At(panel.FieldPrice, i, m).Sub(prev).Add(p.At(panel.FieldDividends, i, m))
	return gain.Div(prev)
}

func grid(n, T int) [][]domain.Value {
	g := make([][]domain.Value, n)
	for i := range g {
		g[i] = make([]domain.Value, T)
	}
	return g
}
