package factors

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/aggregation"
	"github.com/aristath/hxzfactors/internal/modules/classification"
	"github.com/aristath/hxzfactors/internal/modules/panel"
	"github.com/aristath/hxzfactors/internal/modules/ratios"
)

// Options configures a factor run
type Options struct {
	Panel          panel.Options         `json:"panel"`
	Classification classification.Policy `json:"classification"`
	AbsentPolicy   AbsentPolicy          `json:"absent_policy"`
	// Workers bounds how many months are evaluated at once; 1 is sequential
	Workers int `json:"workers"`
}

// DefaultOptions rebalances monthly, propagates absent portfolios and runs
// sequentially
func DefaultOptions() Options {
	return Options{
		Classification: classification.DefaultPolicy(),
		AbsentPolicy:   AbsentPropagate,
		Workers:        1,
	}
}

// MonthSnapshot is the immutable record of one evaluation month
type MonthSnapshot struct {
	Month          domain.Month            `json:"month"`
	Classification classification.Result   `json:"classification"`
	Portfolios     []aggregation.Portfolio `json:"portfolios"`
	Investment     domain.Value            `json:"investment"`
	Profitability  domain.Value            `json:"profitability"`
	Diagnostics    []error                 `json:"-"`
}

// Result is the output of a factor run
type Result struct {
	Options       Options         `json:"options"`
	Months        []domain.Month  `json:"months"`
	Investment    Series          `json:"investment"`
	Profitability Series          `json:"profitability"`
	Snapshots     []MonthSnapshot `json:"-"`
	// Diagnostics collects the soft conditions (short history, empty
	// portfolios, unclassifiable months) met during the run
	Diagnostics []error `json:"-"`
}

// Snapshot returns the record of month m
func (r *Result) Snapshot(m domain.Month) (MonthSnapshot, bool) {
	for _, s := range r.Snapshots {
		if s.Month == m {
			return s, true
		}
	}
	return MonthSnapshot{}, false
}

// Pipeline wires the panel builder, ratio engine, classifier, aggregator and
// factor calculator
type Pipeline struct {
	opts       Options
	builder    *panel.Builder
	engine     *ratios.Engine
	classifier *classification.Classifier
	aggregator *aggregation.Aggregator
	calculator *Calculator
	log        zerolog.Logger
}

// NewPipeline creates a pipeline
func NewPipeline(opts Options, log zerolog.Logger) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	calculator := NewCalculator(opts.AbsentPolicy)
	classifier := classification.NewClassifier(opts.Classification, log)
	opts.AbsentPolicy = calculator.Policy()
	opts.Classification = classifier.Policy()

	return &Pipeline{
		opts:       opts,
		builder:    panel.NewBuilder(opts.Panel, log),
		engine:     ratios.NewEngine(log),
		classifier: classifier,
		aggregator: aggregation.NewAggregator(log),
		calculator: calculator,
		log:        log.With().Str("component", "factor_pipeline").Logger(),
	}
}

// Options returns the effective options
func (p *Pipeline) Options() Options {
	return p.opts
}

// Run aligns the raw inputs and computes both factor series. Misaligned
// inputs abort the run; sparse data only produces absent values.
func (p *Pipeline) Run(ctx context.Context, in domain.Inputs) (*Result, error) {
	pnl, err := p.builder.Build(in)
	if err != nil {
		return nil, err
	}
	return p.RunPanel(ctx, pnl)
}

// RunPanel computes both factor series over an aligned panel
func (p *Pipeline) RunPanel(ctx context.Context, pnl *panel.Panel) (*Result, error) {
	start := time.Now()
	p.log.Info().
		Int("securities", pnl.NumSecurities()).
		Int("months", pnl.NumMonths()).
		Str("cadence", string(p.opts.Classification.Cadence)).
		Str("absent_policy", string(p.opts.AbsentPolicy)).
		Msg("Starting factor run")

	derived, historyDiagnostics := p.engine.Derive(pnl)

	// Every month reads only the panel and the derived series, so months can
	// be evaluated in any order; each goroutine writes its own slot
	snapshots := make([]MonthSnapshot, pnl.NumMonths())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for t := range snapshots {
		t := t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snapshots[t] = p.evaluateMonth(pnl, derived, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("factor run aborted: %w", err)
	}

	res := &Result{
		Options:       p.opts,
		Months:        pnl.Months(),
		Investment:    Series{Dimension: DimensionInvestment, Points: make([]Point, len(snapshots))},
		Profitability: Series{Dimension: DimensionProfitability, Points: make([]Point, len(snapshots))},
		Snapshots:     snapshots,
		Diagnostics:   append([]error(nil), historyDiagnostics...),
	}
	for t, s := range snapshots {
		res.Investment.Points[t] = Point{Month: s.Month, Value: s.Investment}
		res.Profitability.Points[t] = Point{Month: s.Month, Value: s.Profitability}
		res.Diagnostics = append(res.Diagnostics, s.Diagnostics...)
	}

	inv, prof := res.Investment.Summarize(), res.Profitability.Summarize()
	p.log.Info().
		Int("months", len(snapshots)).
		Int("investment_defined", inv.Defined).
		Int("profitability_defined", prof.Defined).
		Int("diagnostics", len(res.Diagnostics)).
		Dur("duration", time.Since(start)).
		Msg("Factor run completed")

	return res, nil
}

func (p *Pipeline) evaluateMonth(pnl *panel.Panel, d *ratios.Derived, t int) MonthSnapshot {
	m := pnl.Month(t)
	snap := MonthSnapshot{Month: m}

	cls, err := p.classifier.Classify(pnl, d, t)
	snap.Classification = cls
	if err != nil {
		snap.Diagnostics = append(snap.Diagnostics, err)
	}

	holdings := make([]aggregation.Holding, 0, len(cls.Labels))
	for i := 0; i < pnl.NumSecurities(); i++ {
		id := pnl.Security(i)
		label, ok := cls.Labels[id]
		if !ok {
			continue
		}
		holdings = append(holdings, aggregation.Holding{
			Security:      id,
			Label:         label,
			Weight:        pnl.Cell(panel.FieldMarketCap, i, t),
			ForwardReturn: d.ForwardReturn[i][t],
		})
	}

	portfolios, warnings := p.aggregator.Aggregate(m, holdings)
	snap.Portfolios = portfolios
	if err == nil {
		// An unclassified month is already reported once above
		snap.Diagnostics = append(snap.Diagnostics, warnings...)
	}

	returns := aggregation.ReturnsByLabel(portfolios)
	snap.Investment = p.calculator.Factor(DimensionInvestment, returns)
	snap.Profitability = p.calculator.Factor(DimensionProfitability, returns)

	for _, diag := range snap.Diagnostics {
		p.log.Debug().Err(diag).Str("month", m.String()).Msg("Degraded month")
	}
	return snap
}
