package classification

import (
	"fmt"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/pkg/formulas"
)

// Breakpoints used for the investment and profitability terciles
const (
	LowerPercentile = 0.3
	UpperPercentile = 0.7
)

// Candidate is one security's sorting inputs for a month
type Candidate struct {
	Security  string
	MarketCap domain.Value
	IA        domain.Value
	ROE       domain.Value
}

// Eligible reports whether every sorting input is present
func (c Candidate) Eligible() bool {
	return c.MarketCap.IsPresent() && c.IA.IsPresent() && c.ROE.IsPresent()
}

// Terciles holds the 30th and 70th percentiles of one sorting variable
type Terciles struct {
	P30 float64 `json:"p30"`
	P70 float64 `json:"p70"`
}

// Bucket places x with the rule x <= p30 Low, x <= p70 Mid, else High
func (t Terciles) Bucket(x float64) Bucket {
	switch {
	case x <= t.P30:
		return Low
	case x <= t.P70:
		return Mid
	default:
		return High
	}
}

// NewTerciles computes the linear-interpolated 30th/70th percentiles
func NewTerciles(values []float64) (Terciles, error) {
	p30, err := formulas.Quantile(LowerPercentile, values)
	if err != nil {
		return Terciles{}, fmt.Errorf("failed to compute 30th percentile: %w", err)
	}
	p70, err := formulas.Quantile(UpperPercentile, values)
	if err != nil {
		return Terciles{}, fmt.Errorf("failed to compute 70th percentile: %w", err)
	}
	return Terciles{P30: p30, P70: p70}, nil
}

// CutPoints are the cross-sectional breakpoints of one month
type CutPoints struct {
	SizeMedian    float64  `json:"size_median"`
	Investment    Terciles `json:"investment"`
	Profitability Terciles `json:"profitability"`
	Eligible      int      `json:"eligible"`
}

// ComputeCutPoints derives the breakpoints over the eligible candidates.
// It returns formulas.ErrEmptyInput when no candidate is eligible.
func ComputeCutPoints(candidates []Candidate) (CutPoints, error) {
	var caps, ias, roes []float64
	for _, c := range candidates {
		if !c.Eligible() {
			continue
		}
		mc, _ := c.MarketCap.Get()
		ia, _ := c.IA.Get()
		roe, _ := c.ROE.Get()
		caps = append(caps, mc)
		ias = append(ias, ia)
		roes = append(roes, roe)
	}
	if len(caps) == 0 {
		return CutPoints{}, formulas.ErrEmptyInput
	}

	median, err := formulas.Median(caps)
	if err != nil {
		return CutPoints{}, fmt.Errorf("failed to compute size median: %w", err)
	}
	investment, err := NewTerciles(ias)
	if err != nil {
		return CutPoints{}, fmt.Errorf("investment: %w", err)
	}
	profitability, err := NewTerciles(roes)
	if err != nil {
		return CutPoints{}, fmt.Errorf("profitability: %w", err)
	}

	return CutPoints{
		SizeMedian:    median,
		Investment:    investment,
		Profitability: profitability,
		Eligible:      len(caps),
	}, nil
}

// SizeOf returns Small when market cap is at or below the median
func (cp CutPoints) SizeOf(marketCap float64) Size {
	if marketCap <= cp.SizeMedian {
		return Small
	}
	return Big
}

// Assign labels one candidate. Ineligible candidates get no label.
func (cp CutPoints) Assign(c Candidate) (Label, bool) {
	if !c.Eligible() {
		return Label{}, false
	}
	mc, _ := c.MarketCap.Get()
	ia, _ := c.IA.Get()
	roe, _ := c.ROE.Get()
	return Label{
		Size:          cp.SizeOf(mc),
		Investment:    cp.Investment.Bucket(ia),
		Profitability: cp.Profitability.Bucket(roe),
	}, true
}

// ClassifyCrossSection computes cut-points and labels for one month in a
// single step. Securities without a label are returned in excluded.
func ClassifyCrossSection(candidates []Candidate) (CutPoints, map[string]Label, []string, error) {
	cp, err := ComputeCutPoints(candidates)
	if err != nil {
		excluded := make([]string, 0, len(candidates))
		for _, c := range candidates {
			excluded = append(excluded, c.Security)
		}
		return CutPoints{}, map[string]Label{}, excluded, err
	}

	labels := make(map[string]Label, cp.Eligible)
	var excluded []string
	for _, c := range candidates {
		if l, ok := cp.Assign(c); ok {
			labels[c.Security] = l
		} else {
			excluded = append(excluded, c.Security)
		}
	}
	return cp, labels, excluded, nil
}
