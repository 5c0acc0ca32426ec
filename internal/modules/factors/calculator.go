// Package factors computes the HXZ investment and profitability factors and
// runs the full panel -> ratios -> classification -> aggregation pipeline.
package factors

import (
	"fmt"
	"strings"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/classification"
	"github.com/aristath/hxzfactors/pkg/formulas"
)

// Dimension names a factor
type Dimension string

const (
	DimensionInvestment    Dimension = "investment"
	DimensionProfitability Dimension = "profitability"
)

// AbsentPolicy decides what an absent portfolio return does to a factor mean
type AbsentPolicy string

const (
	// AbsentPropagate makes the factor absent if any of its twelve portfolios is absent
	AbsentPropagate AbsentPolicy = "propagate"
	// AbsentExclude drops absent portfolios and averages the rest; the factor is
	// absent only when a side has no present portfolio
	AbsentExclude AbsentPolicy = "exclude"
)

// ParseAbsentPolicy parses "propagate" or "exclude"
func ParseAbsentPolicy(s string) (AbsentPolicy, error) {
	switch AbsentPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case AbsentPropagate:
		return AbsentPropagate, nil
	case AbsentExclude:
		return AbsentExclude, nil
	}
	return "", fmt.Errorf("unknown absent-value policy %q", s)
}

// Legs returns the six high and six low labels of a factor dimension
func Legs(dim Dimension) (high, low []classification.Label) {
	for _, l := range classification.AllLabels() {
		bucket := l.Investment
		if dim == DimensionProfitability {
			bucket = l.Profitability
		}
		switch bucket {
		case classification.High:
			high = append(high, l)
		case classification.Low:
			low = append(low, l)
		}
	}
	return high, low
}

// Calculator forms high-minus-low factors from portfolio returns
type Calculator struct {
	policy AbsentPolicy
}

// NewCalculator creates a factor calculator; an empty policy means propagate
func NewCalculator(policy AbsentPolicy) *Calculator {
	if policy == "" {
		policy = AbsentPropagate
	}
	return &Calculator{policy: policy}
}

// Policy returns the absent-value policy in force
func (c *Calculator) Policy() AbsentPolicy {
	return c.policy
}

// Factor returns mean(high legs) - mean(low legs) for one month
func (c *Calculator) Factor(dim Dimension, returns map[classification.Label]domain.Value) domain.Value {
	high, low := Legs(dim)
	return c.HighMinusLow(collect(high, returns), collect(low, returns))
}

// HighMinusLow differences the means of two legs under the absent policy
func (c *Calculator) HighMinusLow(high, low []domain.Value) domain.Value {
	h := c.mean(high)
	l := c.mean(low)
	return h.Sub(l)
}

func (c *Calculator) mean(values []domain.Value) domain.Value {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		x, ok := v.Get()
		if !ok {
			if c.policy == AbsentPropagate {
				return domain.Absent()
			}
			continue
		}
		present = append(present, x)
	}
	if len(present) == 0 {
		return domain.Absent()
	}
	return domain.Present(formulas.Mean(present))
}

func collect(labels []classification.Label, returns map[classification.Label]domain.Value) []domain.Value {
	out := make([]domain.Value, len(labels))
	for i, l := range labels {
		// Missing labels read as the zero Value, which is Absent
		out[i] = returns[l]
	}
	return out
}
