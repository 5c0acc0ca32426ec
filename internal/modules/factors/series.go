package factors

import (
	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/pkg/formulas"
)

// Point is one month of a factor series
type Point struct {
	Month domain.Month `json:"month"`
	Value domain.Value `json:"value"`
}

// Series is a factor time series; months without enough data hold Absent
type Series struct {
	Dimension Dimension `json:"dimension"`
	Points    []Point   `json:"points"`
}

// At returns the value at month m
func (s Series) At(m domain.Month) (domain.Value, bool) {
	for _, p := range s.Points {
		if p.Month == m {
			return p.Value, true
		}
	}
	return domain.Absent(), false
}

// PresentValues returns the defined values in month order
func (s Series) PresentValues() []float64 {
	out := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		if v, ok := p.Value.Get(); ok {
			out = append(out, v)
		}
	}
	return out
}

// Summary describes a factor series
type Summary struct {
	Dimension Dimension `json:"dimension"`
	Months    int       `json:"months"`
	Defined   int       `json:"defined"`
	Mean      float64   `json:"mean"`
	StdDev    float64   `json:"std_dev"`
	TStat     float64   `json:"t_stat"`
}

// Summarize computes mean, standard deviation and t-statistic over defined months
func (s Series) Summarize() Summary {
	values := s.PresentValues()
	return Summary{
		Dimension: s.Dimension,
		Months:    len(s.Points),
		Defined:   len(values),
		Mean:      formulas.Mean(values),
		StdDev:    formulas.StdDev(values),
		TStat:     formulas.TStat(values),
	}
}
