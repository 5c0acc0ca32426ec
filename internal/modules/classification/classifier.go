package classification

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/panel"
	"github.com/aristath/hxzfactors/internal/modules/ratios"
)

// Cadence decides how often the slow-moving buckets are re-sorted
type Cadence string

const (
	// CadenceMonthly re-sorts size, investment and profitability every month
	CadenceMonthly Cadence = "monthly"
	// CadenceAnnual re-sorts size and investment at the anchor month only and
	// carries them for the following eleven months; profitability stays monthly
	CadenceAnnual Cadence = "annual"
)

// ParseCadence parses "monthly" or "annual"
func ParseCadence(s string) (Cadence, error) {
	switch Cadence(strings.ToLower(strings.TrimSpace(s))) {
	case CadenceMonthly:
		return CadenceMonthly, nil
	case CadenceAnnual:
		return CadenceAnnual, nil
	}
	return "", fmt.Errorf("unknown rebalancing cadence %q", s)
}

// Policy is the rebalancing policy
type Policy struct {
	Cadence     Cadence    `json:"cadence"`
	AnchorMonth time.Month `json:"anchor_month"`
}

// DefaultPolicy rebalances monthly; June is the anchor if annual is selected
func DefaultPolicy() Policy {
	return Policy{Cadence: CadenceMonthly, AnchorMonth: time.June}
}

var (
	// ErrNoEligibleSecurities means no security had every sorting input
	ErrNoEligibleSecurities = errors.New("no security has market cap, I/A and ROE")
	// ErrNoFormationMonth means the annual anchor month is not on the panel yet
	ErrNoFormationMonth = errors.New("no anchor month available for annual sorts")
)

// Result is one month's classification. It is never modified after creation.
type Result struct {
	Month          domain.Month     `json:"month"`
	FormationMonth domain.Month     `json:"formation_month"` // month the size and investment sorts come from
	CutPoints      CutPoints        `json:"cut_points"`
	Labels         map[string]Label `json:"labels"`
	Excluded       []string         `json:"excluded"`
}

// Classifier assigns portfolio labels month by month
type Classifier struct {
	policy Policy
	log    zerolog.Logger
}

// NewClassifier creates a classifier for the given policy
func NewClassifier(policy Policy, log zerolog.Logger) *Classifier {
	if policy.Cadence == "" {
		policy.Cadence = CadenceMonthly
	}
	if policy.AnchorMonth < time.January || policy.AnchorMonth > time.December {
		policy.AnchorMonth = time.June
	}
	return &Classifier{
		policy: policy,
		log:    log.With().Str("component", "classifier").Str("cadence", string(policy.Cadence)).Logger(),
	}
}

// Policy returns the effective policy
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify labels the cross-section at axis position t. It reads only raw
// panel cells and derived series, never another month's result, so months
// can be classified in any order. On error the result carries no labels.
func (c *Classifier) Classify(p *panel.Panel, d *ratios.Derived, t int) (Result, error) {
	var (
		res Result
		err error
	)
	if c.policy.Cadence == CadenceAnnual {
		res, err = c.classifyAnnual(p, d, t)
	} else {
		res, err = c.classifyMonthly(p, d, t)
	}

	if err != nil {
		c.log.Debug().Err(err).Msg("Month left unclassified")
		return res, err
	}
	c.log.Debug().
		Str("month", res.Month.String()).
		Str("formation", res.FormationMonth.String()).
		Int("labelled", len(res.Labels)).
		Int("excluded", len(res.Excluded)).
		Msg("Cross-section classified")
	return res, nil
}

func (c *Classifier) classifyMonthly(p *panel.Panel, d *ratios.Derived, t int) (Result, error) {
	m := p.Month(t)
	cp, labels, excluded, err := ClassifyCrossSection(candidatesAt(p, d, t))
	res := Result{
		Month:          m,
		FormationMonth: m,
		CutPoints:      cp,
		Labels:         labels,
		Excluded:       excluded,
	}
	if err != nil {
		return res, fmt.Errorf("month %s: %w", m, ErrNoEligibleSecurities)
	}
	return res, nil
}

func (c *Classifier) classifyAnnual(p *panel.Panel, d *ratios.Derived, t int) (Result, error) {
	m := p.Month(t)
	anchor := AnchorFor(m, c.policy.AnchorMonth)
	res := Result{Month: m, FormationMonth: anchor, Labels: map[string]Label{}}

	s, ok := p.IndexOf(anchor)
	if !ok {
		res.Excluded = p.Securities()
		return res, fmt.Errorf("month %s: anchor %s: %w", m, anchor, ErrNoFormationMonth)
	}

	formation := candidatesAt(p, d, s)
	formationCuts, err := ComputeCutPoints(formation)
	if err != nil {
		res.Excluded = p.Securities()
		return res, fmt.Errorf("month %s: anchor %s: %w", m, anchor, ErrNoEligibleSecurities)
	}

	// Size and investment come from the anchor month; profitability is
	// re-sorted over the securities still reporting at m
	type carried struct {
		size Size
		ia   Bucket
		roe  float64
	}
	held := make(map[string]carried)
	var roes []float64
	for i, cand := range formation {
		if !cand.Eligible() {
			continue
		}
		mc, _ := cand.MarketCap.Get()
		ia, _ := cand.IA.Get()
		roe, okROE := p.Cell(panel.FieldROE, i, t).Get()
		_, okCap := p.Cell(panel.FieldMarketCap, i, t).Get()
		if !okROE || !okCap {
			continue
		}
		held[cand.Security] = carried{
			size: formationCuts.SizeOf(mc),
			ia:   formationCuts.Investment.Bucket(ia),
			roe:  roe,
		}
		roes = append(roes, roe)
	}

	if len(held) == 0 {
		res.Excluded = p.Securities()
		return res, fmt.Errorf("month %s: %w", m, ErrNoEligibleSecurities)
	}

	profitability, err := NewTerciles(roes)
	if err != nil {
		res.Excluded = p.Securities()
		return res, fmt.Errorf("month %s: %w", m, err)
	}

	res.CutPoints = CutPoints{
		SizeMedian:    formationCuts.SizeMedian,
		Investment:    formationCuts.Investment,
		Profitability: profitability,
		Eligible:      len(held),
	}
	for _, id := range p.Securities() {
		h, ok := held[id]
		if !ok {
			res.Excluded = append(res.Excluded, id)
			continue
		}
		res.Labels[id] = Label{Size: h.size, Investment: h.ia, Profitability: profitability.Bucket(h.roe)}
	}
	return res, nil
}

// AnchorFor returns the latest anchor month at or before m
func AnchorFor(m domain.Month, anchorMonth time.Month) domain.Month {
	anchor := domain.NewMonth(m.Year, anchorMonth)
	if m.Before(anchor) {
		anchor = anchor.AddMonths(-12)
	}
	return anchor
}

// candidatesAt collects the sorting inputs at axis position t, in panel order
func candidatesAt(p *panel.Panel, d *ratios.Derived, t int) []Candidate {
	out := make([]Candidate, p.NumSecurities())
	for i := range out {
		out[i] = Candidate{
			Security:  p.Security(i),
			MarketCap: p.Cell(panel.FieldMarketCap, i, t),
			IA:        d.IA[i][t],
			ROE:       p.Cell(panel.FieldROE, i, t),
		}
	}
	return out
}

// Members returns the securities holding label l, sorted
func (r Result) Members(l Label) []string {
	var out []string
	for id, got := range r.Labels {
		if got == l {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
