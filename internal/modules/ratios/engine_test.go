package ratios

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/hxzfactors/internal/domain"
	"github.com/aristath/hxzfactors/internal/modules/panel"
	testingpkg "github.com/aristath/hxzfactors/internal/testing"
)

func buildPanel(t *testing.T, b *testingpkg.InputsBuilder) *panel.Panel {
	t.Helper()
	p, err := panel.NewBuilder(panel.Options{}, zerolog.Nop()).Build(b.Inputs())
	require.NoError(t, err)
	return p
}

func growingAssets(months int) []float64 {
	out := make([]float64, months)
	for t := range out {
		out[t] = 1000 + 10*float64(t)
	}
	return out
}

func TestDerive_IAAbsentForFirstTwelveMonths(t *testing.T) {
	b := testingpkg.NewInputsBuilder(domain.NewMonth(2017, time.January), 24).
		AddSecurity("AAA", 10, 0, 1000, 0.1, 100).
		Set(domain.DatasetAssets, "AAA", growingAssets(24)...)
	p := buildPanel(t, b)

	d, diagnostics := NewEngine(zerolog.Nop()).Derive(p)

	for m := 0; m < 12; m++ {
		assert.False(t, d.IA[0][m].IsPresent(), "month %d", m+1)
		assert.False(t, d.LaggedAssets[0][m].IsPresent())
	}
	for m := 12; m < 24; m++ {
		assert.True(t, d.IA[0][m].IsPresent(), "month %d", m+1)
	}

	require.Len(t, diagnostics, 12)
	var hist *domain.InsufficientHistoryError
	require.True(t, errors.As(diagnostics[0], &hist))
	assert.Equal(t, domain.NewMonth(2017, time.January), hist.Month)
	assert.Equal(t, domain.NewMonth(2016, time.January), hist.Required)
}

func TestDerive_IAValue(t *testing.T) {
	b := testingpkg.NewInputsBuilder(domain.NewMonth(2017, time.January), 13).
		AddSecurity("AAA", 10, 0, 1000, 0.1, 100).
		SetAt(domain.DatasetAssets, "AAA", 12, 1250)
	p := buildPanel(t, b)

	d, _ := NewEngine(zerolog.Nop()).Derive(p)

	assert.Equal(t, domain.Present(1000), d.LaggedAssets[0][12])
	assert.Equal(t, domain.Present(250), d.Investment[0][12])
	v, ok := d.IA[0][12].Get()
	require.True(t, ok)
	assert.InDelta(t, 0.25, v, 1e-12)

	m := domain.NewMonth(2018, time.January)
	assert.Equal(t, d.IA[0][12], IA(p, 0, m))
	assert.False(t, IA(p, 0, domain.NewMonth(2017, time.June)).IsPresent(), "no lagged assets")
}

func TestDerive_IADependsOnlyOnCurrentAndLaggedAssets(t *testing.T) {
	base := func() *testingpkg.InputsBuilder {
		return testingpkg.NewInputsBuilder(domain.NewMonth(2017, time.January), 24).
			AddSecurity("AAA", 10, 0, 1000, 0.1, 100).
			Set(domain.DatasetAssets, "AAA", growingAssets(24)...)
	}

	reference, _ := NewEngine(zerolog.Nop()).Derive(buildPanel(t, base()))

	// Perturb every month other than 3 (lag) and 15 (current)
	perturbed := base()
	for m := 0; m < 24; m++ {
		if m != 3 && m != 15 {
			perturbed.SetAt(domain.DatasetAssets, "AAA", m, 99999)
		}
	}
	changed, _ := NewEngine(zerolog.Nop()).Derive(buildPanel(t, perturbed))

	assert.Equal(t, reference.IA[0][15], changed.IA[0][15])
	assert.NotEqual(t, reference.IA[0][16], changed.IA[0][16])
}

func TestDerive_ZeroLaggedAssetsIsAbsent(t *testing.T) {
	b := testingpkg.NewInputsBuilder(domain.NewMonth(2017, time.January), 13).
		AddSecurity("AAA", 10, 0, 1000, 0.1, 100).
		SetAt(domain.DatasetAssets, "AAA", 0, 0)
	p := buildPanel(t, b)

	d, _ := NewEngine(zerolog.Nop()).Derive(p)
	assert.False(t, d.IA[0][12].IsPresent())
	assert.Equal(t, domain.Present(1000), d.Investment[0][12])
}

func TestDerive_Returns(t *testing.T) {
	b := testingpkg.NewInputsBuilder(domain.NewMonth(2018, time.January), 4).
		AddSecurity("AAA", 10, 0, 1000, 0.1, 100).
		Set(domain.DatasetPrices, "AAA", 10, 11, 0, 5).
		Set(domain.DatasetDividends, "AAA", 0, 0.5, 0, 0)
	p := buildPanel(t, b)

	d, _ := NewEngine(zerolog.Nop()).Derive(p)

	tests := []struct {
		name     string
		got      domain.Value
		expected domain.Value
	}{
		{"first month has no prior price", d.Return[0][0], domain.Absent()},
		{"price gain plus dividend", d.Return[0][1], domain.Present((11 - 10 + 0.5) / 10.0)},
		{"total loss", d.Return[0][2], domain.Present(-1)},
		{"zero prior price", d.Return[0][3], domain.Absent()},
		{"forward return is next month's return", d.ForwardReturn[0][0], d.Return[0][1]},
		{"forward return past the axis", d.ForwardReturn[0][3], domain.Absent()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestDerive_AbsentDividendMakesReturnAbsent(t *testing.T) {
	b := testingpkg.NewInputsBuilder(domain.NewMonth(2018, time.January), 2).
		AddSecurity("AAA", 10, 0, 1000, 0.1, 100).
		Set(domain.DatasetDividends, "AAA", 0, testingpkg.NaN)
	p := buildPanel(t, b)

	d, _ := NewEngine(zerolog.Nop()).Derive(p)
	assert.False(t, d.Return[0][1].IsPresent())
}
