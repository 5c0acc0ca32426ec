package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresent_CollapsesNonFinite(t *testing.T) {
	assert.False(t, Present(math.NaN()).IsPresent())
	assert.False(t, Present(math.Inf(1)).IsPresent())
	assert.False(t, Present(math.Inf(-1)).IsPresent())

	zero := Present(0)
	v, ok := zero.Get()
	assert.True(t, ok, "reported zero is present")
	assert.Equal(t, 0.0, v)
}

func TestValue_Arithmetic(t *testing.T) {
	tests := []struct {
		name     string
		got      Value
		expected Value
	}{
		{"sub", Present(5).Sub(Present(3)), Present(2)},
		{"sub absent", Present(5).Sub(Absent()), Absent()},
		{"add", Present(1.5).Add(Present(0.5)), Present(2)},
		{"add absent", Absent().Add(Present(1)), Absent()},
		{"div", Present(1).Div(Present(4)), Present(0.25)},
		{"div by zero", Present(1).Div(Present(0)), Absent()},
		{"div by absent", Present(1).Div(Absent()), Absent()},
		{"zero numerator", Present(0).Div(Present(4)), Present(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}

func TestValue_JSON(t *testing.T) {
	out, err := json.Marshal([]Value{Present(0.5), Absent()})
	require.NoError(t, err)
	assert.JSONEq(t, `[0.5, null]`, string(out))

	var back []Value
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, []Value{Present(0.5), Absent()}, back)
}

func TestValue_Ptr(t *testing.T) {
	assert.Nil(t, Absent().Ptr())
	p := Present(3).Ptr()
	require.NotNil(t, p)
	assert.Equal(t, 3.0, *p)
	assert.Equal(t, Present(3), FromPtr(p))
	assert.Equal(t, Absent(), FromPtr(nil))
}

func TestMonth(t *testing.T) {
	m := MonthOf(time.Date(2018, time.June, 14, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, "2018-06", m.String())
	assert.Equal(t, time.Date(2018, time.June, 30, 0, 0, 0, 0, time.UTC), m.End())
	assert.Equal(t, NewMonth(2017, time.June), m.AddMonths(-12))
	assert.Equal(t, NewMonth(2019, time.January), m.AddMonths(7))
	assert.Equal(t, time.Date(2016, time.February, 29, 0, 0, 0, 0, time.UTC), NewMonth(2016, time.February).End())
	assert.True(t, m.AddMonths(-1).Before(m))
	assert.False(t, m.Before(m))
	assert.True(t, Month{}.IsZero())

	parsed, err := ParseMonth("2018-06")
	require.NoError(t, err)
	assert.Equal(t, m, parsed)

	_, err = ParseMonth("June 2018")
	assert.Error(t, err)
}

func TestMonth_TextRoundTripAsMapKey(t *testing.T) {
	in := map[Month]int{NewMonth(2019, time.March): 1}
	out, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2019-03": 1}`, string(out))

	var back map[Month]int
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, in, back)
}

func TestErrors(t *testing.T) {
	var err error = NewAlignmentError("roe", []string{"B", "A"}, []string{"Z"})
	var alignErr *AlignmentError
	require.True(t, errors.As(err, &alignErr))
	assert.Equal(t, []string{"A", "B"}, alignErr.Missing)
	assert.Contains(t, err.Error(), "missing A,B")
	assert.Contains(t, err.Error(), "extra Z")

	hist := &InsufficientHistoryError{Month: NewMonth(2018, 3), Required: NewMonth(2017, 3)}
	assert.Contains(t, hist.Error(), "2017-03")

	empty := &EmptyPortfolioWarning{Month: NewMonth(2018, 3), Label: "Big-High_IA-Low_ROE"}
	assert.Contains(t, empty.Error(), "no members")
	zeroWeight := &EmptyPortfolioWarning{Month: NewMonth(2018, 3), Label: "Big-High_IA-Low_ROE", Members: 2}
	assert.Contains(t, zeroWeight.Error(), "zero usable weight")
}
