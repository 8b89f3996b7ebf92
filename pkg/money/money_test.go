package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound_HalfUp(t *testing.T) {
	cases := map[string]string{
		"4.505":  "4.51",
		"4.504":  "4.50",
		"0.005":  "0.01",
		"12":     "12.00",
		"19.999": "20.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, Format(Round(decimal.RequireFromString(in))), in)
	}
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, "40.00", Format(LineTotal(decimal.RequireFromString("20.00"), 2)))
	assert.Equal(t, "0.30", Format(LineTotal(decimal.RequireFromString("0.10"), 3)))
}

func TestParse(t *testing.T) {
	d, err := Parse("5")
	require.NoError(t, err)
	assert.Equal(t, "5.00", Format(d))

	_, err = Parse("-1.00")
	assert.Error(t, err)

	_, err = Parse("abc")
	assert.Error(t, err)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(5950), MinorUnits(decimal.RequireFromString("59.50")))
	assert.Equal(t, int64(1), MinorUnits(decimal.RequireFromString("0.005")))
}
