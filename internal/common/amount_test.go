package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"25.00", 25_000_000, false},
		{"0.25", 250_000, false},
		{"10", 10_000_000, false},
		{"10.001", 10_001_000, false},
		{"0.0000001", 0, false}, // beyond 6 decimals truncates
		{" 1.5 ", 1_500_000, false},
		{"", 0, true},
		{"1.2.3", 0, true},
		{"abc", 0, true},
		{"-1", 0, true},
	}
	for _, tt := range tests {
		got, err := ToBaseUnits(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			continue
		}
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestFromBaseUnits(t *testing.T) {
	assert.Equal(t, "25.000000", FromBaseUnits(25_000_000))
	assert.Equal(t, "0.000001", FromBaseUnits(1))
	assert.Equal(t, "0.000000", FromBaseUnits(0))
}

func TestRoundToHundredths(t *testing.T) {
	// amounts differing only beyond the 2nd decimal collide
	a := RoundToHundredths(10_001_000) // 10.001
	b := RoundToHundredths(10_004_000) // 10.004
	assert.Equal(t, a, b)
	assert.Equal(t, uint64(1000), a)
	assert.Equal(t, "10.00", HundredthsString(a))

	// half up at the boundary
	assert.Equal(t, uint64(1001), RoundToHundredths(10_005_000))
	assert.Equal(t, uint64(0), RoundToHundredths(0))
}

func TestLamportsToSOL(t *testing.T) {
	assert.Equal(t, "0.024981836", LamportsToSOL(24_981_836))
	assert.Equal(t, "1.000000000", LamportsToSOL(1_000_000_000))
}
