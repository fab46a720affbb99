package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLength(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1in", 1},
		{"25.4mm", 1},
		{"2.54cm", 1},
		{"72pt", 1},
		{"6pc", 1},
		{"96px", 1},
		{"96", 1},
		{" 0.5 IN ", 0.5},
		{"0mm", 0},
	}
	for _, tc := range tests {
		got, err := ParseLength(tc.in)
		assert.NoError(t, err, tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, tc.in)
	}
}

func TestParseLength_Invalid(t *testing.T) {
	for _, in := range []string{"", "mm", "abc", "10em", "NaNmm", "inf"} {
		_, err := ParseLength(in)
		assert.Error(t, err, in)
	}
}
