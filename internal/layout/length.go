package layout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Inches per unit. A unitless value is CSS pixels.
var unitToInches = map[string]float64{
	"px": 1.0 / 96,
	"in": 1,
	"cm": 1 / 2.54,
	"mm": 1 / 25.4,
	"pt": 1.0 / 72,
	"pc": 1.0 / 6,
}

// ParseLength converts a unit-qualified length such as "10mm" or "0.5in"
// into inches.
func ParseLength(s string) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return 0, fmt.Errorf("empty length")
	}

	unit := "px"
	if len(v) > 2 {
		if _, ok := unitToInches[v[len(v)-2:]]; ok {
			unit = v[len(v)-2:]
			v = strings.TrimSpace(v[:len(v)-2])
		}
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("invalid length %q", s)
	}
	return n * unitToInches[unit], nil
}
