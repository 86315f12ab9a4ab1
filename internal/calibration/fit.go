package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// FitLinear fits the two-point calibration line for one channel:
// slope = -20/(plus10-minus10) and intercept = -slope*(plus10+minus10)/2.
// The midpoint of the two readings maps to 0 degrees, plus10 to -10 and
// minus10 to +10.
func FitLinear(plus10, minus10 float64) (slope, intercept float64, err error) {
	if plus10 == minus10 || !finite(plus10) || !finite(minus10) {
		return 0, 0, &InvalidCalibrationError{Plus10Degs: plus10, Minus10Degs: minus10}
	}
	slope = (-10 - 10) / (plus10 - minus10)
	mean := (plus10 + minus10) / 2
	intercept = -slope * mean
	return slope, intercept, nil
}

// ApplyLinear returns v*slope+intercept for every v in values. NaN stays NaN.
// values is not modified.
func ApplyLinear(values []float64, slope, intercept float64) []float64 {
	out := make([]float64, len(values))
	floats.ScaleTo(out, slope, values)
	floats.AddConst(intercept, out)
	return out
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
