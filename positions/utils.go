package positions

import "math"

// Call pays max(x - strike, 0).
func Call(strike float64) Payoff {
	return func(x float64) float64 {
		return math.Max(x-strike, 0)
	}
}

// Put pays max(strike - x, 0).
func Put(strike float64) Payoff {
	return func(x float64) float64 {
		return math.Max(strike-x, 0)
	}
}

// DigitalCall pays one unit when the underlying finishes above strike.
func DigitalCall(strike float64) Payoff {
	return func(x float64) float64 {
		if x > strike {
			return 1
		}
		return 0
	}
}

// DigitalPut pays one unit when the underlying finishes below strike.
func DigitalPut(strike float64) Payoff {
	return func(x float64) float64 {
		if x < strike {
			return 1
		}
		return 0
	}
}

// insideBarrier is 1 on [lower, upper] and 0 elsewhere. Both bounds are
// inclusive for every barrier product in this package.
func insideBarrier(lower, upper float64) func(float64) float64 {
	return func(x float64) float64 {
		if x >= lower && x <= upper {
			return 1
		}
		return 0
	}
}

func sanitizeFloat(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
