package positions

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxIterations = 100
	epsilon       = 1e-8
)

// BSMResult is the closed-form Black-Scholes-Merton price of a vanilla
// option with its analytic sensitivities. It is the benchmark the lattice
// prices converge to.
type BSMResult struct {
	Price float64 `json:"price"`
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
	Rho   float64 `json:"rho"`
}

func CalculateBSM(S, K, T, r, sigma float64, isCall bool) BSMResult {
	d1, d2 := bsmD1D2(S, K, T, r, sigma)
	discount := math.Exp(-r * T)

	var delta, price float64
	if isCall {
		delta = normCDF(d1)
		price = S*normCDF(d1) - K*discount*normCDF(d2)
	} else {
		delta = normCDF(d1) - 1
		price = K*discount*normCDF(-d2) - S*normCDF(-d1)
	}

	gamma := normPDF(d1) / (S * sigma * math.Sqrt(T))
	vega := S * normPDF(d1) * math.Sqrt(T)
	theta := -(S*normPDF(d1)*sigma)/(2*math.Sqrt(T)) - r*K*discount*normCDF(d2)
	rho := K * T * discount * normCDF(d2)
	if !isCall {
		theta = theta + r*K*discount
		rho = -K * T * discount * normCDF(-d2)
	}

	return BSMResult{
		Price: price,
		Delta: delta,
		Gamma: gamma,
		Theta: theta,
		Vega:  vega,
		Rho:   rho,
	}
}

func BlackScholesCall(S, K, T, r, sigma float64) float64 {
	return CalculateBSM(S, K, T, r, sigma, true).Price
}

func BlackScholesPut(S, K, T, r, sigma float64) float64 {
	return CalculateBSM(S, K, T, r, sigma, false).Price
}

// BlackScholesDigitalCall pays one unit if S_T > K.
func BlackScholesDigitalCall(S, K, T, r, sigma float64) float64 {
	_, d2 := bsmD1D2(S, K, T, r, sigma)
	return math.Exp(-r*T) * normCDF(d2)
}

// BlackScholesDigitalPut pays one unit if S_T < K.
func BlackScholesDigitalPut(S, K, T, r, sigma float64) float64 {
	_, d2 := bsmD1D2(S, K, T, r, sigma)
	return math.Exp(-r*T) * normCDF(-d2)
}

// BlackScholesDownAndOutCall is the continuously monitored down-and-out
// call with no rebate (Merton 1973, Reiner-Rubinstein 1991). The lattice
// only watches the barrier at its grid times, so it converges to this from
// above.
func BlackScholesDownAndOutCall(S, K, H, T, r, sigma float64) float64 {
	if S <= H {
		return 0
	}

	sqrtT := sigma * math.Sqrt(T)
	lambda := (r + 0.5*sigma*sigma) / (sigma * sigma)
	discount := math.Exp(-r * T)
	hs := H / S

	if H <= K {
		y := math.Log(H*H/(S*K))/sqrtT + lambda*sqrtT
		downAndIn := S*math.Pow(hs, 2*lambda)*normCDF(y) -
			K*discount*math.Pow(hs, 2*lambda-2)*normCDF(y-sqrtT)
		return BlackScholesCall(S, K, T, r, sigma) - downAndIn
	}

	x1 := math.Log(S/H)/sqrtT + lambda*sqrtT
	y1 := math.Log(H/S)/sqrtT + lambda*sqrtT
	return S*normCDF(x1) - K*discount*normCDF(x1-sqrtT) -
		S*math.Pow(hs, 2*lambda)*normCDF(y1) +
		K*discount*math.Pow(hs, 2*lambda-2)*normCDF(y1-sqrtT)
}

// BlackScholesImpliedVolatility inverts the closed form by Newton's method.
func BlackScholesImpliedVolatility(targetPrice, S, K, T, r float64, isCall bool) (float64, error) {
	sigma := 0.5 // Initial guess
	for i := 0; i < maxIterations; i++ {
		result := CalculateBSM(S, K, T, r, sigma, isCall)

		diff := result.Price - targetPrice
		if math.Abs(diff) < epsilon {
			return sigma, nil
		}
		if result.Vega < epsilon {
			break
		}

		sigma = sigma - diff/result.Vega
		if sigma <= 0 {
			sigma = 0.0001 // Avoid negative volatility
		}
	}
	return math.NaN(), fmt.Errorf("implied volatility for price %v: %w", targetPrice, ErrNoConvergence)
}

func bsmD1D2(S, K, T, r, sigma float64) (float64, float64) {
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * math.Sqrt(T))
	return d1, d1 - sigma*math.Sqrt(T)
}

func normCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}

func normPDF(x float64) float64 {
	return distuv.UnitNormal.Prob(x)
}

func BlackScholesDelta(S, K, T, r, sigma float64, isCall bool) float64 {
	return CalculateBSM(S, K, T, r, sigma, isCall).Delta
}

func BlackScholesVega(S, K, T, r, sigma float64) float64 {
	return CalculateBSM(S, K, T, r, sigma, true).Vega
}
