package positions

import (
	"fmt"
)

const (
	spotBump = 0.01   // relative
	volBump  = 0.01   // absolute
	rateBump = 0.0001 // absolute
)

// CalculateGreeks prices v on a lattice built from market and then
// re-prices it on bumped markets, taking central differences. Every
// lattice uses the same factory and number of times so the bumps move only
// one input at a time.
func CalculateGreeks(v Valuator, factory LatticeFactory, market Market, numberOfTimes int) (Greeks, error) {
	price, err := priceOn(v, factory, market, numberOfTimes)
	if err != nil {
		return Greeks{}, err
	}

	h := market.Spot * spotBump
	up, down := market, market
	up.Spot += h
	down.Spot -= h
	priceUp, err := priceOn(v, factory, up, numberOfTimes)
	if err != nil {
		return Greeks{}, fmt.Errorf("delta up: %w", err)
	}
	priceDown, err := priceOn(v, factory, down, numberOfTimes)
	if err != nil {
		return Greeks{}, fmt.Errorf("delta down: %w", err)
	}

	volUp, volDown := market, market
	volUp.Volatility += volBump
	volDown.Volatility -= volBump
	if volDown.Volatility <= 0 {
		volDown = market
	}
	vegaUp, err := priceOn(v, factory, volUp, numberOfTimes)
	if err != nil {
		return Greeks{}, fmt.Errorf("vega up: %w", err)
	}
	vegaDown, err := priceOn(v, factory, volDown, numberOfTimes)
	if err != nil {
		return Greeks{}, fmt.Errorf("vega down: %w", err)
	}

	rateUp, rateDown := market, market
	rateUp.RiskFreeRate += rateBump
	rateDown.RiskFreeRate -= rateBump
	rhoUp, err := priceOn(v, factory, rateUp, numberOfTimes)
	if err != nil {
		return Greeks{}, fmt.Errorf("rho up: %w", err)
	}
	rhoDown, err := priceOn(v, factory, rateDown, numberOfTimes)
	if err != nil {
		return Greeks{}, fmt.Errorf("rho down: %w", err)
	}

	return Greeks{
		Price: price,
		Delta: (priceUp - priceDown) / (2 * h),
		Gamma: (priceUp - 2*price + priceDown) / (h * h),
		Vega:  (vegaUp - vegaDown) / (volUp.Volatility - volDown.Volatility),
		Rho:   (rhoUp - rhoDown) / (2 * rateBump),
	}, nil
}

func priceOn(v Valuator, factory LatticeFactory, market Market, numberOfTimes int) (float64, error) {
	lattice, err := factory.Build(market, numberOfTimes)
	if err != nil {
		return 0, err
	}
	return v.Value(lattice)
}
