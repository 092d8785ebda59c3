package latticeslack

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bcdannyboy/lattice/models"
	"github.com/bcdannyboy/lattice/positions"
)

// maxNumberOfTimes bounds the lattice a chat request may build; memory grows
// with the square of the number of times.
const maxNumberOfTimes = 5000

var usage = fmt.Sprintf("/lattice <european|american|barrier> <call|put> <spot> <strike> <rate> <vol> <maturity> <times, at most %d> [crr|jr|lr] [lower] [upper]", maxNumberOfTimes)

var ErrInvalidRequest = errors.New("invalid pricing request")

// PricingRequest is one parsed /lattice command.
type PricingRequest struct {
	Style         string // european, american or barrier
	Kind          string // call or put
	Spot          float64
	Strike        float64
	RiskFreeRate  float64
	Volatility    float64
	Maturity      float64 // also the lattice horizon
	NumberOfTimes int
	Calibration   string // crr, jr or lr
	LowerBarrier  float64
	UpperBarrier  float64
}

type PricingResult struct {
	Request     PricingRequest
	Product     string
	Calibration string
	Price       float64
	Benchmark   float64 // closed form, NaN when there is none
}

func ParsePricingRequest(text string) (PricingRequest, error) {
	args := strings.Fields(strings.ToLower(text))
	if len(args) < 8 || len(args) > 11 {
		return PricingRequest{}, fmt.Errorf("%d arguments, usage: %s: %w", len(args), usage, ErrInvalidRequest)
	}

	req := PricingRequest{
		Style:        args[0],
		Kind:         args[1],
		Calibration:  "crr",
		LowerBarrier: math.Inf(-1),
		UpperBarrier: math.Inf(1),
	}

	switch req.Style {
	case "european", "american", "barrier":
	default:
		return PricingRequest{}, fmt.Errorf("style %q: %w", req.Style, ErrInvalidRequest)
	}
	switch req.Kind {
	case "call", "put":
	default:
		return PricingRequest{}, fmt.Errorf("kind %q: %w", req.Kind, ErrInvalidRequest)
	}

	numbers := []struct {
		name string
		dst  *float64
	}{
		{"spot", &req.Spot},
		{"strike", &req.Strike},
		{"rate", &req.RiskFreeRate},
		{"vol", &req.Volatility},
		{"maturity", &req.Maturity},
	}
	for i, n := range numbers {
		v, err := strconv.ParseFloat(args[2+i], 64)
		if err != nil {
			return PricingRequest{}, fmt.Errorf("%s %q: %w", n.name, args[2+i], ErrInvalidRequest)
		}
		*n.dst = v
	}

	times, err := strconv.Atoi(args[7])
	if err != nil || times < 1 || times > maxNumberOfTimes {
		return PricingRequest{}, fmt.Errorf("times %q, want 1 to %d: %w", args[7], maxNumberOfTimes, ErrInvalidRequest)
	}
	req.NumberOfTimes = times

	rest := args[8:]
	if len(rest) > 0 {
		switch rest[0] {
		case "crr", "jr", "lr":
			req.Calibration = rest[0]
			rest = rest[1:]
		}
	}
	if req.Calibration == "lr" {
		req.NumberOfTimes = models.OddStepTimes(req.NumberOfTimes)
	}

	if req.Style != "barrier" {
		if len(rest) > 0 {
			return PricingRequest{}, fmt.Errorf("unexpected %q for a %s option: %w", rest[0], req.Style, ErrInvalidRequest)
		}
		return req, nil
	}

	if len(rest) == 0 {
		return PricingRequest{}, fmt.Errorf("barrier option needs a lower barrier: %w", ErrInvalidRequest)
	}
	bounds := []*float64{&req.LowerBarrier, &req.UpperBarrier}
	for i, field := range rest {
		if i >= len(bounds) {
			return PricingRequest{}, fmt.Errorf("unexpected %q: %w", field, ErrInvalidRequest)
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return PricingRequest{}, fmt.Errorf("barrier %q: %w", field, ErrInvalidRequest)
		}
		*bounds[i] = v
	}
	return req, nil
}

func (r PricingRequest) payoff() positions.Payoff {
	if r.Kind == "put" {
		return positions.Put(r.Strike)
	}
	return positions.Call(r.Strike)
}

func (r PricingRequest) Valuator() (positions.Valuator, error) {
	switch r.Style {
	case "european":
		return positions.NewEuropeanOption(r.Maturity, r.payoff()), nil
	case "american":
		return positions.NewAmericanOption(r.Maturity, r.payoff()), nil
	case "barrier":
		return positions.NewKnockOutBarrierOption(r.Maturity, r.payoff(), r.LowerBarrier, r.UpperBarrier), nil
	}
	return nil, fmt.Errorf("style %q: %w", r.Style, ErrInvalidRequest)
}

func (r PricingRequest) calibration() (models.Calibration, error) {
	switch r.Calibration {
	case "crr":
		return models.NewCoxRossRubinstein(), nil
	case "jr":
		return models.NewJarrowRudd(), nil
	case "lr":
		return models.NewLeisenReimer(r.Strike, r.Maturity), nil
	}
	return nil, fmt.Errorf("calibration %q: %w", r.Calibration, ErrInvalidRequest)
}

// Price values the request on a fresh lattice spanning [0, Maturity].
func (r PricingRequest) Price() (PricingResult, error) {
	valuator, err := r.Valuator()
	if err != nil {
		return PricingResult{}, err
	}
	calibration, err := r.calibration()
	if err != nil {
		return PricingResult{}, err
	}

	factory := positions.NewLatticeFactory(r.Maturity, calibration)
	lattice, err := factory.Build(positions.Market{
		Spot:         r.Spot,
		RiskFreeRate: r.RiskFreeRate,
		Volatility:   r.Volatility,
	}, r.NumberOfTimes)
	if err != nil {
		return PricingResult{}, err
	}
	price, err := valuator.Value(lattice)
	if err != nil {
		return PricingResult{}, err
	}

	return PricingResult{
		Request:     r,
		Product:     valuator.Name(),
		Calibration: calibration.Name(),
		Price:       price,
		Benchmark:   r.benchmark(),
	}, nil
}

func (r PricingRequest) benchmark() float64 {
	if !(r.Volatility > 0 && r.Maturity > 0) {
		return math.NaN()
	}
	isCall := r.Kind == "call"
	switch {
	case r.Style == "european":
		return positions.CalculateBSM(r.Spot, r.Strike, r.Maturity, r.RiskFreeRate, r.Volatility, isCall).Price
	case r.Style == "barrier" && isCall && math.IsInf(r.UpperBarrier, 1) && r.LowerBarrier > 0:
		return positions.BlackScholesDownAndOutCall(r.Spot, r.Strike, r.LowerBarrier, r.Maturity, r.RiskFreeRate, r.Volatility)
	}
	return math.NaN()
}

func (p PricingResult) String() string {
	r := p.Request
	msg := fmt.Sprintf("%s %s K=%.4g T=%.4g on %s with %d times: *%.6f*",
		p.Product, r.Kind, r.Strike, r.Maturity, p.Calibration, r.NumberOfTimes, p.Price)
	if r.Style == "barrier" {
		msg += fmt.Sprintf("\nCorridor: [%g, %g]", r.LowerBarrier, r.UpperBarrier)
	}
	if !math.IsNaN(p.Benchmark) {
		msg += fmt.Sprintf("\nClosed form: %.6f (diff %+.6f)", p.Benchmark, p.Price-p.Benchmark)
	}
	return msg
}
