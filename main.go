package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/bcdannyboy/lattice/config"
	"github.com/bcdannyboy/lattice/models"
	"github.com/bcdannyboy/lattice/positions"
	"github.com/bcdannyboy/lattice/probability"
	latticeslack "github.com/bcdannyboy/lattice/slack"
	"github.com/xhhuango/json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Report struct {
	GeneratedAt       time.Time                       `json:"generated_at"`
	Market            positions.Market                `json:"market"`
	Strike            float64                         `json:"strike"`
	Maturity          float64                         `json:"maturity"`
	Points            []positions.ConvergencePoint    `json:"points"`
	Greeks            positions.Greeks                `json:"greeks"`
	ImpliedVolatility float64                         `json:"implied_volatility"`
	MonteCarlo        map[string]probability.Estimate `json:"monte_carlo,omitempty"`
	ValueAtRisk99     float64                         `json:"value_at_risk_99,omitempty"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %s\n", err.Error())
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %s\n", err.Error())
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SlackEnabled() {
		bot := latticeslack.NewSlackBot(cfg.SlackAppToken, cfg.SlackBotToken, logger)
		logger.Info("starting slack bot")
		if err := bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal("slack bot stopped", zap.Error(err))
		}
		return
	}

	report, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("convergence run failed", zap.Error(err))
	}

	jreport, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal("marshalling report", zap.Error(err))
	}
	if err := os.WriteFile(cfg.OutputFile, jreport, 0644); err != nil {
		logger.Fatal("writing report", zap.String("file", cfg.OutputFile), zap.Error(err))
	}

	logger.Info("wrote convergence report",
		zap.String("file", cfg.OutputFile),
		zap.Int("points", len(report.Points)),
	)
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if lvl == zapcore.DebugLevel {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) (Report, error) {
	market := positions.Market{
		Spot:         cfg.Spot,
		RiskFreeRate: cfg.RiskFreeRate,
		Volatility:   cfg.Volatility,
	}
	report := Report{
		GeneratedAt: time.Now().UTC(),
		Market:      market,
		Strike:      cfg.Strike,
		Maturity:    cfg.Maturity,
	}

	runner := positions.NewConvergenceRunner(logger)
	runner.Workers = cfg.Workers
	runner.CPUInterval = 5 * time.Second

	points, err := runner.Run(ctx, sweepCases(cfg, market), cfg.Steps)
	if err != nil {
		return Report{}, err
	}
	report.Points = points

	steps := append([]int(nil), cfg.Steps...)
	sort.Ints(steps)
	finest := models.OddStepTimes(steps[len(steps)-1])

	lr := positions.NewLatticeFactory(cfg.Maturity, models.NewLeisenReimer(cfg.Strike, cfg.Maturity))
	call := positions.NewEuropeanOption(cfg.Maturity, positions.Call(cfg.Strike))

	greeks, err := positions.CalculateGreeks(call, lr, market, finest)
	if err != nil {
		logger.Warn("greeks failed", zap.Error(err))
	} else {
		report.Greeks = greeks
		iv, err := positions.ImpliedVolatility(call, lr, market, finest, greeks.Price)
		if err != nil {
			logger.Warn("implied volatility failed", zap.Error(err))
		}
		report.ImpliedVolatility = iv
	}

	if cfg.Simulations > 0 {
		if err := monteCarlo(cfg, &report); err != nil {
			logger.Warn("monte carlo comparison failed", zap.Error(err))
		}
	}

	return report, nil
}

func sweepCases(cfg config.Config, market positions.Market) []positions.ConvergenceCase {
	S, K, T, r, sigma := cfg.Spot, cfg.Strike, cfg.Maturity, cfg.RiskFreeRate, cfg.Volatility

	barrierBenchmark := math.NaN()
	if math.IsInf(cfg.UpperBarrier, 1) && cfg.LowerBarrier > 0 {
		barrierBenchmark = positions.BlackScholesDownAndOutCall(S, K, cfg.LowerBarrier, T, r, sigma)
	}

	calibrations := []models.Calibration{
		models.NewCoxRossRubinstein(),
		models.NewJarrowRudd(),
		models.NewLeisenReimer(K, T),
	}

	var cases []positions.ConvergenceCase
	for _, c := range calibrations {
		factory := positions.NewLatticeFactory(T, c)
		_, oddSteps := c.(*models.LeisenReimer)
		cases = append(cases,
			positions.ConvergenceCase{
				Name:      "european call",
				Valuator:  positions.NewEuropeanOption(T, positions.Call(K)),
				Factory:   factory,
				Market:    market,
				OddSteps:  oddSteps,
				Benchmark: positions.BlackScholesCall(S, K, T, r, sigma),
			},
			positions.ConvergenceCase{
				Name:      "european put",
				Valuator:  positions.NewEuropeanOption(T, positions.Put(K)),
				Factory:   factory,
				Market:    market,
				OddSteps:  oddSteps,
				Benchmark: positions.BlackScholesPut(S, K, T, r, sigma),
			},
			positions.ConvergenceCase{
				Name:      "digital call",
				Valuator:  positions.NewEuropeanOption(T, positions.DigitalCall(K)),
				Factory:   factory,
				Market:    market,
				OddSteps:  oddSteps,
				Benchmark: positions.BlackScholesDigitalCall(S, K, T, r, sigma),
			},
			positions.ConvergenceCase{
				Name:      "american put",
				Valuator:  positions.NewAmericanOption(T, positions.Put(K)),
				Factory:   factory,
				Market:    market,
				OddSteps:  oddSteps,
				Benchmark: math.NaN(),
			},
			positions.ConvergenceCase{
				Name:      "knock-out call",
				Valuator:  positions.NewKnockOutBarrierOption(T, positions.Call(K), cfg.LowerBarrier, cfg.UpperBarrier),
				Factory:   factory,
				Market:    market,
				OddSteps:  oddSteps,
				Benchmark: barrierBenchmark,
			},
		)
	}
	return cases
}

func monteCarlo(cfg config.Config, report *Report) error {
	steps := int(math.Ceil(252 * cfg.Maturity))
	sim := &probability.Simulator{
		Scheme:              probability.MilsteinScheme{Mu: cfg.RiskFreeRate, Sigma: cfg.Volatility},
		InitialValue:        cfg.Spot,
		TimeStep:            cfg.Maturity / float64(steps),
		NumberOfSteps:       steps,
		NumberOfSimulations: cfg.Simulations,
		Seed:                cfg.Seed,
		Workers:             cfg.Workers,
	}

	european, err := sim.EuropeanPrice(positions.Call(cfg.Strike), cfg.RiskFreeRate)
	if err != nil {
		return err
	}
	barrier, err := sim.BarrierPrice(positions.Call(cfg.Strike), cfg.RiskFreeRate, cfg.LowerBarrier, cfg.UpperBarrier)
	if err != nil {
		return err
	}
	report.MonteCarlo = map[string]probability.Estimate{
		"european call":  european,
		"knock-out call": barrier,
	}

	loss, err := sim.ValueAtRisk(positions.Call(cfg.Strike), european.Price, 0.99)
	if err != nil {
		return err
	}
	report.ValueAtRisk99 = loss
	return nil
}
