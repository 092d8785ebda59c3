package positions

import (
	"context"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/bcdannyboy/lattice/models"
	"github.com/shirou/gopsutil/cpu"
	mpb "github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

const (
	jobBatchSize    = 1000
	resultBatchSize = 1000
)

// ConvergenceCase is one product priced on one family of lattices.
// Benchmark is the closed-form value, or NaN when there is none.
type ConvergenceCase struct {
	Name      string
	Valuator  Valuator
	Factory   LatticeFactory
	Market    Market
	Benchmark float64
	OddSteps  bool // round every lattice up to an odd step count
}

// ConvergencePoint is one (case, number of times) price. Benchmark and
// Error are nil when the case has no closed form.
type ConvergencePoint struct {
	Case          string        `json:"case"`
	Product       string        `json:"product"`
	Calibration   string        `json:"calibration"`
	NumberOfTimes int           `json:"number_of_times"`
	Price         float64       `json:"price"`
	Benchmark     *float64      `json:"benchmark,omitempty"`
	Error         *float64      `json:"error,omitempty"`
	Failure       string        `json:"failure,omitempty"`
	Elapsed       time.Duration `json:"elapsed_ns"`

	caseIndex int
}

type ConvergenceRunner struct {
	Workers     int           // 0 uses every logical core
	Output      io.Writer     // progress bar destination, nil for stderr
	Logger      *zap.Logger   // nil for no logging
	CPUInterval time.Duration // 0 disables CPU usage logging
}

func NewConvergenceRunner(logger *zap.Logger) *ConvergenceRunner {
	return &ConvergenceRunner{
		Logger: logger,
	}
}

type job struct {
	caseIndex     int
	c             ConvergenceCase
	numberOfTimes int
}

// Run prices every case at every entry of numberOfTimes. Each job builds
// its own lattice, so workers share nothing but the channels. Points come
// back ordered by case and then by number of times.
func (r *ConvergenceRunner) Run(ctx context.Context, cases []ConvergenceCase, numberOfTimes []int) ([]ConvergencePoint, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := r.Output
	if output == nil {
		output = os.Stderr
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	jobs := generateJobs(cases, numberOfTimes)
	if len(jobs) == 0 {
		return nil, nil
	}

	numWorkers := r.workerCount()
	logger.Info("starting convergence sweep",
		zap.Int("cases", len(cases)),
		zap.Int("jobs", len(jobs)),
		zap.Int("workers", numWorkers),
	)

	if r.CPUInterval > 0 {
		monitorCtx, stop := context.WithCancel(ctx)
		defer stop()
		go monitorCPUUsage(monitorCtx, logger, r.CPUInterval)
	}

	// Create progress bar
	p := mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(output))
	bar := p.AddBar(int64(len(jobs)),
		mpb.PrependDecorators(
			decor.Name("Convergence"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	start := time.Now()
	points := processJobs(ctx, jobs, numWorkers, bar)
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(points, func(i, j int) bool {
		if points[i].caseIndex != points[j].caseIndex {
			return points[i].caseIndex < points[j].caseIndex
		}
		return points[i].NumberOfTimes < points[j].NumberOfTimes
	})

	failures := 0
	for _, point := range points {
		if point.Failure != "" {
			failures++
			logger.Warn("lattice pricing failed",
				zap.String("case", point.Case),
				zap.Int("number_of_times", point.NumberOfTimes),
				zap.String("failure", point.Failure),
			)
		}
	}
	logger.Info("convergence sweep complete",
		zap.Int("points", len(points)),
		zap.Int("failures", failures),
		zap.Duration("elapsed", time.Since(start)),
	)

	return points, nil
}

func (r *ConvergenceRunner) workerCount() int {
	if r.Workers > 0 {
		return r.Workers
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

func generateJobs(cases []ConvergenceCase, numberOfTimes []int) []job {
	var jobs []job
	for i, c := range cases {
		for _, n := range numberOfTimes {
			if c.OddSteps {
				n = models.OddStepTimes(n)
			}
			jobs = append(jobs, job{
				caseIndex:     i,
				c:             c,
				numberOfTimes: n,
			})
		}
	}
	return jobs
}

func processJobs(ctx context.Context, jobs []job, numWorkers int, bar *mpb.Bar) []ConvergencePoint {
	var wg sync.WaitGroup
	jobChan := make(chan job, jobBatchSize)
	resultChan := make(chan ConvergencePoint, resultBatchSize)

	// Start workers
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go worker(ctx, jobChan, resultChan, &wg, bar)
	}

	// Feed jobs to workers
	go func() {
		defer close(jobChan)
		for _, j := range jobs {
			select {
			case jobChan <- j:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Collect results
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var points []ConvergencePoint
	for point := range resultChan {
		points = append(points, point)
	}

	return points
}

func worker(ctx context.Context, jobs <-chan job, results chan<- ConvergencePoint, wg *sync.WaitGroup, bar *mpb.Bar) {
	defer wg.Done()
	for j := range jobs {
		if ctx.Err() == nil {
			results <- priceJob(j)
		}
		bar.Increment()
	}
}

func priceJob(j job) ConvergencePoint {
	point := ConvergencePoint{
		Case:          j.c.Name,
		Product:       j.c.Valuator.Name(),
		NumberOfTimes: j.numberOfTimes,
		caseIndex:     j.caseIndex,
	}
	if j.c.Factory.Calibration != nil {
		point.Calibration = j.c.Factory.Calibration.Name()
	}

	start := time.Now()
	price, err := priceOn(j.c.Valuator, j.c.Factory, j.c.Market, j.numberOfTimes)
	point.Elapsed = time.Since(start)
	if err != nil {
		point.Failure = err.Error()
		return point
	}

	point.Price = sanitizeFloat(price)
	if !math.IsNaN(j.c.Benchmark) {
		benchmark := j.c.Benchmark
		diff := price - benchmark
		point.Benchmark = &benchmark
		point.Error = &diff
	}
	return point
}

func monitorCPUUsage(ctx context.Context, logger *zap.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			percentage, err := cpu.Percent(0, false)
			if err != nil || len(percentage) == 0 {
				continue
			}
			logger.Debug("cpu usage", zap.Float64("percent", percentage[0]))
		}
	}
}
