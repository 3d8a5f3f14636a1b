// Command parfor-bench runs numeric kernels on the parallel engine and
// reports their timings.
//
// Usage:
//
//	parfor-bench [-config parfor.toml] [-concurrency k] [-kernel field|heat] [-n size] [-rounds r]
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/exascience/parfor"
	"github.com/exascience/parfor/concurrency"
	"github.com/exascience/parfor/config"
	"github.com/exascience/parfor/internal/kernels"
	"github.com/exascience/parfor/internal/logging"
	"github.com/exascience/parfor/pool"
)

type options struct {
	configPath  string
	concurrency int
	kernel      string
	n           int
	rounds      int
	logLevel    string
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("parfor-bench", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "", "path to a TOML config file")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "parallel-for concurrency (0 = configured default)")
	fs.StringVar(&opts.kernel, "kernel", "field", "kernel to run: field or heat")
	fs.IntVar(&opts.n, "n", 1<<18, "problem size")
	fs.IntVar(&opts.rounds, "rounds", 10, "number of timed rounds")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level override")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.n < 0 || opts.rounds < 1 {
		return opts, errors.New("n must be >= 0 and rounds >= 1")
	}
	return opts, nil
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return nil, err
		}
	}
	if err := config.FromEnv(cfg); err != nil {
		return nil, err
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	return cfg, cfg.Apply()
}

func kernel(name string, n int, cfg *config.Config) (func() error, error) {
	tune := kernels.Tuning{
		RangeThreshold:         cfg.RangeThreshold,
		MinIterationsPerThread: cfg.MinIterationsPerThread,
	}
	switch name {
	case "field":
		a, b := make([]fr.Element, n), make([]fr.Element, n)
		for i := range a {
			a[i].SetUint64(uint64(3*i + 1))
			b[i].SetUint64(uint64(5*i + 2))
		}
		dst := make([]fr.Element, n)
		return func() error {
			if err := kernels.FieldBatchMul(dst, a, b, tune); err != nil {
				return err
			}
			_, err := kernels.FieldInnerProduct(a, dst, tune)
			return err
		}, nil
	case "heat":
		side := 1
		for side*side < n {
			side++
		}
		u := kernels.NewHeatGrid(side, side, 75, 0, 100, 100, 100)
		return func() error {
			_, err := kernels.HeatSimulation(u, 1, tune)
			return err
		}, nil
	}
	return nil, fmt.Errorf("unknown kernel %q", name)
}

func run(args []string) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	work, err := kernel(opts.kernel, opts.n, cfg)
	if err != nil {
		return err
	}
	logger := logging.Logger()
	logger.Info("running",
		"kernel", opts.kernel,
		"n", opts.n,
		"concurrency", concurrency.NumCPUs(),
		"workers", pool.Default().Size(),
		"threads", parfor.CalculateNumThreads(opts.n, cfg.MinIterationsPerThread))

	var total time.Duration
	for round := 0; round < opts.rounds; round++ {
		start := time.Now()
		if err := work(); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		elapsed := time.Since(start)
		total += elapsed
		logger.Debug("round done", "round", round, "elapsed", elapsed)
	}
	stats := pool.Default().Stats()
	fmt.Printf("kernel=%s n=%d concurrency=%d rounds=%d mean=%v batches=%d inline=%d\n",
		opts.kernel, opts.n, concurrency.NumCPUs(), opts.rounds,
		total/time.Duration(opts.rounds), stats.Batches, stats.InlineBatches)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		logging.Logger().Error("parfor-bench failed", "err", err)
		os.Exit(1)
	}
}
