// Package main provides the CLI entry point for kvbench, a multi-threaded
// load generator for concurrent key-value stores.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiihann/kvbench/affinity"
	"github.com/weiihann/kvbench/config"
	"github.com/weiihann/kvbench/driver"
	"github.com/weiihann/kvbench/keys"
	"github.com/weiihann/kvbench/metrics"
	"github.com/weiihann/kvbench/report"
	"github.com/weiihann/kvbench/store/memstore"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	root := newRootCmd(logger)
	if err := root.Execute(); err != nil {
		logger.Error("kvbench failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "kvbench",
		Short: "Concurrent key-value store load generator",
		Long: `Kvbench drives a concurrent key-value store through a bulk population
phase and a mixed-operation transaction phase with core-bound worker
threads, and reports per-thread throughput.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newGenKeysCmd(logger))
	root.AddCommand(newYCSBCmd(logger))

	return root
}

func newRunCmd(logger *slog.Logger) *cobra.Command {
	var (
		configPath  string
		metricsAddr string
		outputJSON  bool
	)

	cfg := config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the load and transaction phases against the in-memory store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath != "" {
				fileCfg, err := config.LoadFromFile(configPath)
				if err != nil {
					return err
				}
				// Flags set explicitly on the command line win over the
				// config file.
				fileCfg = applyFlagOverrides(cmd, fileCfg, cfg)
				cfg = fileCfg
			}

			return runBenchmark(cmd, logger, cfg, metricsAddr, outputJSON)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "",
		"Path to a YAML or JSON config file")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers,
		"Number of core-bound worker threads")
	flags.IntVar(&cfg.InitCount, "init-count", cfg.InitCount,
		"Exact key count expected in the load file")
	flags.IntVar(&cfg.TxnCount, "txn-count", cfg.TxnCount,
		"Exact key count expected in the run file")
	flags.Uint64Var(&cfg.ChunkSize, "chunk-size", cfg.ChunkSize,
		"Work-partitioner chunk size (0 = driver default)")
	flags.Uint64Var(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval,
		"Operations between epoch refreshes (0 = driver default)")
	flags.Uint64Var(&cfg.CompletePendingInterval, "complete-pending-interval",
		cfg.CompletePendingInterval,
		"Operations between non-blocking pending drains (0 = driver default)")
	flags.StringVar(&cfg.Mix, "mix", cfg.Mix,
		"Operation mix: read-upsert-50-50, rmw-100, upsert-100, read-100")
	flags.StringVar(&cfg.LoadFile, "load-file", cfg.LoadFile,
		"Binary key file for the population phase")
	flags.StringVar(&cfg.RunFile, "run-file", cfg.RunFile,
		"Binary key file for the transaction phase")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed,
		"Seed for per-worker operation-mix draws")
	flags.StringVar(&cfg.LivenessInterval, "liveness-interval",
		cfg.LivenessInterval,
		"Progress logging interval during the run phase (empty = off)")
	flags.StringVar(&metricsAddr, "metrics-listen", "",
		"Address to serve Prometheus metrics on (empty = off)")
	flags.BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of a table")

	return cmd
}

// applyFlagOverrides copies explicitly set flag values over a file config.
func applyFlagOverrides(cmd *cobra.Command, fileCfg, flagCfg config.Config) config.Config {
	set := func(name string) bool { return cmd.Flags().Changed(name) }

	if set("workers") {
		fileCfg.Workers = flagCfg.Workers
	}
	if set("init-count") {
		fileCfg.InitCount = flagCfg.InitCount
	}
	if set("txn-count") {
		fileCfg.TxnCount = flagCfg.TxnCount
	}
	if set("chunk-size") {
		fileCfg.ChunkSize = flagCfg.ChunkSize
	}
	if set("refresh-interval") {
		fileCfg.RefreshInterval = flagCfg.RefreshInterval
	}
	if set("complete-pending-interval") {
		fileCfg.CompletePendingInterval = flagCfg.CompletePendingInterval
	}
	if set("mix") {
		fileCfg.Mix = flagCfg.Mix
	}
	if set("load-file") {
		fileCfg.LoadFile = flagCfg.LoadFile
	}
	if set("run-file") {
		fileCfg.RunFile = flagCfg.RunFile
	}
	if set("seed") {
		fileCfg.Seed = flagCfg.Seed
	}
	if set("liveness-interval") {
		fileCfg.LivenessInterval = flagCfg.LivenessInterval
	}

	return fileCfg
}

func runBenchmark(
	cmd *cobra.Command,
	logger *slog.Logger,
	cfg config.Config,
	metricsAddr string,
	outputJSON bool,
) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.LoadFile == "" || cfg.RunFile == "" {
		return fmt.Errorf("--load-file and --run-file are required")
	}

	mix, ok := driver.Mixes[cfg.Mix]
	if !ok {
		return fmt.Errorf("unknown mix %q", cfg.Mix)
	}

	liveness, err := cfg.Liveness()
	if err != nil {
		return err
	}

	logger.Info("loading key files",
		slog.String("load_file", cfg.LoadFile),
		slog.String("run_file", cfg.RunFile),
	)

	initKeys, txnKeys, err := keys.LoadPair(
		cfg.LoadFile, cfg.RunFile, cfg.InitCount, cfg.TxnCount,
	)
	if err != nil {
		return fmt.Errorf("load key files: %w", err)
	}

	collector := metrics.NewCollector()
	if metricsAddr != "" {
		go func() {
			logger.Info("serving metrics", slog.String("addr", metricsAddr))
			mux := http.NewServeMux()
			mux.Handle("/metrics", collector.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped",
					slog.String("error", err.Error()))
			}
		}()
	}

	st := memstore.New()
	d, err := driver.New(st, affinity.NewOSBinder(), logger, driver.Config{
		Workers:                 cfg.Workers,
		ChunkSize:               cfg.ChunkSize,
		RefreshInterval:         cfg.RefreshInterval,
		CompletePendingInterval: cfg.CompletePendingInterval,
		LivenessInterval:        liveness,
		Seed:                    cfg.Seed,
	}, driver.WithMetrics(collector))
	if err != nil {
		return err
	}

	if err := d.Populate(initKeys); err != nil {
		return err
	}

	summary, err := d.Run(txnKeys, mix)
	if err != nil {
		return err
	}

	results := []report.Result{
		report.FromSummary(summary, cfg.Mix, cfg.InitCount, cfg.TxnCount, st.Size()),
	}

	if outputJSON {
		return report.GenerateJSON(cmd.OutOrStdout(), results)
	}
	return report.Generate(cmd.OutOrStdout(), results)
}

func newGenKeysCmd(logger *slog.Logger) *cobra.Command {
	var (
		phase     string
		initCount int
		txnCount  int
		outPath   string
	)

	cmd := &cobra.Command{
		Use:   "genkeys",
		Short: "Generate a sequential binary key file for a phase",
		RunE: func(_ *cobra.Command, _ []string) error {
			var count int
			switch phase {
			case "load":
				count = initCount
			case "run":
				count = txnCount
			default:
				return fmt.Errorf("phase must be load or run, got %q", phase)
			}
			if initCount <= 0 || count <= 0 {
				return fmt.Errorf("key counts must be positive")
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()

			if err := keys.Generate(f, uint64(count), uint64(initCount)); err != nil {
				return err
			}

			logger.Info("key file generated",
				slog.String("path", outPath),
				slog.String("phase", phase),
				slog.Int("keys", count),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&phase, "phase", "load",
		"Which phase to generate keys for: load or run")
	flags.IntVar(&initCount, "init-count", config.DefaultInitCount,
		"Initial key-space size (run keys wrap at this bound)")
	flags.IntVar(&txnCount, "txn-count", config.DefaultTxnCount,
		"Number of transaction keys")
	flags.StringVar(&outPath, "out", "",
		"Output key file path")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func newYCSBCmd(logger *slog.Logger) *cobra.Command {
	var inPath, outPath string

	cmd := &cobra.Command{
		Use:   "ycsb",
		Short: "Convert a textual YCSB trace into a binary key file",
		RunE: func(_ *cobra.Command, _ []string) error {
			in, err := os.Open(inPath)
			if err != nil {
				return fmt.Errorf("open trace: %w", err)
			}
			defer in.Close()

			out, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer out.Close()

			count, err := keys.ProcessYCSB(in, out)
			if err != nil {
				return err
			}

			logger.Info("trace converted",
				slog.String("in", inPath),
				slog.String("out", outPath),
				slog.Int("keys", count),
			)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&inPath, "in", "", "YCSB trace file")
	flags.StringVar(&outPath, "out", "", "Output key file path")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
