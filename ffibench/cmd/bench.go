package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/analogrelay/go-ffi-boundary/interop"
	"github.com/analogrelay/go-ffi-boundary/internal/benchstore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// benchCmd represents the bench command
var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark one boundary operation",
	Long: `Runs the chosen operation from a pool of workers for a fixed duration and
reports throughput and mean latency. Each worker owns its own native handles.
With --record the results are appended to a SQLite history database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBenchmark(cmd)
	},
}

// BenchmarkResults summarizes one run.
type BenchmarkResults struct {
	Op           string        `json:"op"`
	Workers      int           `json:"workers"`
	TotalOps     int           `json:"totalOps"`
	Errors       int           `json:"errors"`
	ElapsedTime  time.Duration `json:"elapsedTime"`
	OpsPerSecond float64       `json:"opsPerSecond"`
	LatencyMs    float64       `json:"latencyMs"`
}

// benchOp builds the per-worker operation and its cleanup.
type benchOp func(workerID int) (op func() error, done func(), err error)

var benchOps = map[string]benchOp{
	"add-raw": func(int) (func() error, func(), error) {
		return func() error {
			interop.AddRaw(1, 2)
			return nil
		}, func() {}, nil
	},
	"add": func(int) (func() error, func(), error) {
		return func() error {
			_, err := interop.Add(1, 2)
			return err
		}, func() {}, nil
	},
	"point": func(int) (func() error, func(), error) {
		p := interop.Point{X: 1, Y: 2}
		return func() error {
			_, err := interop.Greet("bench", p)
			return err
		}, func() {}, nil
	},
	"callback": func(workerID int) (func() error, func(), error) {
		fn := func(int32) error { return nil }
		return func() error {
			return interop.PerformActionN(workerID, 1, fn)
		}, func() {}, nil
	},
	"greet": func(workerID int) (func() error, func(), error) {
		g, err := interop.NewGreeter(fmt.Sprintf("worker%d", workerID))
		if err != nil {
			return nil, nil, err
		}
		return func() error {
			_, err := g.Greet()
			return err
		}, func() {
			if err := g.Close(); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "greet",
					"worker":   workerID,
					"error":    err.Error(),
				}).Warn("Failed to close benchmark greeter")
			}
		}, nil
	},
}

func benchOpNames() string {
	names := make([]string, 0, len(benchOps))
	for name := range benchOps {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func runBenchmark(cmd *cobra.Command) error {
	opName, err := cmd.Flags().GetString("op")
	if err != nil {
		return fmt.Errorf("failed to get op: %w", err)
	}
	duration, err := cmd.Flags().GetDuration("duration")
	if err != nil {
		return fmt.Errorf("failed to get duration: %w", err)
	}
	workers, err := cmd.Flags().GetInt("workers")
	if err != nil {
		return fmt.Errorf("failed to get workers: %w", err)
	}
	record, err := cmd.Flags().GetString("record")
	if err != nil {
		return fmt.Errorf("failed to get record: %w", err)
	}

	op, ok := benchOps[opName]
	if !ok {
		return fmt.Errorf("unknown op %q (want one of %s)", opName, benchOpNames())
	}
	if workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", workers)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Starting %s benchmark...\n", opName)
	fmt.Fprintf(w, "Duration: %v\n", duration)
	fmt.Fprintf(w, "Workers: %d\n", workers)
	fmt.Fprintln(w)

	startedAt := time.Now()
	results, err := executeBenchmark(cmd.Context(), w, opName, op, workers, duration)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}
	printResults(w, results)

	if record == "" {
		return nil
	}
	run, err := recordRun(cmd.Context(), record, results, startedAt)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Recorded run %s\n", run.ID)
	return nil
}

// recordRun appends results to the history database at path.
func recordRun(ctx context.Context, path string, results *BenchmarkResults, startedAt time.Time) (*benchstore.Run, error) {
	store, err := benchstore.Open(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	run := &benchstore.Run{
		Op:           results.Op,
		Workers:      results.Workers,
		TotalOps:     int64(results.TotalOps),
		Errors:       int64(results.Errors),
		Elapsed:      results.ElapsedTime,
		OpsPerSecond: results.OpsPerSecond,
		LatencyMs:    results.LatencyMs,
		StartedAt:    startedAt,
	}
	if err := store.Save(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

func executeBenchmark(ctx context.Context, w io.Writer, opName string, op benchOp, workers int, duration time.Duration) (*BenchmarkResults, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// Build every worker's op before the clock starts
	ops := make([]func() error, workers)
	dones := make([]func(), 0, workers)
	defer func() {
		for _, done := range dones {
			done()
		}
	}()
	for i := range ops {
		fn, done, err := op(i)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare worker %d: %w", i, err)
		}
		ops[i] = fn
		dones = append(dones, done)
	}

	startTime := time.Now()
	endTime := startTime.Add(duration)

	// Shared counters for all workers
	var totalOps, totalLatency, totalErrors int64

	benchCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			workerBenchmark(benchCtx, ops[workerID], &totalOps, &totalLatency, &totalErrors, workerID)
		}(i)
	}

	progressTicker := time.NewTicker(5 * time.Second)
	defer progressTicker.Stop()

	go func() {
		for {
			select {
			case <-progressTicker.C:
				currentOps := atomic.LoadInt64(&totalOps)
				elapsed := time.Since(startTime)
				remaining := time.Until(endTime)
				if remaining > 0 {
					logrus.WithFields(logrus.Fields{
						"function":  "executeBenchmark",
						"ops":       currentOps,
						"opsPerSec": float64(currentOps) / elapsed.Seconds(),
						"remaining": remaining.Round(time.Second).String(),
					}).Info("Benchmark progress")
				}
			case <-benchCtx.Done():
				return
			}
		}
	}()

	<-benchCtx.Done()
	wg.Wait()

	actualElapsed := time.Since(startTime)
	finalOps := atomic.LoadInt64(&totalOps)
	finalLatency := atomic.LoadInt64(&totalLatency)

	if finalOps == 0 {
		return nil, fmt.Errorf("no operations completed")
	}

	return &BenchmarkResults{
		Op:           opName,
		Workers:      workers,
		TotalOps:     int(finalOps),
		Errors:       int(atomic.LoadInt64(&totalErrors)),
		ElapsedTime:  actualElapsed,
		OpsPerSecond: float64(finalOps) / actualElapsed.Seconds(),
		LatencyMs:    float64(finalLatency) / float64(finalOps) / 1e6,
	}, nil
}

func workerBenchmark(ctx context.Context, op func() error, totalOps, totalLatency, totalErrors *int64, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			opStart := time.Now()
			err := op()
			opLatency := time.Since(opStart)

			if err != nil {
				// Count the failure but keep the worker running
				atomic.AddInt64(totalErrors, 1)
				logrus.WithFields(logrus.Fields{
					"function": "workerBenchmark",
					"worker":   workerID,
					"error":    err.Error(),
				}).Warn("Benchmark operation failed")
				continue
			}

			atomic.AddInt64(totalOps, 1)
			atomic.AddInt64(totalLatency, opLatency.Nanoseconds())
		}
	}
}

func printResults(w io.Writer, results *BenchmarkResults) {
	fmt.Fprintf(w, "\n=== Benchmark Results ===\n")
	fmt.Fprintf(w, "Total ops: %d\n", results.TotalOps)
	fmt.Fprintf(w, "Errors: %d\n", results.Errors)
	fmt.Fprintf(w, "Total elapsed time: %v\n", results.ElapsedTime.Round(time.Millisecond))
	fmt.Fprintf(w, "Ops/sec: %.2f\n", results.OpsPerSecond)
	fmt.Fprintf(w, "Latency (mean): %.6f ms\n", results.LatencyMs)
	fmt.Fprintf(w, "========================\n")

	fmt.Fprintf(w, "\n=== Markdown Table ===\n")
	fmt.Fprintf(w, "| Operation | Workers | Total Ops | Duration (ms) | Ops/sec | Latency (ms) |\n")
	fmt.Fprintf(w, "|-----------|---------|-----------|---------------|---------|--------------|\n")
	fmt.Fprintf(w, "| %s | %d | %d | %d | %.2f | %.6f |\n",
		results.Op,
		results.Workers,
		results.TotalOps,
		results.ElapsedTime.Milliseconds(),
		results.OpsPerSecond,
		results.LatencyMs)
	fmt.Fprintf(w, "======================\n")
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().StringP("op", "o", "add", "Operation to benchmark ("+benchOpNames()+")")
	benchCmd.Flags().DurationP("duration", "t", 10*time.Second, "Duration to run the benchmark")
	benchCmd.Flags().IntP("workers", "w", runtime.NumCPU(), "Number of concurrent workers")
	benchCmd.Flags().StringP("record", "r", "", "SQLite database to record the run in")
}
