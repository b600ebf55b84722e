package monitor

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/theaterctl/cmd/util"
	"github.com/ValentinKolb/theaterctl/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// PerfCmd benchmarks a Theater server over a single client connection
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance testing tool for Theater servers",
		Long: `Runs a set of benchmarks against a Theater server. All goroutines share one
client and therefore one connection, so the numbers show the throughput of the
serialized request/response exchange. The actor benchmarks start an actor from
--manifest and stop it afterwards.`,
		PersistentPreRunE: setupMonitorClient,
		PreRunE:           processPerfConfig,
		RunE:              runPerf,
	}
	perfNumThreads = 10
	perfManifest   = ""
	perfValueSize  = 16
	perfSkip       = make([]string, 0)

	perfPercentiles = []float64{0.5, 0.95, 0.99}
)

// perfResult holds the outcome of a single benchmark
type perfResult struct {
	bench  testing.BenchmarkResult
	timer  gometrics.Timer
	errors gometrics.Counter
}

func init() {
	key := "skip"
	PerfCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. ping,state)"))
	key = "threads"
	PerfCmd.Flags().Int(key, 10, util.WrapString("Number of goroutines sharing the client"))
	key = "manifest"
	PerfCmd.Flags().String(key, "", util.WrapString("Manifest of the actor used by the actor benchmarks (empty skips them)"))
	key = "value-size"
	PerfCmd.Flags().Int(key, 16, util.WrapString("Size of the messages sent to the actor (in bytes)"))
	key = "csv"
	PerfCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	perfManifest = viper.GetString("manifest")
	perfValueSize = viper.GetInt("value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfNumThreads <= 0 {
		return fmt.Errorf("threads must be positive")
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for Theater servers")

	config, err := util.GetClientConfig()
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// the actor benchmarks need a running actor
	actorID := ""
	if perfManifest != "" {
		actorID, err = theater.StartActor(ctx, perfManifest, nil)
		if err != nil {
			return fmt.Errorf("failed to start benchmark actor: %w", err)
		}
		defer func() {
			if err := theater.StopActor(context.Background(), actorID); err != nil {
				log.Printf("error stopping benchmark actor %s: %v\n", actorID, err)
			}
		}()
	}

	payload := make([]byte, perfValueSize)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	benchmarks := []struct {
		name     string
		needsAct bool
		op       func(counter int) error
	}{
		{"ping", false, func(int) error {
			return theater.Ping(ctx)
		}},
		{"state", true, func(int) error {
			_, err := theater.GetActorState(ctx, actorID)
			return err
		}},
		{"send", true, func(int) error {
			return theater.SendMessage(ctx, actorID, payload)
		}},
		{"request", true, func(int) error {
			_, err := theater.RequestMessage(ctx, actorID, payload)
			return err
		}},
		{"mixed", true, func(counter int) error {
			var err error
			switch counter % 3 {
			case 0:
				err = theater.Ping(ctx)
			case 1:
				_, err = theater.GetActorState(ctx, actorID)
			case 2:
				_, err = theater.RequestMessage(ctx, actorID, payload)
			}
			return err
		}},
	}

	fmt.Println("starting tests...")

	results := make(map[string]perfResult)
	for _, bm := range benchmarks {
		if shouldSkip(bm.name) || (bm.needsAct && actorID == "") || ctx.Err() != nil {
			printResult(bm.name, perfResult{})
			continue
		}
		result := runBenchmark(bm.name, bm.op)
		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark runs op in parallel and records the latency of every call
func runBenchmark(name string, op func(counter int) error) perfResult {
	result := perfResult{
		timer:  gometrics.NewTimer(),
		errors: gometrics.NewCounter(),
	}

	result.bench = testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				err := op(counter)
				result.timer.UpdateSince(start)
				if err != nil {
					result.errors.Inc(1)
					log.Printf("(%s) - error: %v\n", name, err)
				}
				counter++
			}
		})
	})

	return result
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.timer == nil || result.bench.NsPerOp() == 0 {
		fmt.Printf("%-12sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.timer.Percentiles(perfPercentiles)

	fmt.Printf("%-12s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p95=%s p99=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]),
		result.errors.Count(),
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P95Ns", "P99Ns", "Errors",
		"Endpoint", "TimeoutSec", "MaxAttempts", "ReconnectPolicy",
		"Serializer", "Transport", "Threads", "ValueSize",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	slices.Sort(tests)

	for _, test := range tests {
		result := results[test]
		nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1)
		ps := result.timer.Percentiles(perfPercentiles)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", 1.0/(nsPerOp/1e9)),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(result.errors.Count(), 10),
			config.Endpoint,
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.MaxAttempts),
			string(config.Transport.ReconnectPolicy),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfValueSize),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
