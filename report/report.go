// Package report formats benchmark results into comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/weiihann/kvbench/harness"
	"github.com/weiihann/kvbench/workload"
)

// Entry is everything measured for one engine.
type Entry struct {
	Engine string `json:"engine"`
	// Samples is the wall time of each timed run, as seen by the driver.
	Samples []time.Duration `json:"samples_ns"`
	// Results holds the harness result of each sample.
	Results []harness.Result `json:"results"`
}

// Generate writes a markdown comparison table for the given entries.
func Generate(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("no results to report")
	}

	fastest := findFastest(entries)

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)

	first := entries[0].spec()
	fmt.Fprintf(w, "Workload: %s items x %d instances x %d iterations\n",
		humanize.Comma(int64(first.Items)), first.Instances, first.Iterations)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Engine | Samples | Fastest | Mean | Instance Mean "+
		"| Throughput | DB Size | Slowdown |")
	fmt.Fprintln(w, "|--------|---------|---------|------|---------------"+
		"|------------|---------|----------|")

	for _, e := range entries {
		mean := meanDuration(e.Samples)

		slowdown := 1.0
		if fastest > 0 && mean > 0 {
			slowdown = float64(mean) / float64(fastest)
		}

		fmt.Fprintf(w, "| %s | %d | %s | %s | %s | %s | %s | %.2fx |\n",
			e.Engine,
			len(e.Samples),
			formatDuration(minDuration(e.Samples)),
			formatDuration(mean),
			formatDuration(e.instanceMean()),
			formatThroughput(e.spec().TotalWrites(), mean),
			formatBytes(e.dbSize()),
			slowdown,
		)
	}

	return nil
}

// GenerateJSON writes entries as JSON to w.
func GenerateJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(entries)
}

func (e Entry) spec() workload.Spec {
	if len(e.Results) == 0 {
		return workload.Spec{}
	}

	r := e.Results[0]

	return workload.Spec{Items: r.Items, Iterations: r.Iterations, Instances: r.Instances}
}

func (e Entry) instanceMean() time.Duration {
	var all []time.Duration
	for _, r := range e.Results {
		all = append(all, r.Durations...)
	}

	return meanDuration(all)
}

func (e Entry) dbSize() uint64 {
	if len(e.Results) == 0 {
		return 0
	}

	return e.Results[len(e.Results)-1].DBSizeBytes
}

// findFastest returns the lowest mean sample time across engines.
func findFastest(entries []Entry) time.Duration {
	fastest := time.Duration(math.MaxInt64)
	for _, e := range entries {
		mean := meanDuration(e.Samples)
		if mean > 0 && mean < fastest {
			fastest = mean
		}
	}

	if fastest == math.MaxInt64 {
		return 0
	}

	return fastest
}

func meanDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range ds {
		sum += d
	}

	return sum / time.Duration(len(ds))
}

func minDuration(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}

	low := ds[0]
	for _, d := range ds[1:] {
		low = min(low, d)
	}

	return low
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatThroughput(writes int, d time.Duration) string {
	if writes == 0 || d <= 0 {
		return "-"
	}

	return humanize.SIWithDigits(float64(writes)/d.Seconds(), 2, "writes/s")
}

func formatBytes(b uint64) string {
	if b == 0 {
		return "-"
	}

	return humanize.IBytes(b)
}
