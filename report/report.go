// Package report formats benchmark results as markdown tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	humanize "github.com/dustin/go-humanize"

	"github.com/weiihann/kvbench/driver"
)

// Result holds the outcome of one complete benchmark invocation.
type Result struct {
	Mix             string  `json:"mix"`
	Workers         int     `json:"workers"`
	InitCount       int     `json:"init_count"`
	TxnCount        int     `json:"txn_count"`
	StoreSize       uint64  `json:"store_size"`
	Reads           uint64  `json:"reads"`
	Upserts         uint64  `json:"upserts"`
	RMWs            uint64  `json:"rmws"`
	ThreadSeconds   float64 `json:"thread_seconds"`
	OpsPerThreadSec float64 `json:"ops_per_thread_second"`
}

// FromSummary builds a Result out of a transaction-phase summary.
func FromSummary(s driver.Summary, mix string, initCount, txnCount int, storeSize uint64) Result {
	return Result{
		Mix:             mix,
		Workers:         s.Workers,
		InitCount:       initCount,
		TxnCount:        txnCount,
		StoreSize:       storeSize,
		Reads:           s.Reads,
		Upserts:         s.Upserts,
		RMWs:            s.RMWs,
		ThreadSeconds:   s.Elapsed.Seconds(),
		OpsPerThreadSec: s.Throughput(),
	}
}

// Generate writes a markdown comparison table for the given results.
func Generate(w io.Writer, results []Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fmt.Fprintln(w, "## Benchmark Results")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Throughput is total operations divided by summed "+
		"per-thread seconds (average per-thread rate, not wall-clock).")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "| Mix | Workers | Reads | Upserts | RMWs "+
		"| Thread Time | Ops/s/thread | Store Size |")
	fmt.Fprintln(w, "|-----|---------|-------|---------|------"+
		"|-------------|--------------|------------|")

	for _, r := range results {
		fmt.Fprintf(w, "| %s | %d | %s | %s | %s | %.2fs | %s | %s |\n",
			r.Mix,
			r.Workers,
			humanize.Comma(int64(r.Reads)),
			humanize.Comma(int64(r.Upserts)),
			humanize.Comma(int64(r.RMWs)),
			r.ThreadSeconds,
			humanize.SIWithDigits(r.OpsPerThreadSec, 2, ""),
			humanize.Comma(int64(r.StoreSize)),
		)
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}
