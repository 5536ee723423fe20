package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/metrics"
	"github.com/torosent/mybench/internal/threshold"
)

// Document is the structured form of a finished run.
type Document struct {
	metrics.Report `yaml:",inline"`
	Thresholds     []threshold.Result `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
}

// PrintBanner writes the run header.
func PrintBanner(w io.Writer, version string, cfg *config.Config) {
	fmt.Fprintf(w, "mybench - Another Http Benchmark Tool v%s\n", version)
	fmt.Fprintf(w, "Benchmarking: %s %s\n", cfg.Method, cfg.TargetURL)
	fmt.Fprintf(w, "\n%d clients running %d sec", cfg.Clients, cfg.Time)
	if cfg.Round > 0 {
		fmt.Fprintf(w, " with %d max round", cfg.Round)
	}
	fmt.Fprintln(w, ".")
}

// PrintSummary writes the classic two-line result.
func PrintSummary(w io.Writer, rep metrics.Report) {
	fmt.Fprintf(w, "Speed: %d qps, %d bytes/sec.\n", rep.RequestsPerSec, rep.BytesPerSec)
	fmt.Fprintf(w, "Requests: %d succeeded, %d failed.\n", rep.TotalSuccess, rep.TotalFailed)
}

// PrintReport outputs a human-readable report.
func PrintReport(w io.Writer, rep metrics.Report) {
	PrintSummary(w, rep)

	fmt.Fprintln(w, "\n--- Benchmark Results ---")
	if rep.RunID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", rep.RunID)
	}
	fmt.Fprintf(w, "Workers:           %d", rep.Workers)
	if rep.Lost > 0 {
		fmt.Fprintf(w, " (%d reported, %d lost)", rep.Reported, rep.Lost)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Requests:    %d\n", rep.TotalRequests())
	fmt.Fprintf(w, "Successful:        %d\n", rep.TotalSuccess)
	fmt.Fprintf(w, "Failed:            %d (%.2f%%)\n", rep.TotalFailed, rep.FailureRate()*100)
	fmt.Fprintf(w, "Bytes Received:    %d\n", rep.TotalBytes)
	fmt.Fprintf(w, "Bench Time:        %s\n", rep.BenchTime)
	fmt.Fprintf(w, "Elapsed:           %s\n", rep.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Requests/sec:      %d\n", rep.RequestsPerSec)
	fmt.Fprintf(w, "Bytes/sec:         %d\n", rep.BytesPerSec)
}

// PrintThresholds writes one line per evaluated threshold.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	passed := 0
	for _, r := range results {
		if r.Pass {
			passed++
		}
	}
	fmt.Fprintf(w, "\nThresholds: %d/%d passed\n", passed, len(results))
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", strings.TrimSpace(r.Message))
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, rep metrics.Report, results []threshold.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{Report: rep, Thresholds: results})
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, rep metrics.Report, results []threshold.Result) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Report: rep, Thresholds: results}); err != nil {
		return err
	}
	return enc.Close()
}
