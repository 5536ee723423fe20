package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/metrics"
	"github.com/torosent/mybench/internal/threshold"
)

func sampleReport() metrics.Report {
	return metrics.Report{
		RunID:          "01HZX3M6N7P8Q9R0S1T2V3W4X5",
		Target:         "http://localhost:8080/",
		Method:         "GET",
		Workers:        3,
		Reported:       2,
		Lost:           1,
		TotalSuccess:   95,
		TotalFailed:    5,
		TotalBytes:     12800,
		BenchTime:      10 * time.Second,
		Elapsed:        11*time.Second + 234567*time.Microsecond,
		RequestsPerSec: 10,
		BytesPerSec:    1280,
	}
}

func sampleResults() []threshold.Result {
	return []threshold.Result{
		{Expr: "http_req_failed:count == 0", Actual: 5, Pass: false, Message: "✗ http_req_failed:count == 0: 5 == 0"},
		{Expr: "http_requests:rate > 5", Actual: 10, Pass: true, Message: "✓ http_requests:rate > 5: 10 > 5"},
	}
}

func TestPrintBanner(t *testing.T) {
	cfg := config.Defaults()
	cfg.TargetURL = "http://localhost/"
	cfg.Clients = 3
	cfg.Time = 10

	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3", cfg)
	want := "mybench - Another Http Benchmark Tool v1.2.3\nBenchmarking: GET http://localhost/\n\n3 clients running 10 sec.\n"
	if buf.String() != want {
		t.Errorf("banner = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	cfg.Round = 5
	PrintBanner(&buf, "1.2.3", cfg)
	if !strings.HasSuffix(buf.String(), "3 clients running 10 sec with 5 max round.\n") {
		t.Errorf("banner with round = %q", buf.String())
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, sampleReport())
	want := "Speed: 10 qps, 1280 bytes/sec.\nRequests: 95 succeeded, 5 failed.\n"
	if buf.String() != want {
		t.Errorf("summary = %q, want %q", buf.String(), want)
	}
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, sampleReport())

	output := buf.String()
	for _, want := range []string{
		"Speed: 10 qps, 1280 bytes/sec.",
		"Run ID:            01HZX3M6N7P8Q9R0S1T2V3W4X5",
		"Workers:           3 (2 reported, 1 lost)",
		"Total Requests:    100",
		"Failed:            5 (5.00%)",
		"Bytes Received:    12800",
		"Elapsed:           11.235s",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q\n%s", want, output)
		}
	}
}

func TestPrintReportWithoutLostWorkers(t *testing.T) {
	rep := sampleReport()
	rep.Reported, rep.Lost = 3, 0

	var buf bytes.Buffer
	PrintReport(&buf, rep)
	if strings.Contains(buf.String(), "lost") {
		t.Errorf("report should not mention lost workers:\n%s", buf.String())
	}
}

func TestPrintThresholds(t *testing.T) {
	var buf bytes.Buffer
	PrintThresholds(&buf, sampleResults())

	output := buf.String()
	if !strings.Contains(output, "Thresholds: 1/2 passed") {
		t.Errorf("missing pass count:\n%s", output)
	}
	if !strings.Contains(output, "  ✗ http_req_failed:count == 0: 5 == 0") {
		t.Errorf("missing failed threshold:\n%s", output)
	}

	buf.Reset()
	PrintThresholds(&buf, nil)
	if buf.Len() != 0 {
		t.Errorf("expected no output without thresholds, got %q", buf.String())
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport(), sampleResults()); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}

	doc := buf.String()
	if !gjson.Valid(doc) {
		t.Fatalf("invalid JSON: %s", doc)
	}
	checks := map[string]string{
		"run_id":                 "01HZX3M6N7P8Q9R0S1T2V3W4X5",
		"total_success":          "95",
		"total_failed":           "5",
		"total_bytes":            "12800",
		"requests_per_sec":       "10",
		"lost":                   "1",
		"thresholds.#":           "2",
		"thresholds.0.threshold": "http_req_failed:count == 0",
		"thresholds.1.pass":      "true",
	}
	for path, want := range checks {
		if got := gjson.Get(doc, path).String(); got != want {
			t.Errorf("%s = %q, want %q", path, got, want)
		}
	}
	if gjson.Get(doc, "BenchTime").Exists() || gjson.Get(doc, "Report").Exists() {
		t.Errorf("unexpected raw fields in %s", doc)
	}
}

func TestPrintJSONReportOmitsEmptyThresholds(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleReport(), nil); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}
	if gjson.Get(buf.String(), "thresholds").Exists() {
		t.Error("thresholds should be omitted when none are configured")
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleReport(), sampleResults()); err != nil {
		t.Fatalf("PrintYAMLReport() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v\n%s", err, buf.String())
	}
	if decoded["total_success"] != 95 {
		t.Errorf("total_success = %v, want 95", decoded["total_success"])
	}
	if decoded["target"] != "http://localhost:8080/" {
		t.Errorf("target = %v", decoded["target"])
	}
	thresholds, ok := decoded["thresholds"].([]interface{})
	if !ok || len(thresholds) != 2 {
		t.Errorf("thresholds = %v", decoded["thresholds"])
	}
	if _, ok := decoded["report"]; ok {
		t.Error("report fields should be inlined")
	}
}
