package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/mybench/internal/config"
)

func TestParseFlagsDefaults(t *testing.T) {
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "" {
		t.Errorf("TargetURL = %q, want empty", cfg.TargetURL)
	}
	if cfg.Method != "GET" {
		t.Errorf("Method = %q, want GET", cfg.Method)
	}
	if cfg.Clients != 1 {
		t.Errorf("Clients = %d, want 1", cfg.Clients)
	}
	if cfg.Time != 30 {
		t.Errorf("Time = %d, want 30", cfg.Time)
	}
	if cfg.Round != 0 {
		t.Errorf("Round = %d, want 0", cfg.Round)
	}
	if cfg.KeepAlive {
		t.Errorf("KeepAlive = true, want false")
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %s, want 30s", cfg.Timeout)
	}
	if cfg.Stagger != time.Second {
		t.Errorf("Stagger = %s, want 1s", cfg.Stagger)
	}
	if cfg.Isolation != config.IsolationGoroutine {
		t.Errorf("Isolation = %q, want goroutine", cfg.Isolation)
	}
	if cfg.JSONOutput || cfg.YAMLOutput {
		t.Errorf("structured output enabled by default")
	}
}

func TestParseFlagsPositionalURL(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"-c", "3", "-t", "10", "-r", "5", "-k", "--head", "http://localhost:8080/"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://localhost:8080/" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Clients != 3 || cfg.Time != 10 || cfg.Round != 5 {
		t.Errorf("clients/time/round = %d/%d/%d, want 3/10/5", cfg.Clients, cfg.Time, cfg.Round)
	}
	if !cfg.KeepAlive {
		t.Error("KeepAlive = false, want true")
	}
	if cfg.Method != "HEAD" {
		t.Errorf("Method = %q, want HEAD", cfg.Method)
	}
	if cfg.BenchTime() != 10*time.Second {
		t.Errorf("BenchTime() = %s, want 10s", cfg.BenchTime())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPositionalURLOverridesTarget(t *testing.T) {
	cfg, err := config.NewLoader().Load([]string{"--target", "http://a.example", "http://b.example"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "http://b.example" {
		t.Errorf("TargetURL = %q, want http://b.example", cfg.TargetURL)
	}
}

func TestLoadRejectsExtraPositionalArgs(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"http://a.example", "http://b.example"})
	if err == nil {
		t.Fatal("expected error for two positional URLs")
	}
	if code := config.ExitCode(err); code != config.ExitInvalidConfig {
		t.Errorf("ExitCode() = %d, want %d", code, config.ExitInvalidConfig)
	}
}

func TestLoadCountFlagExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want error
		code int
	}{
		{"zero time", []string{"-t", "0", "http://x"}, config.ErrInvalidTime, 1},
		{"negative time", []string{"--time=-5", "http://x"}, config.ErrInvalidTime, 1},
		{"zero round", []string{"-r", "0", "http://x"}, config.ErrInvalidRound, 2},
		{"garbage round", []string{"-r", "many", "http://x"}, config.ErrInvalidRound, 2},
		{"zero clients", []string{"-c", "0", "http://x"}, config.ErrInvalidClients, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.NewLoader().Load(tt.args)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Load() error = %v, want %v", err, tt.want)
			}
			if code := config.ExitCode(err); code != tt.code {
				t.Errorf("ExitCode() = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestLoadHelpAndVersion(t *testing.T) {
	var buf bytes.Buffer
	_, err := config.NewLoader().WithOutput(&buf).Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v", err)
	}
	if config.ExitCode(err) != config.ExitHelp {
		t.Errorf("ExitCode() = %d, want %d", config.ExitCode(err), config.ExitHelp)
	}
	out := buf.String()
	for _, want := range []string{"Usage:", "--clients", "--keepalive", "--round"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output missing %q", want)
		}
	}

	_, err = config.NewLoader().WithOutput(&buf).Load([]string{"-v"})
	if !errors.Is(err, config.ErrVersionRequested) {
		t.Fatalf("Load(-v) error = %v", err)
	}
	if config.ExitCode(err) != config.ExitOK {
		t.Errorf("ExitCode() = %d, want 0", config.ExitCode(err))
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
  "target": "https://example.com/health",
  "method": "head",
  "clients": 8,
  "time": 20,
  "round": 100,
  "keepalive": true,
  "timeout": "2s",
  "stagger": "250ms",
  "isolation": "process",
  "fail_status": true,
  "headers": {"x-env": "staging"},
  "thresholds": ["http_req_failed:rate < 0.01"],
  "tracing": {"endpoint": "localhost:4318", "protocol": "http", "insecure": true}
}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "https://example.com/health" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Method != "HEAD" {
		t.Errorf("Method = %q, want HEAD", cfg.Method)
	}
	if cfg.Clients != 8 || cfg.Time != 20 || cfg.Round != 100 {
		t.Errorf("clients/time/round = %d/%d/%d", cfg.Clients, cfg.Time, cfg.Round)
	}
	if !cfg.KeepAlive || !cfg.FailStatus {
		t.Errorf("KeepAlive/FailStatus = %v/%v, want true/true", cfg.KeepAlive, cfg.FailStatus)
	}
	if cfg.Timeout != 2*time.Second || cfg.Stagger != 250*time.Millisecond {
		t.Errorf("Timeout/Stagger = %s/%s", cfg.Timeout, cfg.Stagger)
	}
	if cfg.Isolation != config.IsolationProcess {
		t.Errorf("Isolation = %q, want process", cfg.Isolation)
	}
	if cfg.Headers["X-Env"] != "staging" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if len(cfg.Thresholds) != 1 || cfg.Thresholds[0] != "http_req_failed:rate < 0.01" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Endpoint != "localhost:4318" || cfg.Tracing.Protocol != "http" || !cfg.Tracing.Insecure {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
}

func TestLoadConfigFileYAMLWithFlagOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `target: http://localhost:9000
clients: 4
time: 5
grace: 3s
log_errors: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := config.NewLoader().Load([]string{"--config", path, "-c", "16"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "http://localhost:9000" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Clients != 16 {
		t.Errorf("Clients = %d, want flag value 16", cfg.Clients)
	}
	if cfg.Time != 5 {
		t.Errorf("Time = %d, want 5", cfg.Time)
	}
	if cfg.Grace != 3*time.Second {
		t.Errorf("Grace = %s, want 3s", cfg.Grace)
	}
	if !cfg.LogErrors {
		t.Error("LogErrors = false, want true")
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := config.NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidationErrors(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Defaults()
		cfg.TargetURL = "http://localhost"
		return *cfg
	}

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
		issue   string
		code    int
	}{
		{"missing url", func(c *config.Config) { c.TargetURL = "" }, config.ErrMissingURL, "missing URL", config.ExitMissingURL},
		{"zero time", func(c *config.Config) { c.Time = 0 }, config.ErrInvalidTime, "benchtime", config.ExitInvalidTime},
		{"negative round", func(c *config.Config) { c.Round = -1 }, config.ErrInvalidRound, "round", config.ExitInvalidRound},
		{"zero clients", func(c *config.Config) { c.Clients = 0 }, config.ErrInvalidClients, "clients", config.ExitInvalidClient},
		{"bad scheme", func(c *config.Config) { c.TargetURL = "ftp://localhost" }, nil, "scheme", config.ExitInvalidConfig},
		{"no host", func(c *config.Config) { c.TargetURL = "http://" }, nil, "no host", config.ExitInvalidConfig},
		{"bad method", func(c *config.Config) { c.Method = "POST" }, nil, "method", config.ExitInvalidConfig},
		{"negative rate", func(c *config.Config) { c.Rate = -1 }, nil, "rate", config.ExitInvalidConfig},
		{"bad isolation", func(c *config.Config) { c.Isolation = "thread" }, nil, "isolation", config.ExitInvalidConfig},
		{"both outputs", func(c *config.Config) { c.JSONOutput, c.YAMLOutput = true, true }, nil, "mutually exclusive", config.ExitInvalidConfig},
		{"sample rate", func(c *config.Config) { c.Tracing.SampleRate = 1.5 }, nil, "sample rate", config.ExitInvalidConfig},
		{"tracing protocol", func(c *config.Config) { c.Tracing.Protocol = "udp" }, nil, "tracing protocol", config.ExitInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() error = nil")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.issue) {
				t.Errorf("Validate() error = %q, want mention of %q", err, tt.issue)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.wantErr)
			}
			if code := config.ExitCode(err); code != tt.code {
				t.Errorf("ExitCode() = %d, want %d", code, tt.code)
			}
		})
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.TargetURL = "https://example.com:8443/path?q=1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestTracingPropagateDefaults(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var tc config.TracingConfig
	if tc.Enabled() || tc.ShouldPropagate() {
		t.Error("empty tracing config should be disabled")
	}
	tc.Endpoint = "localhost:4317"
	if !tc.Enabled() || !tc.ShouldPropagate() {
		t.Error("endpoint should enable tracing and propagation")
	}
	off := false
	tc.Propagate = &off
	if tc.ShouldPropagate() {
		t.Error("explicit propagate=false ignored")
	}
}

func TestExitCodeChannelAndThresholds(t *testing.T) {
	if got := config.ExitCode(config.ErrChannelSetup); got != 3 {
		t.Errorf("ExitCode(ErrChannelSetup) = %d, want 3", got)
	}
	if got := config.ExitCode(errors.Join(errors.New("x"), config.ErrThresholdsFailed)); got != 8 {
		t.Errorf("ExitCode(ErrThresholdsFailed) = %d, want 8", got)
	}
	if got := config.ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
}
