// Package config provides configuration loading, parsing and validation for mybench.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Isolation selects how workers are separated from each other.
type Isolation string

const (
	IsolationGoroutine Isolation = "goroutine"
	IsolationProcess   Isolation = "process"
)

const (
	DefaultTime    = 30
	DefaultClients = 1
	DefaultTimeout = 30 * time.Second
	DefaultStagger = time.Second
	DefaultGrace   = 5 * time.Second
)

var (
	// ErrHelpRequested is returned when the user asks for usage text.
	ErrHelpRequested = errors.New("help requested")
	// ErrVersionRequested is returned for -v/--version.
	ErrVersionRequested = errors.New("version requested")

	ErrInvalidTime    = errors.New("benchtime should be greater than zero [-t]")
	ErrInvalidRound   = errors.New("round should be greater than zero [-r]")
	ErrInvalidClients = errors.New("clients should be greater than zero [-c]")
	ErrMissingURL     = errors.New("missing URL")
)

// Config is the immutable run configuration shared by every worker.
type Config struct {
	TargetURL   string            `mapstructure:"target" json:"target"`
	Method      string            `mapstructure:"method" json:"method"`
	Headers     map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	KeepAlive   bool              `mapstructure:"keepalive" json:"keepalive"`
	Clients     int               `mapstructure:"clients" json:"clients"`
	Time        int               `mapstructure:"time" json:"time"`   // seconds
	Round       int               `mapstructure:"round" json:"round"` // 0 means unbounded
	Timeout     time.Duration     `mapstructure:"timeout" json:"timeout"`
	Rate        int               `mapstructure:"rate" json:"rate"` // per worker, 0 means unlimited
	Stagger     time.Duration     `mapstructure:"stagger" json:"stagger"`
	Grace       time.Duration     `mapstructure:"grace" json:"grace"`
	Isolation   Isolation         `mapstructure:"isolation" json:"isolation"`
	FailStatus  bool              `mapstructure:"fail_status" json:"fail_status"`
	LogErrors   bool              `mapstructure:"log_errors" json:"log_errors"`
	JSONOutput  bool              `mapstructure:"json_output" json:"json_output"`
	YAMLOutput  bool              `mapstructure:"yaml_output" json:"yaml_output"`
	Progress    bool              `mapstructure:"progress" json:"progress"`
	HistoryFile string            `mapstructure:"history_file" json:"history_file,omitempty"`
	Thresholds  []string          `mapstructure:"thresholds" json:"thresholds,omitempty"`
	Tracing     TracingConfig     `mapstructure:"tracing" json:"tracing"`
	ConfigFile  string            `mapstructure:"-" json:"-"`
}

// TracingConfig configures OpenTelemetry export of per-request spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint" json:"endpoint,omitempty"`
	Protocol    string  `mapstructure:"protocol" json:"protocol,omitempty"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name" json:"service_name,omitempty"`
	SampleRate  float64 `mapstructure:"sample_rate" json:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure" json:"insecure,omitempty"`
	Propagate   *bool   `mapstructure:"propagate" json:"propagate,omitempty"`
}

// Enabled reports whether an exporter endpoint is configured, either
// explicitly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers are injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// BenchTime returns the per-worker deadline.
func (c Config) BenchTime() time.Duration {
	return time.Duration(c.Time) * time.Second
}

// ValidationError collects every issue found by Validate.
type ValidationError struct {
	issues []string
	causes []error
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Unwrap exposes the sentinel causes so errors.Is can find them.
func (e ValidationError) Unwrap() []error {
	return e.causes
}

func (e *ValidationError) add(cause error, issue string) {
	e.issues = append(e.issues, issue)
	if cause != nil {
		e.causes = append(e.causes, cause)
	}
}

func (c Config) Validate() error {
	var verr ValidationError

	if c.Clients > 500 {
		fmt.Fprintf(os.Stderr, "WARNING: High client count configured (%d workers). Ensure you have authorization to test the target system.\n", c.Clients)
	}

	if c.Time <= 0 {
		verr.add(ErrInvalidTime, ErrInvalidTime.Error())
	}
	if c.Round < 0 {
		verr.add(ErrInvalidRound, ErrInvalidRound.Error())
	}
	if c.Clients <= 0 {
		verr.add(ErrInvalidClients, ErrInvalidClients.Error())
	}

	target := strings.TrimSpace(c.TargetURL)
	if target == "" {
		verr.add(ErrMissingURL, "missing URL (use --help for usage information)")
	} else if u, err := url.Parse(target); err != nil {
		verr.add(nil, fmt.Sprintf("invalid URL %q: %v", target, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		verr.add(nil, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		verr.add(nil, fmt.Sprintf("URL %q has no host", target))
	}

	switch strings.ToUpper(c.Method) {
	case http.MethodGet, http.MethodHead:
	default:
		verr.add(nil, fmt.Sprintf("method must be GET or HEAD, got %q", c.Method))
	}

	if c.Timeout < 0 {
		verr.add(nil, "timeout must be non-negative")
	}
	if c.Rate < 0 {
		verr.add(nil, "rate must be non-negative")
	}
	if c.Stagger < 0 {
		verr.add(nil, "stagger must be non-negative")
	}
	if c.Grace < 0 {
		verr.add(nil, "grace must be non-negative")
	}

	switch c.Isolation {
	case IsolationGoroutine, IsolationProcess:
	default:
		verr.add(nil, fmt.Sprintf("isolation must be %q or %q, got %q", IsolationGoroutine, IsolationProcess, c.Isolation))
	}

	if c.JSONOutput && c.YAMLOutput {
		verr.add(nil, "json output and yaml output are mutually exclusive")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		verr.add(nil, fmt.Sprintf("tracing sample rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	switch strings.ToLower(c.Tracing.Protocol) {
	case "", "grpc", "http":
	default:
		verr.add(nil, fmt.Sprintf("tracing protocol must be grpc or http, got %q", c.Tracing.Protocol))
	}

	if len(verr.issues) > 0 {
		return verr
	}
	return nil
}
