package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all benchmark flags on a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mybench [flags] URL",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// positiveInt is a flag value that only accepts integers greater than zero.
// A rejected value is remembered so the loader can surface the matching
// sentinel error instead of pflag's generic message.
type positiveInt struct {
	value   int
	invalid error
	failed  bool
}

func newPositiveInt(def int, invalid error) *positiveInt {
	return &positiveInt{value: def, invalid: invalid}
}

func (p *positiveInt) String() string { return strconv.Itoa(p.value) }

func (p *positiveInt) Type() string { return "int" }

func (p *positiveInt) Set(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v <= 0 {
		p.failed = true
		return p.invalid
	}
	p.value = v
	return nil
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Request flags
	flags.String("target", "", "Target URL (may also be given as the positional argument)")
	flags.String("method", http.MethodGet, "HTTP method to use (GET or HEAD)")
	flags.Bool("get", false, "Use GET request method")
	flags.Bool("head", false, "Use HEAD request method")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.BoolP("keepalive", "k", false, "Reuse the connection across requests within a worker")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout (0 means none)")
	flags.Bool("fail-status", false, "Count HTTP responses with status >= 400 as failures")

	// Load control flags
	flags.VarP(newPositiveInt(DefaultTime, ErrInvalidTime), "time", "t", "Run benchmark for <sec> seconds")
	flags.VarP(newPositiveInt(DefaultClients, ErrInvalidClients), "clients", "c", "Run <n> HTTP clients at once")
	flags.VarP(newPositiveInt(0, ErrInvalidRound), "round", "r", "Max rounds per client (0 means unbounded)")
	flags.Int("rate", 0, "Requests per second limit per client (0 means unlimited)")
	flags.Duration("stagger", DefaultStagger, "Delay before each client starts")
	flags.Duration("grace", DefaultGrace, "Extra time to wait for client reports after the deadline")
	flags.String("isolation", string(IsolationGoroutine), "Client isolation: 'goroutine' or 'process'")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("yaml-output", false, "Emit YAML formatted output")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.Bool("progress", false, "Show elapsed time on stderr while the benchmark runs")
	flags.String("history", "", "Append the run summary to this JSON-lines file")
	flags.StringSlice("threshold", nil, "Pass/fail assertion (repeatable, e.g. 'http_req_failed:count == 0')")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported to the collector")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests to trace (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS towards the collector")
	flags.Bool("tracing-propagate", true, "Inject W3C trace context headers when tracing is enabled")

	flags.BoolP("version", "v", false, "Display program version")
	flags.BoolP("help", "h", false, "Display help information")
}

// Usage writes the help text for the benchmark command.
func Usage(w io.Writer) {
	displayHelp(newFlagCommand(), w)
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command, out io.Writer) {
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// rejectedCount returns the sentinel of the first positive-int flag that
// refused its value, if any.
func rejectedCount(fs *pflag.FlagSet) error {
	for _, name := range []string{"time", "round", "clients"} {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if p, ok := flag.Value.(*positiveInt); ok && p.failed {
			return p.invalid
		}
	}
	return nil
}

func countFlag(fs *pflag.FlagSet, name string) int {
	if p, ok := fs.Lookup(name).Value.(*positiveInt); ok {
		return p.value
	}
	return 0
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("method") {
		val, err := fs.GetString("method")
		if err != nil {
			return err
		}
		cfg.Method = val
	}

	useGet, err := fs.GetBool("get")
	if err != nil {
		return err
	}
	useHead, err := fs.GetBool("head")
	if err != nil {
		return err
	}
	switch {
	case useGet && useHead:
		return errors.New("--get and --head are mutually exclusive")
	case useGet:
		cfg.Method = http.MethodGet
	case useHead:
		cfg.Method = http.MethodHead
	}

	if fs.Changed("keepalive") {
		val, err := fs.GetBool("keepalive")
		if err != nil {
			return err
		}
		cfg.KeepAlive = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("fail-status") {
		val, err := fs.GetBool("fail-status")
		if err != nil {
			return err
		}
		cfg.FailStatus = val
	}

	if fs.Changed("time") {
		cfg.Time = countFlag(fs, "time")
	}
	if fs.Changed("clients") {
		cfg.Clients = countFlag(fs, "clients")
	}
	if fs.Changed("round") {
		cfg.Round = countFlag(fs, "round")
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("stagger") {
		val, err := fs.GetDuration("stagger")
		if err != nil {
			return err
		}
		cfg.Stagger = val
	}
	if fs.Changed("grace") {
		val, err := fs.GetDuration("grace")
		if err != nil {
			return err
		}
		cfg.Grace = val
	}
	if fs.Changed("isolation") {
		val, err := fs.GetString("isolation")
		if err != nil {
			return err
		}
		cfg.Isolation = Isolation(strings.ToLower(strings.TrimSpace(val)))
	}

	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.LogErrors = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("history") {
		val, err := fs.GetString("history")
		if err != nil {
			return err
		}
		cfg.HistoryFile = strings.TrimSpace(val)
	}
	if fs.Changed("threshold") {
		vals, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = append(cfg.Thresholds, vals...)
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return applyTracingFlags(&cfg.Tracing, fs)
}

func applyTracingFlags(tc *TracingConfig, fs *pflag.FlagSet) error {
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		tc.ServiceName = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		tc.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		tc.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		tc.Propagate = &val
	}
	return nil
}
