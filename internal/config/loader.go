package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	out io.Writer
}

// NewLoader creates a new configuration Loader that prints help to stdout.
func NewLoader() *Loader {
	return &Loader{out: os.Stdout}
}

// WithOutput redirects help output.
func (l *Loader) WithOutput(w io.Writer) *Loader {
	if w == nil {
		w = io.Discard
	}
	l.out = w
	return l
}

// Defaults returns a Config holding every default value.
func Defaults() *Config {
	return &Config{
		Method:    http.MethodGet,
		Headers:   map[string]string{},
		Clients:   DefaultClients,
		Time:      DefaultTime,
		Timeout:   DefaultTimeout,
		Stagger:   DefaultStagger,
		Grace:     DefaultGrace,
		Isolation: IsolationGoroutine,
		Tracing:   TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
// The URL may be given positionally or via --target; a positional URL wins.
func (l *Loader) Load(args []string) (*Config, error) {
	out := l.out
	if out == nil {
		out = os.Stdout
	}

	cmd := newFlagCommand()
	flagSet := cmd.Flags()
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd, out)
			return nil, ErrHelpRequested
		}
		if sentinel := rejectedCount(flagSet); sentinel != nil {
			return nil, fmt.Errorf("%w: %v", sentinel, err)
		}
		return nil, err
	}

	if wantsFlag(flagSet, "help") {
		displayHelp(cmd, out)
		return nil, ErrHelpRequested
	}
	if wantsFlag(flagSet, "version") {
		return nil, ErrVersionRequested
	}

	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(positional[1:], " "))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if len(positional) == 1 {
		cfg.TargetURL = positional[0]
	}

	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.Isolation = Isolation(strings.ToLower(strings.TrimSpace(string(cfg.Isolation))))

	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}

	return cfg, nil
}

func wantsFlag(fs *pflag.FlagSet, name string) bool {
	flag := fs.Lookup(name)
	if flag == nil {
		return false
	}
	want, err := strconv.ParseBool(flag.Value.String())
	return err == nil && want
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "method"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("method: %w", err)
		}
		if val != "" {
			cfg.Method = val
		}
	}

	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	if raw, ok := lookupSetting(settings, "keepalive", "keep_alive", "keep-alive"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("keepalive: %w", err)
		}
		cfg.KeepAlive = val
	}

	if raw, ok := lookupSetting(settings, "clients"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("clients: %w", err)
		}
		cfg.Clients = val
	}

	if raw, ok := lookupSetting(settings, "time"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("time: %w", err)
		}
		cfg.Time = val
	}

	if raw, ok := lookupSetting(settings, "round"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("round: %w", err)
		}
		cfg.Round = val
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "stagger"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("stagger: %w", err)
		}
		cfg.Stagger = dur
	}

	if raw, ok := lookupSetting(settings, "grace"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("grace: %w", err)
		}
		cfg.Grace = dur
	}

	if raw, ok := lookupSetting(settings, "isolation"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("isolation: %w", err)
		}
		cfg.Isolation = Isolation(val)
	}

	if raw, ok := lookupSetting(settings, "failstatus", "fail_status", "fail-status"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("failStatus: %w", err)
		}
		cfg.FailStatus = val
	}

	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("logErrors: %w", err)
		}
		cfg.LogErrors = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "yamloutput", "yaml_output", "yaml-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("yamlOutput: %w", err)
		}
		cfg.YAMLOutput = val
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "history", "historyfile", "history_file", "history-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		cfg.HistoryFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		vals, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = vals
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		if err := parseTracing(&cfg.Tracing, raw); err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
	}

	return nil
}

func parseTracing(tc *TracingConfig, value interface{}) error {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return err
	}

	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return nil
}
