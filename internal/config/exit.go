package config

import "errors"

// Process exit codes.
const (
	ExitOK            = 0
	ExitInvalidTime   = 1
	ExitInvalidRound  = 2
	ExitChannelSetup  = 3
	ExitMissingURL    = 4
	ExitHelp          = 5
	ExitInvalidClient = 6
	ExitInvalidConfig = 7
	ExitThresholds    = 8
)

// ErrChannelSetup marks a failure to create the reporting channel.
var ErrChannelSetup = errors.New("reporting channel setup failed")

// ErrThresholdsFailed is returned when at least one threshold did not pass.
var ErrThresholdsFailed = errors.New("thresholds failed")

// ExitCode maps an error returned by the loader, validation or the run to a
// process exit code. Checks follow flag order: time, round, clients, URL.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, ErrVersionRequested):
		return ExitOK
	case errors.Is(err, ErrHelpRequested):
		return ExitHelp
	case errors.Is(err, ErrInvalidTime):
		return ExitInvalidTime
	case errors.Is(err, ErrInvalidRound):
		return ExitInvalidRound
	case errors.Is(err, ErrInvalidClients):
		return ExitInvalidClient
	case errors.Is(err, ErrMissingURL):
		return ExitMissingURL
	case errors.Is(err, ErrChannelSetup):
		return ExitChannelSetup
	case errors.Is(err, ErrThresholdsFailed):
		return ExitThresholds
	default:
		return ExitInvalidConfig
	}
}
