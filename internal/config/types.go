// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// LogLevelDebug logs per-event tracing.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle messages.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs misdeclared boundaries and dropped subscribers.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs fatal errors only.
	LogLevelError LogLevel = "error"

	// DefaultDebounce is the default file event debounce window.
	DefaultDebounce = 100 * time.Millisecond
	// DefaultListen binds the engine to a random loopback port.
	DefaultListen ListenAddress = "127.0.0.1:0"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidGlobPattern is returned when a GlobPattern does not compile.
	ErrInvalidGlobPattern = errors.New("invalid glob pattern")
	// ErrInvalidListenAddress is returned when a ListenAddress is not host:port.
	ErrInvalidListenAddress = errors.New("invalid listen address")
	// ErrInvalidDebounce is returned when the debounce window is negative.
	ErrInvalidDebounce = errors.New("invalid debounce")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel is the minimum level written by the CLI logger.
	LogLevel string

	// GlobPattern is a doublestar pattern relative to the project root.
	GlobPattern string

	// ListenAddress is the host:port the engine server binds to.
	ListenAddress string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidGlobPatternError is returned when a glob does not compile.
	InvalidGlobPatternError struct {
		Field string
		Value GlobPattern
	}

	// InvalidListenAddressError is returned when a listen address cannot be split.
	InvalidListenAddressError struct {
		Value  ListenAddress
		Reason string
	}

	// InvalidDebounceError is returned when the debounce window is negative.
	InvalidDebounceError struct {
		Value time.Duration
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the hotswap configuration.
	Config struct {
		// Root is the entry file of the host program.
		Root string `json:"root" mapstructure:"root"`
		// ProjectRoot anchors every pattern. Defaults to the directory holding hotswap.cue.
		ProjectRoot string `json:"project_root" mapstructure:"project_root"`
		// Ignore lists files that never enter the graph nor produce events.
		Ignore []GlobPattern `json:"ignore" mapstructure:"ignore"`
		// Include restricts the watched files when not empty.
		Include []GlobPattern `json:"include" mapstructure:"include"`
		// Boundaries lists the hot-swappable modules.
		Boundaries []GlobPattern `json:"boundaries" mapstructure:"boundaries"`
		// Restart lists files whose change always restarts the host.
		Restart []GlobPattern `json:"restart" mapstructure:"restart"`
		// ThrowWhenBoundariesAreNotDynamicallyImported turns misdeclared
		// boundaries into load errors.
		ThrowWhenBoundariesAreNotDynamicallyImported bool `json:"throw_when_boundaries_are_not_dynamically_imported" mapstructure:"throw_when_boundaries_are_not_dynamically_imported"`
		// Debounce is the per-path quiet window of the watcher.
		Debounce time.Duration `json:"debounce" mapstructure:"debounce"`
		// Listen is the address of the engine server.
		Listen ListenAddress `json:"listen" mapstructure:"listen"`
		// ClearScreen clears the terminal before each host restart.
		ClearScreen bool `json:"clear_screen" mapstructure:"clear_screen"`
		// LogLevel is the CLI log level.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Ignore:      []GlobPattern{"**/node_modules/**"},
		Include:     []GlobPattern{"**/*"},
		Boundaries:  []GlobPattern{},
		Restart:     []GlobPattern{},
		Debounce:    DefaultDebounce,
		Listen:      DefaultListen,
		ClearScreen: true,
		LogLevel:    LogLevelInfo,
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// IsValid returns whether the LogLevel is one of the defined levels.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// Error implements the error interface.
func (e *InvalidGlobPatternError) Error() string {
	return fmt.Sprintf("%s: invalid glob pattern %q", e.Field, e.Value)
}

// Unwrap returns ErrInvalidGlobPattern for errors.Is() compatibility.
func (e *InvalidGlobPatternError) Unwrap() error { return ErrInvalidGlobPattern }

// IsValid reports whether the pattern compiles. The field name is only used
// in the error message.
func (g GlobPattern) IsValid(field string) (bool, []error) {
	if strings.TrimSpace(string(g)) == "" || !doublestar.ValidatePattern(string(g)) {
		return false, []error{&InvalidGlobPatternError{Field: field, Value: g}}
	}
	return true, nil
}

// Error implements the error interface.
func (e *InvalidListenAddressError) Error() string {
	return fmt.Sprintf("invalid listen address %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidListenAddress for errors.Is() compatibility.
func (e *InvalidListenAddressError) Unwrap() error { return ErrInvalidListenAddress }

// IsValid reports whether the address is a host:port pair.
func (a ListenAddress) IsValid() (bool, []error) {
	if _, _, err := net.SplitHostPort(string(a)); err != nil {
		reason := err.Error()
		var addrErr *net.AddrError
		if errors.As(err, &addrErr) {
			reason = addrErr.Err
		}
		return false, []error{&InvalidListenAddressError{Value: a, Reason: reason}}
	}
	return true, nil
}

// String returns the string representation of the ListenAddress.
func (a ListenAddress) String() string { return string(a) }

// Error implements the error interface.
func (e *InvalidDebounceError) Error() string {
	return fmt.Sprintf("invalid debounce %s: must not be negative", e.Value)
}

// Unwrap returns ErrInvalidDebounce for errors.Is() compatibility.
func (e *InvalidDebounceError) Unwrap() error { return ErrInvalidDebounce }

// IsValid returns whether the Config has valid fields.
// It returns the accumulated field errors wrapped in an InvalidConfigError.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	for _, group := range []struct {
		field    string
		patterns []GlobPattern
	}{
		{"ignore", c.Ignore},
		{"include", c.Include},
		{"boundaries", c.Boundaries},
		{"restart", c.Restart},
	} {
		for _, p := range group.patterns {
			if valid, fieldErrs := p.IsValid(group.field); !valid {
				errs = append(errs, fieldErrs...)
			}
		}
	}
	if c.Debounce < 0 {
		errs = append(errs, &InvalidDebounceError{Value: c.Debounce})
	}
	if valid, fieldErrs := c.Listen.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, err := range e.FieldErrors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("invalid config: %d field error(s): %s", len(e.FieldErrors), strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Patterns converts glob patterns to plain strings.
func Patterns(gs []GlobPattern) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = string(g)
	}
	return out
}
