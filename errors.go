package training

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid session configuration detected at
// construction time. Configuration problems are never deferred into the
// training loop. Parameter names the offending option.
type ConfigError struct {
	Parameter string
	Reason    string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Parameter, e.Reason)
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var configErr *ConfigError
	return errors.As(err, &configErr)
}

func newConfigError(parameter, format string, args ...any) *ConfigError {
	return &ConfigError{Parameter: parameter, Reason: fmt.Sprintf(format, args...)}
}
