package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Iron-Ham/lockreg/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "ledger.max_lock_duration")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidColorModes returns the list of valid output.color values
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateLedger()...)
	errors = append(errors, c.validateCertificates()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateOutput()...)

	return errors
}

// validateLedger validates the LedgerConfig
func (c *Config) validateLedger() []ValidationError {
	var errors []ValidationError

	if c.Ledger.MaxLockDuration < 0 {
		errors = append(errors, ValidationError{
			Field:   "ledger.max_lock_duration",
			Value:   c.Ledger.MaxLockDuration,
			Message: "must be non-negative (0 = unlimited)",
		})
	}

	if c.Ledger.DefaultLockDuration <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ledger.default_lock_duration",
			Value:   c.Ledger.DefaultLockDuration,
			Message: "must be positive",
		})
	} else if c.Ledger.DefaultLockDuration < time.Second {
		errors = append(errors, ValidationError{
			Field:   "ledger.default_lock_duration",
			Value:   c.Ledger.DefaultLockDuration,
			Message: "must be at least 1s",
		})
	}

	if c.Ledger.MaxLockDuration > 0 && c.Ledger.DefaultLockDuration > c.Ledger.MaxLockDuration {
		errors = append(errors, ValidationError{
			Field:   "ledger.default_lock_duration",
			Value:   c.Ledger.DefaultLockDuration,
			Message: fmt.Sprintf("exceeds ledger.max_lock_duration (%s)", c.Ledger.MaxLockDuration),
		})
	}

	return errors
}

// validateCertificates validates the CertificatesConfig
func (c *Config) validateCertificates() []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool)
	for i, class := range c.Certificates.Classes {
		field := fmt.Sprintf("certificates.classes[%d]", i)
		if strings.TrimSpace(class) == "" {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   class,
				Message: "cannot be empty",
			})
			continue
		}
		if seen[class] {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   class,
				Message: "duplicate class",
			})
		}
		seen[class] = true
	}

	return errors
}

// validateStore validates the StoreConfig
func (c *Config) validateStore() []ValidationError {
	var errors []ValidationError

	if strings.ContainsRune(c.Store.Dir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "store.dir",
			Value:   c.Store.Dir,
			Message: "contains invalid null character",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	levels := logging.ValidLevels()
	if c.Logging.Level != "" && !slices.Contains(levels, strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.ToLower(strings.Join(levels, ", "))),
		})
	}

	return errors
}

// validateOutput validates the OutputConfig
func (c *Config) validateOutput() []ValidationError {
	var errors []ValidationError

	if c.Output.Color != "" && !slices.Contains(ValidColorModes(), c.Output.Color) {
		errors = append(errors, ValidationError{
			Field:   "output.color",
			Value:   c.Output.Color,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidColorModes(), ", ")),
		})
	}

	return errors
}
