package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Has reports whether any error concerns field.
func (e ValidationErrors) Has(field string) bool {
	for _, err := range e {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Limits enforced by ValidateConfig.
const (
	MinWPM          = 5
	MaxWPM          = 60
	MaxKeyerNumber  = 9
	MaxTickInterval = 50
)

// ValidateConfig checks every section and returns ValidationErrors, or nil.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateKeyer(&c.Keyer)...)
	errs = append(errs, validateLoop(&c.Loop, &c.Keyer)...)
	errs = append(errs, validateOutput(&c.Output)...)
	errs = append(errs, validateJournal(&c.Journal)...)
	errs = append(errs, validateControl(&c.Control)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateKeyer(k *KeyerConfig) ValidationErrors {
	var errs ValidationErrors
	if k.Number < 0 || k.Number > MaxKeyerNumber {
		errs = append(errs, *RangeError("keyer.number", 0, MaxKeyerNumber))
	}
	if k.WPM < MinWPM || k.WPM > MaxWPM {
		errs = append(errs, *RangeError("keyer.wpm", MinWPM, MaxWPM))
	}
	return errs
}

func validateLoop(l *LoopConfig, k *KeyerConfig) ValidationErrors {
	var errs ValidationErrors
	if l.TickIntervalMs < 1 || l.TickIntervalMs > MaxTickInterval {
		errs = append(errs, *RangeError("loop.tick_interval_ms", 1, MaxTickInterval))
		return errs
	}
	if k.WPM >= MinWPM {
		dit := 60000 / (50 * k.WPM)
		if l.TickIntervalMs >= dit {
			errs = append(errs, ValidationError{
				Field:   "loop.tick_interval_ms",
				Message: fmt.Sprintf("tick of %d ms is not shorter than a %d ms dit at %d wpm", l.TickIntervalMs, dit, k.WPM),
			})
		}
	}
	return errs
}

func validateOutput(o *OutputConfig) ValidationErrors {
	var errs ValidationErrors
	if o.DitNote < 0 || o.DitNote > 127 {
		errs = append(errs, *RangeError("output.dit_note", 0, 127))
	}
	if o.DahNote < 0 || o.DahNote > 127 {
		errs = append(errs, *RangeError("output.dah_note", 0, 127))
	}
	return errs
}

func validateJournal(j *JournalConfig) ValidationErrors {
	if j.Enabled && j.Path == "" {
		return ValidationErrors{*RequiredFieldError("journal.path")}
	}
	return nil
}

func validateControl(c *ControlConfig) ValidationErrors {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return ValidationErrors{*RequiredFieldError("control.addr")}
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return ValidationErrors{{
			Field:   "control.addr",
			Message: fmt.Sprintf("invalid listen address %q: %v", c.Addr, err),
		}}
	}
	return nil
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file' or 'both'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}
	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}
	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

// RequiredFieldError creates an error for a missing required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "field is required",
	}
}

// RangeError creates an error for a value outside its allowed range.
func RangeError(field string, min, max interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}
