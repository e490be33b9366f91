package ingestion

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	errInvalidFormat = errors.New("invalid format")
	errMissingDir    = errors.New("raw data directory not found")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	allowedFormats map[string]struct{}
}

func NewValidator(formats []string) *Validator {
	vf := make(map[string]struct{})
	for _, f := range formats {
		if trimmed := strings.TrimSpace(strings.ToLower(f)); trimmed != "" {
			vf[trimmed] = struct{}{}
		}
	}
	return &Validator{allowedFormats: vf}
}

// Validate checks that a raw source can be opened before any stage runs.
func (v *Validator) Validate(dir, format string) error {
	format = strings.TrimSpace(strings.ToLower(format))
	if format == "" {
		return ValidationError{reason: fmt.Errorf("format required: %w", errInvalidFormat)}
	}
	if len(v.allowedFormats) > 0 {
		if _, ok := v.allowedFormats[format]; !ok {
			return ValidationError{reason: fmt.Errorf("format '%s' not supported: %w", format, errInvalidFormat)}
		}
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ValidationError{reason: fmt.Errorf("%s: %w", dir, errMissingDir)}
	}
	return nil
}
