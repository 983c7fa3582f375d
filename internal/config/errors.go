package config

import "errors"

var (
	// ErrUnknownConfigField classifies strict YAML parse failures caused by unknown keys.
	// Use errors.Is(err, ErrUnknownConfigField) instead of string matching.
	ErrUnknownConfigField = errors.New("unknown config field")

	// ErrMissingConfigField is returned when a schedule file omits a required top-level key.
	ErrMissingConfigField = errors.New("missing config field")

	// ErrUnsupportedFormat is returned for configuration files that are not YAML.
	ErrUnsupportedFormat = errors.New("unsupported config format")
)
