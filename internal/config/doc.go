// Package config loads streamvcr configuration.
//
// Precedence is ENV > File > Defaults. The YAML file carries the recording
// schedule (timezone, output_directory, records) and optional scheduling
// knobs; process-wide settings such as logging, metrics and tracing come from
// STREAMVCR_* environment variables.
//
// The loader only checks process-wide settings. Individual records are
// validated by the scheduler so that one bad record never prevents the
// others from running.
package config
