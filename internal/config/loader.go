package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath string
	version    string
}

// NewLoader creates a new configuration loader. An empty configPath loads
// defaults and environment only, which is what the single-shot record
// command needs.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath: configPath,
		version:    version,
	}
}

// Load loads configuration with precedence: ENV > File > Defaults
func (l *Loader) Load() (AppConfig, error) {
	cfg := defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := LoadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		if err := mergeFileConfig(&cfg, fileCfg); err != nil {
			return cfg, err
		}
	}

	mergeEnvConfig(&cfg)

	if cfg.OutputDirectory != "" {
		if abs, err := filepath.Abs(cfg.OutputDirectory); err == nil {
			cfg.OutputDirectory = abs
		}
	}

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Timezone:    DefaultTimezone,
		Concurrency: DefaultConcurrency,
		StartPolicy: StartPolicyImmediate,
		Recorder: RecorderConfig{
			ChunkSize:      DefaultChunkSize,
			StallGrace:     DefaultStallGrace,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Telemetry: TelemetryConfig{
			Exporter:     DefaultOTelExporter,
			Endpoint:     DefaultOTelEndpoint,
			Environment:  "production",
			SamplingRate: 1.0,
		},
	}
}

// LoadFile reads a schedule file with STRICT parsing.
// Unknown fields cause ErrUnknownConfigField to prevent silent misconfiguration.
func LoadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("%w: %q (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile decodes a single YAML document into a FileConfig.
func ParseFile(data []byte) (*FileConfig, error) {
	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

func mergeFileConfig(dst *AppConfig, src *FileConfig) error {
	if strings.TrimSpace(src.Timezone) == "" {
		return fmt.Errorf("%w: timezone", ErrMissingConfigField)
	}
	if strings.TrimSpace(src.OutputDirectory) == "" {
		return fmt.Errorf("%w: output_directory", ErrMissingConfigField)
	}

	dst.Timezone = src.Timezone
	dst.OutputDirectory = src.OutputDirectory
	if src.Concurrency != nil {
		dst.Concurrency = *src.Concurrency
	}
	if src.StartPolicy != "" {
		dst.StartPolicy = strings.ToLower(src.StartPolicy)
	}
	dst.Records = src.Records
	return nil
}

func mergeEnvConfig(cfg *AppConfig) {
	cfg.LogLevel = ParseString("STREAMVCR_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = ParseString("STREAMVCR_LOG_FORMAT", cfg.LogFormat)
	cfg.Timezone = ParseString("STREAMVCR_TIMEZONE", cfg.Timezone)
	cfg.OutputDirectory = ParseString("STREAMVCR_OUTPUT_DIRECTORY", cfg.OutputDirectory)
	cfg.Concurrency = ParseInt("STREAMVCR_CONCURRENCY", cfg.Concurrency)
	cfg.StartPolicy = strings.ToLower(ParseString("STREAMVCR_START_POLICY", cfg.StartPolicy))

	cfg.Recorder.ChunkSize = ParseInt("STREAMVCR_CHUNK_SIZE", cfg.Recorder.ChunkSize)
	cfg.Recorder.StallGrace = ParseDuration("STREAMVCR_STALL_GRACE", cfg.Recorder.StallGrace)
	cfg.Recorder.ConnectTimeout = ParseDuration("STREAMVCR_CONNECT_TIMEOUT", cfg.Recorder.ConnectTimeout)

	cfg.MetricsListen = ParseString("STREAMVCR_METRICS_LISTEN", cfg.MetricsListen)

	cfg.Telemetry.Enabled = ParseBool("STREAMVCR_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("STREAMVCR_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("STREAMVCR_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = ParseString("STREAMVCR_OTEL_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = ParseFloat("STREAMVCR_OTEL_SAMPLING", cfg.Telemetry.SamplingRate)
}
