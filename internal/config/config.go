package config

import "time"

// Start policies decide what the batch scheduler does with a job whose
// window opens in the future.
const (
	// StartPolicyImmediate dispatches future jobs at evaluation time without waiting.
	StartPolicyImmediate = "immediate"
	// StartPolicyWait holds each job back until its start time before dispatching it.
	StartPolicyWait = "wait"
)

// Defaults
const (
	DefaultConcurrency    = 16
	DefaultChunkSize      = 1024
	DefaultStallGrace     = 30 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultTimezone       = "Local"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "json"
	DefaultOTelExporter   = "grpc"
	DefaultOTelEndpoint   = "localhost:4317"
)

// RecordConfig is one entry of the `records` list in the schedule file.
// Values are kept as raw strings; the scheduler parses and validates them.
type RecordConfig struct {
	StreamURL string `yaml:"stream_url"`
	Output    string `yaml:"output"`
	Start     string `yaml:"start"`
	End       string `yaml:"end"`
}

// FileConfig mirrors the YAML schedule file.
type FileConfig struct {
	Timezone        string         `yaml:"timezone"`
	OutputDirectory string         `yaml:"output_directory"`
	Concurrency     *int           `yaml:"concurrency,omitempty"`
	StartPolicy     string         `yaml:"start_policy,omitempty"`
	Records         []RecordConfig `yaml:"records"`
}

// RecorderConfig tunes the stream recorder.
type RecorderConfig struct {
	ChunkSize      int
	StallGrace     time.Duration
	ConnectTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry tracing settings.
type TelemetryConfig struct {
	Enabled      bool
	Exporter     string
	Endpoint     string
	Environment  string
	SamplingRate float64
}

// AppConfig is the fully merged runtime configuration.
type AppConfig struct {
	Version string

	LogLevel  string
	LogFormat string

	Timezone        string
	OutputDirectory string
	Concurrency     int
	StartPolicy     string
	Records         []RecordConfig

	Recorder      RecorderConfig
	MetricsListen string
	Telemetry     TelemetryConfig
}

// Location resolves the configured timezone.
func (c AppConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
