package config

import (
	"time"

	"github.com/ManuGH/streamvcr/internal/log"
	"github.com/ManuGH/streamvcr/internal/validate"
)

// Validate checks process-wide settings. Records are not inspected here.
// It never creates or modifies files.
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.OneOf("LogFormat", cfg.LogFormat, []string{"json", "console"})
	v.Timezone("Timezone", cfg.Timezone)
	if cfg.OutputDirectory != "" {
		v.Directory("OutputDirectory", cfg.OutputDirectory, false)
	}
	v.Range("Concurrency", cfg.Concurrency, 1, 256)
	v.OneOf("StartPolicy", cfg.StartPolicy, []string{StartPolicyImmediate, StartPolicyWait})

	v.Range("Recorder.ChunkSize", cfg.Recorder.ChunkSize, 1, 1<<20)
	v.MinDuration("Recorder.StallGrace", cfg.Recorder.StallGrace, time.Second)
	v.MinDuration("Recorder.ConnectTimeout", cfg.Recorder.ConnectTimeout, 100*time.Millisecond)

	v.ListenAddr("MetricsListen", cfg.MetricsListen)

	if cfg.Telemetry.Enabled {
		v.OneOf("Telemetry.Exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		// The HTTP exporter takes a full collector URL, gRPC a host:port.
		if cfg.Telemetry.Exporter == "http" {
			v.URL("Telemetry.Endpoint", cfg.Telemetry.Endpoint, []string{"http", "https"})
		} else {
			v.NotEmpty("Telemetry.Endpoint", cfg.Telemetry.Endpoint)
		}
		v.Ratio("Telemetry.SamplingRate", cfg.Telemetry.SamplingRate)
	}

	if v.IsValid() {
		return nil
	}
	logger := log.WithComponent("config")
	for _, fe := range v.Errors() {
		logger.Error().
			Str("event", "config.invalid").
			Str("field", fe.Field).
			Interface("value", fe.Value).
			Msg(fe.Message)
	}
	return v.Err()
}
