// SPDX-License-Identifier: MIT

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestRecordingAttributes(t *testing.T) {
	attrs := RecordingAttributes("http://radio.example/live", "/rec/a.mp3", 90*time.Second)
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(StreamURLKey, "http://radio.example/live"),
		attribute.String(OutputPathKey, "/rec/a.mp3"),
		attribute.Int64(RecordDurationKey, 90000),
	}, attrs)
}

func TestJobAttributes_OmitsEmpty(t *testing.T) {
	attrs := JobAttributes("", "job-1", "")
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key(JobIDKey), attrs[0].Key)
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes("transport")
	assert.True(t, attrs[0].Value.AsBool())
	assert.Equal(t, "transport", attrs[1].Value.AsString())
}
