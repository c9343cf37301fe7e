package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(format string) (*ProductionLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &ProductionLogger{
		level:       "info",
		serviceName: "ipintel",
		component:   "ipintel",
		format:      format,
		output:      buf,
	}, buf
}

func TestProductionLoggerEmitsJSONLines(t *testing.T) {
	logger, buf := newTestLogger("json")
	logger.Info("lookup started", map[string]interface{}{"ip": "1.2.3.4"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "lookup started", entry["message"])
	assert.Equal(t, "1.2.3.4", entry["ip"])
	assert.Equal(t, "ipintel", entry["component"])
}

func TestProductionLoggerEmitsTextLines(t *testing.T) {
	logger, buf := newTestLogger("text")
	logger.Error("lookup failed", map[string]interface{}{"reason": "timeout"})

	line := buf.String()
	assert.Contains(t, line, "[ERROR]")
	assert.Contains(t, line, "lookup failed")
	assert.Contains(t, line, "reason=timeout")
}

func TestProductionLoggerDebugSuppressedWithoutDebugFlag(t *testing.T) {
	logger, buf := newTestLogger("text")
	logger.Debug("verbose detail", nil)
	assert.Zero(t, buf.Len())
}

func TestProductionLoggerDebugEmittedWhenEnabled(t *testing.T) {
	logger, buf := newTestLogger("text")
	logger.debug = true
	logger.Debug("verbose detail", nil)
	assert.NotZero(t, buf.Len())
}

func TestWithComponentTagsIndependently(t *testing.T) {
	logger, buf := newTestLogger("text")
	scoped, ok := logger.WithComponent("lookup").(*ProductionLogger)
	require.True(t, ok)
	scoped.Info("scoped message", nil)

	assert.Contains(t, buf.String(), "[lookup]")
	assert.Equal(t, "ipintel", logger.component)
}

func TestWithMetricsRecordsLogEvents(t *testing.T) {
	logger, _ := newTestLogger("text")
	rec := &countingMetricsRecorder{}
	withMetrics := logger.WithMetrics(rec)
	withMetrics.Info("hello", nil)

	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "INFO", rec.lastLevel)
}

type countingMetricsRecorder struct {
	calls     int
	lastLevel string
}

func (c *countingMetricsRecorder) RecordLogEvent(level, component string) {
	c.calls++
	c.lastLevel = level
}
