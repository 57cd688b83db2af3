package metrics

import (
	"testing"
	"time"

	"github.com/hydrochat/hydrochat/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	m, err := New(mp, 1000, 24*time.Hour)
	require.NoError(t, err)
	return m
}

func TestMetrics_CountersAccumulate(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordTurn(10 * time.Millisecond)
	m.IncSuccessfulOps()
	m.IncAbortedOps()
	m.ToolRetry("GET")
	m.Tool4xx("POST")
	m.Tool5xx("PUT")
	m.RecordLLMCall(true, llm.Usage{PromptTokens: 5, CompletionTokens: 3, CostMicros: 100})

	s := m.Summarize()
	assert.EqualValues(t, 1, s.TotalTurns)
	assert.EqualValues(t, 1, s.SuccessfulOps)
	assert.EqualValues(t, 1, s.AbortedOps)
	assert.EqualValues(t, 1, s.Retries)
	assert.EqualValues(t, 1, s.Tool4xx)
	assert.EqualValues(t, 1, s.Tool5xx)
	assert.EqualValues(t, 1, s.LLMCallsOK)
	assert.EqualValues(t, 5, s.LLMPromptTokens)
}

func TestMetrics_AbortRateAlertTrips(t *testing.T) {
	m := newTestMetrics(t)
	for i := 0; i < 10; i++ {
		m.RecordTurn(time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		m.IncAbortedOps()
	}

	alerts := m.Alerts()
	var abortAlert Alert
	for _, a := range alerts {
		if a.Name == "abort_rate" {
			abortAlert = a
		}
	}
	assert.True(t, abortAlert.Tripped)
}

func TestMetrics_NoAlertsWhenQuiet(t *testing.T) {
	m := newTestMetrics(t)
	for _, a := range m.Alerts() {
		assert.False(t, a.Tripped)
	}
}

func TestMetrics_TurnLatencyP95(t *testing.T) {
	m := newTestMetrics(t)
	for i := 0; i < 100; i++ {
		m.RecordTurn(time.Duration(i+1) * time.Millisecond)
	}
	s := m.Summarize()
	assert.True(t, s.TurnP95Millis >= 90)
}
