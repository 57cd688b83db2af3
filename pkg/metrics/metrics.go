// Package metrics implements the Metrics & Stats component (spec 4.9):
// monotonic counters, a bounded-retention ring of per-turn/per-tool wall
// time samples, and the three alert predicates consumed by the operator
// stats endpoint and the provide_agent_stats graph node.
package metrics

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hydrochat/hydrochat/pkg/llm"
	"go.opentelemetry.io/otel/metric"
)

// Alert is one named predicate and whether it is currently tripped.
type Alert struct {
	Name    string `json:"name"`
	Tripped bool   `json:"tripped"`
	Detail  string `json:"detail"`
}

// Summary is the JSON-shaped snapshot returned by provide_agent_stats and
// GET /hydrochat/stats/.
type Summary struct {
	TotalTurns          int64   `json:"total_turns"`
	SuccessfulOps       int64   `json:"successful_ops"`
	FailedOps           int64   `json:"failed_ops"`
	AbortedOps          int64   `json:"aborted_ops"`
	Retries             int64   `json:"retries"`
	Tool4xx             int64   `json:"tool_4xx"`
	Tool5xx             int64   `json:"tool_5xx"`
	LLMCallsOK          int64   `json:"llm_calls_ok"`
	LLMCallsErr         int64   `json:"llm_calls_err"`
	LLMPromptTokens     int64   `json:"llm_prompt_tokens"`
	LLMCompletionTokens int64   `json:"llm_completion_tokens"`
	LLMCostMicros       int64   `json:"llm_cost_micros"`
	TurnP95Millis       float64 `json:"turn_p95_millis"`
	Alerts              []Alert `json:"alerts"`
}

type sample struct {
	at time.Time
	d  time.Duration
}

// ring is a capacity- and TTL-bounded FIFO of duration samples, the
// "in-memory ring of recent samples" from spec 4.9. Guarded by the owning
// Metrics' mu.
type ring struct {
	cap     int
	ttl     time.Duration
	samples []sample
}

func newRing(cap int, ttl time.Duration) *ring {
	return &ring{cap: cap, ttl: ttl}
}

func (r *ring) add(now time.Time, d time.Duration) {
	r.samples = append(r.samples, sample{at: now, d: d})
	r.evict(now)
	if over := len(r.samples) - r.cap; over > 0 {
		r.samples = r.samples[over:]
	}
}

func (r *ring) evict(now time.Time) {
	cutoff := now.Add(-r.ttl)
	i := 0
	for i < len(r.samples) && r.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		r.samples = r.samples[i:]
	}
}

func (r *ring) p95(now time.Time) time.Duration {
	r.evict(now)
	if len(r.samples) == 0 {
		return 0
	}
	durations := make([]time.Duration, len(r.samples))
	for i, s := range r.samples {
		durations[i] = s.d
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	idx := int(float64(len(durations))*0.95)
	if idx >= len(durations) {
		idx = len(durations) - 1
	}
	return durations[idx]
}

func (r *ring) count(now time.Time) int {
	r.evict(now)
	return len(r.samples)
}

// Metrics is the process-wide, concurrency-safe Metrics & Stats component.
// Counters use atomics; the sample rings use a small mutex, matching the
// teacher's sync.RWMutex-guarded-map idiom in
// pkg/services/system_warnings.go adapted to an append-only ring instead of
// an id-keyed map.
type Metrics struct {
	totalTurns          atomic.Int64
	successfulOps       atomic.Int64
	failedOps           atomic.Int64
	abortedOps          atomic.Int64
	retries             atomic.Int64
	tool4xx             atomic.Int64
	tool5xx             atomic.Int64
	llmCallsOK          atomic.Int64
	llmCallsErr         atomic.Int64
	llmPromptTokens     atomic.Int64
	llmCompletionTokens atomic.Int64
	llmCostMicros       atomic.Int64

	mu        sync.Mutex
	turnRing  *ring
	toolRings map[string]*ring

	otelTurns  metric.Float64Histogram
	otelTool   metric.Float64Histogram
	otelTotal  metric.Int64Counter
	otelRetry  metric.Int64Counter
}

// New creates a Metrics instance backed by meterProvider's Meter("hydrochat")
// for exported OTel instruments, and by an in-process ring of maxSamples
// capacity / ttl retention for the alert-predicate calculations that need
// a live percentile rather than an exporter round trip.
func New(meterProvider metric.MeterProvider, maxSamples int, ttl time.Duration) (*Metrics, error) {
	if maxSamples <= 0 {
		maxSamples = 1000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	meter := meterProvider.Meter("hydrochat")

	m := &Metrics{
		turnRing:  newRing(maxSamples, ttl),
		toolRings: make(map[string]*ring),
	}

	var err error
	m.otelTurns, err = meter.Float64Histogram("hydrochat.turn.duration_ms")
	if err != nil {
		return nil, err
	}
	m.otelTool, err = meter.Float64Histogram("hydrochat.tool.duration_ms")
	if err != nil {
		return nil, err
	}
	m.otelTotal, err = meter.Int64Counter("hydrochat.turns.total")
	if err != nil {
		return nil, err
	}
	m.otelRetry, err = meter.Int64Counter("hydrochat.tool.retries")
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordTurn accounts one completed turn's wall-clock duration.
func (m *Metrics) RecordTurn(d time.Duration) {
	m.totalTurns.Add(1)
	m.otelTotal.Add(context.Background(), 1)
	m.otelTurns.Record(context.Background(), float64(d.Milliseconds()))

	m.mu.Lock()
	m.turnRing.add(time.Now(), d)
	m.mu.Unlock()
}

// IncSuccessfulOps increments successful_ops.
func (m *Metrics) IncSuccessfulOps() { m.successfulOps.Add(1) }

// IncFailedOps increments failed_ops.
func (m *Metrics) IncFailedOps() { m.failedOps.Add(1) }

// IncAbortedOps increments aborted_ops (cancels).
func (m *Metrics) IncAbortedOps() { m.abortedOps.Add(1) }

// ToolRequest implements backendclient.Metrics; HydroChat does not count
// bare requests separately from the derived per-status counters.
func (m *Metrics) ToolRequest(string) {}

// ToolRetry implements backendclient.Metrics.
func (m *Metrics) ToolRetry(method string) {
	m.retries.Add(1)
	m.otelRetry.Add(context.Background(), 1)
}

// ToolSuccess implements backendclient.Metrics.
func (m *Metrics) ToolSuccess(string) {}

// Tool4xx implements backendclient.Metrics.
func (m *Metrics) Tool4xx(string) { m.tool4xx.Add(1) }

// Tool5xx implements backendclient.Metrics.
func (m *Metrics) Tool5xx(string) { m.tool5xx.Add(1) }

// ToolTransportFailure implements backendclient.Metrics.
func (m *Metrics) ToolTransportFailure(string) {}

// ToolDuration implements backendclient.Metrics, recording a per-method
// wall-time sample.
func (m *Metrics) ToolDuration(method string, d time.Duration) {
	m.otelTool.Record(context.Background(), float64(d.Milliseconds()), metric.WithAttributes())

	m.mu.Lock()
	r, ok := m.toolRings[method]
	if !ok {
		r = newRing(1000, 24*time.Hour)
		m.toolRings[method] = r
	}
	r.add(time.Now(), d)
	m.mu.Unlock()
}

// RecordLLMCall implements llm.UsageReporter.
func (m *Metrics) RecordLLMCall(ok bool, usage llm.Usage) {
	if ok {
		m.llmCallsOK.Add(1)
	} else {
		m.llmCallsErr.Add(1)
	}
	m.llmPromptTokens.Add(int64(usage.PromptTokens))
	m.llmCompletionTokens.Add(int64(usage.CompletionTokens))
	m.llmCostMicros.Add(usage.CostMicros)
}

// Alerts evaluates the three predicates from spec 4.9 against current
// counters and the live turn-time ring.
func (m *Metrics) Alerts() []Alert {
	now := time.Now()
	total := m.totalTurns.Load()
	aborted := m.abortedOps.Load()
	retries := m.retries.Load()

	m.mu.Lock()
	p95 := m.turnRing.p95(now)
	sampleCount := m.turnRing.count(now)
	m.mu.Unlock()

	abortRate := 0.0
	if total > 0 {
		abortRate = float64(aborted) / float64(total)
	}
	retriesPer100 := 0.0
	if total > 0 {
		retriesPer100 = float64(retries) / float64(total) * 100
	}

	_ = sampleCount
	return []Alert{
		{Name: "abort_rate", Tripped: total > 0 && abortRate > 0.20, Detail: "aborted_ops/total_turns > 0.20"},
		{Name: "retry_rate", Tripped: total > 0 && retriesPer100 > 5, Detail: "retries per 100 turns > 5"},
		{Name: "turn_latency_p95", Tripped: p95 > 2*time.Second, Detail: "p95 turn wall time > 2s"},
	}
}

// Summarize returns the full JSON-shaped summary for provide_agent_stats
// and the operator stats endpoint.
func (m *Metrics) Summarize() Summary {
	m.mu.Lock()
	p95 := m.turnRing.p95(time.Now())
	m.mu.Unlock()

	return Summary{
		TotalTurns:          m.totalTurns.Load(),
		SuccessfulOps:       m.successfulOps.Load(),
		FailedOps:           m.failedOps.Load(),
		AbortedOps:          m.abortedOps.Load(),
		Retries:             m.retries.Load(),
		Tool4xx:             m.tool4xx.Load(),
		Tool5xx:             m.tool5xx.Load(),
		LLMCallsOK:          m.llmCallsOK.Load(),
		LLMCallsErr:         m.llmCallsErr.Load(),
		LLMPromptTokens:     m.llmPromptTokens.Load(),
		LLMCompletionTokens: m.llmCompletionTokens.Load(),
		LLMCostMicros:       m.llmCostMicros.Load(),
		TurnP95Millis:       float64(p95.Milliseconds()),
		Alerts:              m.Alerts(),
	}
}
