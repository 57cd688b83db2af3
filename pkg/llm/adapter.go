// Package llm defines the External LLM Adapter boundary (spec 4.10): a
// fallback classifier and summarizer used only when the rule-based intent
// classifier cannot decide, and a deterministic token counter used for
// metrics accounting. Absence of a configured adapter disables the
// fallback path gracefully rather than erroring.
package llm

import "context"

// ClassifyResult is the structured response requested from the adapter's
// classification prompt.
type ClassifyResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Adapter is the External LLM Adapter interface. Implementations must be
// safe for concurrent use.
type Adapter interface {
	// ClassifyIntent asks the model to pick one of the given intent labels
	// for message, given the recent conversation context.
	ClassifyIntent(ctx context.Context, message string, context []string, labels []string) (ClassifyResult, error)
	// Summarize produces a compressed prose summary of messages.
	Summarize(ctx context.Context, messages []string) (string, error)
	// CountTokens returns the adapter's best estimate of message token count.
	CountTokens(text string) int
}

// Usage is the per-call accounting an Adapter implementation reports so
// callers can feed it into Metrics (C9).
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	CostMicros       int64
}

// UsageReporter is implemented by Metrics; kept as a narrow interface here
// so pkg/llm does not depend on pkg/metrics.
type UsageReporter interface {
	RecordLLMCall(ok bool, usage Usage)
}

type noopUsageReporter struct{}

func (noopUsageReporter) RecordLLMCall(bool, Usage) {}
