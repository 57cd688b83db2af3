package intent

import (
	"context"
	"testing"

	"github.com/hydrochat/hydrochat/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	result llm.ClassifyResult
	err    error
}

func (f *fakeAdapter) ClassifyIntent(ctx context.Context, message string, history, labels []string) (llm.ClassifyResult, error) {
	return f.result, f.err
}
func (f *fakeAdapter) Summarize(ctx context.Context, messages []string) (string, error) {
	return "", nil
}
func (f *fakeAdapter) CountTokens(text string) int { return len(text) / 4 }

func TestClassifier_RuleMatchSkipsFallback(t *testing.T) {
	c := New(&fakeAdapter{result: llm.ClassifyResult{Intent: "Unknown"}})

	out := c.Classify(context.Background(), "s1", "cancel please", nil)
	require.Equal(t, Cancel, out.Intent)
}

func TestClassifier_FallsBackToLLMOnUnknown(t *testing.T) {
	c := New(&fakeAdapter{result: llm.ClassifyResult{Intent: string(GetPatientDetails), Confidence: 0.9}})

	out := c.Classify(context.Background(), "s1", "tell me about the weather", nil)
	assert.Equal(t, GetPatientDetails, out.Intent)
}

func TestClassifier_NoAdapterStaysUnknown(t *testing.T) {
	c := New(nil)

	out := c.Classify(context.Background(), "s1", "tell me about the weather", nil)
	assert.Equal(t, Unknown, out.Intent)
}

func TestClassifier_InvalidLLMLabelStaysUnknown(t *testing.T) {
	c := New(&fakeAdapter{result: llm.ClassifyResult{Intent: "NotARealIntent"}})

	out := c.Classify(context.Background(), "s1", "tell me about the weather", nil)
	assert.Equal(t, Unknown, out.Intent)
}
