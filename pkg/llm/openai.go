package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hydrochat/hydrochat/pkg/masking"
)

// ErrRetryable marks an error the caller may retry (rate limit or 5xx).
var ErrRetryable = errors.New("llm: retryable")

// OpenAIAdapter is the concrete Adapter implementation backed by the
// OpenAI chat-completions API, used as the fallback classifier/summarizer
// (spec 4.10, 4.4).
type OpenAIAdapter struct {
	client   openai.Client
	model    string
	usage    UsageReporter
	tokenizr *Tokenizer
}

// NewOpenAIAdapter creates an adapter. apiKey must be non-empty; callers
// should check for an empty LLM_API_KEY upstream and leave the adapter
// unconfigured (nil) rather than constructing one.
func NewOpenAIAdapter(apiKey, model, baseURL string, usage UsageReporter) *OpenAIAdapter {
	if usage == nil {
		usage = noopUsageReporter{}
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIAdapter{
		client:   openai.NewClient(opts...),
		model:    model,
		usage:    usage,
		tokenizr: NewTokenizer(),
	}
}

// ClassifyIntent sends a structured classification prompt and validates the
// response against labels (spec 4.4). Invalid or unparsable responses
// degrade to an error so the caller can fall back to Unknown.
func (a *OpenAIAdapter) ClassifyIntent(ctx context.Context, message string, history []string, labels []string) (ClassifyResult, error) {
	prompt := buildClassifyPrompt(message, history, labels)
	text, ok, err := a.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You are an intent classifier for a clinical records assistant. Respond with JSON only."),
		openai.UserMessage(prompt),
	})
	if err != nil {
		a.usage.RecordLLMCall(false, Usage{})
		return ClassifyResult{}, err
	}
	a.usage.RecordLLMCall(ok, Usage{})

	var result ClassifyResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return ClassifyResult{}, fmt.Errorf("llm: invalid classification response: %w", err)
	}
	valid := false
	for _, l := range labels {
		if l == result.Intent {
			valid = true
			break
		}
	}
	if !valid {
		return ClassifyResult{}, fmt.Errorf("llm: classification returned unknown label %q", result.Intent)
	}
	return result, nil
}

// Summarize produces a compressed summary of the given messages.
func (a *OpenAIAdapter) Summarize(ctx context.Context, messages []string) (string, error) {
	prompt := "Summarize this clinical-chat conversation in two or three sentences, preserving any identifiers only in redacted form:\n\n"
	for _, m := range messages {
		prompt += "- " + m + "\n"
	}
	text, ok, err := a.complete(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage("You summarize clinical chat transcripts concisely."),
		openai.UserMessage(prompt),
	})
	a.usage.RecordLLMCall(ok, Usage{})
	if err != nil {
		return "", err
	}
	return text, nil
}

// CountTokens delegates to the BPE tokenizer.
func (a *OpenAIAdapter) CountTokens(text string) int {
	return a.tokenizr.Count(text)
}

func (a *OpenAIAdapter) complete(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, bool, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: messages,
	})
	if err != nil {
		masking.LogError("", "llm", "openai completion failed", "error", classifyOpenAIErr(err).Error())
		return "", false, classifyOpenAIErr(err)
	}
	if len(resp.Choices) != 1 {
		return "", false, fmt.Errorf("llm: unexpected choice count %d", len(resp.Choices))
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		text = resp.Choices[0].Message.Refusal
	}
	return text, true, nil
}

func buildClassifyPrompt(message string, history []string, labels []string) string {
	prompt := fmt.Sprintf("Intent labels: %v\nRecent context: %v\nClassify this message and respond as JSON {\"intent\":..,\"confidence\":..,\"reason\":..}: %q", labels, history, message)
	return prompt
}

// classifyOpenAIErr wraps a provider error as ErrRetryable when it is a
// rate limit, a 5xx, or a bare network failure, matching the retry
// classification shape the pack uses for its own LLM client.
func classifyOpenAIErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || (apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599) {
			return fmt.Errorf("%w: %w", ErrRetryable, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrRetryable, err)
	}
	return err
}
