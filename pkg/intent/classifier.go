package intent

import (
	"context"

	"github.com/hydrochat/hydrochat/pkg/llm"
	"github.com/hydrochat/hydrochat/pkg/masking"
)

// Classifier runs the rule-based classifier first, falling back to an LLM
// adapter when rules yield Unknown. A nil adapter disables the fallback
// path gracefully (spec 4.10).
type Classifier struct {
	adapter llm.Adapter
}

// New creates a Classifier. adapter may be nil.
func New(adapter llm.Adapter) *Classifier {
	return &Classifier{adapter: adapter}
}

// Outcome is the full result of classifying one message: the resolved
// intent, the extracted slots, and whether the message looked like a
// prompt-injection attempt.
type Outcome struct {
	Intent         Intent
	Slots          map[string]string
	LooksInjection bool
}

// Classify implements spec 4.4 end to end: truncate, rule-match, extract
// slots, and fall back to the LLM adapter on Unknown.
func (c *Classifier) Classify(ctx context.Context, sessionID, message string, history []string) Outcome {
	message = Truncate(message)
	injection := LooksLikeInjection(message)
	if injection {
		masking.LogError(sessionID, "classify_intent", "message matched prompt-injection pattern, sanitizing for LLM path")
	}

	resolved := Classify(message)
	slots := ExtractSlots(message)

	if resolved == Unknown && c.adapter != nil {
		sanitized := message
		if injection {
			sanitized = Sanitize(message)
		}
		result, err := c.adapter.ClassifyIntent(ctx, sanitized, history, labelStrings())
		if err != nil {
			masking.LogError(sessionID, "classify_intent", "llm fallback classification failed", "error", err.Error())
		} else if label := Intent(result.Intent); isKnownLabel(label) {
			resolved = label
			masking.LogIntent(sessionID, "classify_intent", "llm fallback resolved intent", "intent", string(label), "confidence", result.Confidence)
		}
	}

	masking.LogIntent(sessionID, "classify_intent", "intent resolved", "intent", string(resolved))
	return Outcome{Intent: resolved, Slots: slots, LooksInjection: injection}
}

func isKnownLabel(candidate Intent) bool {
	for _, l := range Labels {
		if l == candidate {
			return true
		}
	}
	return false
}
