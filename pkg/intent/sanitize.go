package intent

import "regexp"

// injectionPatterns flags text that looks like an attempt to steer the LLM
// fallback away from its classification task (spec 4.4 safeguards).
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all |the )?previous`),
	regexp.MustCompile(`(?i)disregard (all |the )?(instructions|prompt)`),
	regexp.MustCompile("```"),
	regexp.MustCompile(`(?i)\b(system|assistant|developer)\s*:`),
}

// LooksLikeInjection reports whether message contains a pattern indicative
// of prompt injection.
func LooksLikeInjection(message string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// Sanitize strips injection-indicative patterns from message before it is
// handed to the LLM adapter. The rule-classified/logged copy of the
// message is never altered; only the LLM-bound variant is.
func Sanitize(message string) string {
	sanitized := message
	for _, p := range injectionPatterns {
		sanitized = p.ReplaceAllString(sanitized, "")
	}
	return sanitized
}
