package intent

import "regexp"

// rule pairs a compiled, word-boundary, case-insensitive pattern with the
// intent it signals. Order matters: rules are tried top to bottom and the
// first match wins (spec 4.4: "more specific verbs first").
type rule struct {
	intent  Intent
	pattern *regexp.Regexp
}

func compile(expr string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(` + expr + `)\b`)
}

var rules = []rule{
	{Cancel, compile(`cancel|never ?mind|stop|abort`)},
	{ShowMoreScans, compile(`show more|more scans|next page|see more`)},
	{ProvideDepthMaps, compile(`depth ?maps?`)},
	{ProvideAgentStats, compile(`agent stats|statistics|metrics summary`)},
	{CreatePatient, compile(`create|register|add|new patient`)},
	{UpdatePatient, compile(`update|edit|change|modify`)},
	{DeletePatient, compile(`delete|remove|deactivate`)},
	{GetScanResults, compile(`scans?|scan results?`)},
	{ListPatients, compile(`list patients|all patients|show patients`)},
	{GetPatientDetails, compile(`patient details|show patient|find patient|look ?up`)},
}

// Classify applies the priority-ordered rule set to message and returns the
// matched intent, or Unknown if none match.
func Classify(message string) Intent {
	for _, r := range rules {
		if r.pattern.MatchString(message) {
			return r.intent
		}
	}
	return Unknown
}

var (
	affirmativePattern = compile(`yes|yeah|yep|confirm|go ahead|sure|affirmative`)
	negativePattern    = compile(`no|nope|negative|don'?t|do not`)
)

// ClassifyAffirmation parses message against the affirmative/negative/
// ambiguous word-boundary patterns (spec 4.7 node 14, handle_confirmation).
// A message matching both (or neither) is ambiguous.
func ClassifyAffirmation(message string) Affirmation {
	yes := affirmativePattern.MatchString(message)
	no := negativePattern.MatchString(message)
	switch {
	case yes && !no:
		return AffirmationYes
	case no && !yes:
		return AffirmationNo
	default:
		return AffirmationAmbiguous
	}
}
