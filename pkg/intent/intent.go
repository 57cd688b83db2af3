// Package intent implements the deterministic rule-based classifier and
// slot extractor (spec 4.4), with an optional LLM fallback for messages the
// rules cannot decide.
package intent

// Intent is one of the closed set of conversation intents (spec 3).
type Intent string

const (
	CreatePatient     Intent = "CreatePatient"
	UpdatePatient     Intent = "UpdatePatient"
	DeletePatient     Intent = "DeletePatient"
	ListPatients      Intent = "ListPatients"
	GetPatientDetails Intent = "GetPatientDetails"
	GetScanResults    Intent = "GetScanResults"
	ShowMoreScans     Intent = "ShowMoreScans"
	ProvideDepthMaps  Intent = "ProvideDepthMaps"
	ProvideAgentStats Intent = "ProvideAgentStats"
	Cancel            Intent = "Cancel"
	Unknown           Intent = "Unknown"
)

// Labels lists every classifiable intent, used as the set of labels offered
// to the LLM fallback. Rule matching does not use it; its priority order is
// the order of the rules table in rules.go.
var Labels = []Intent{
	Cancel,
	CreatePatient,
	UpdatePatient,
	DeletePatient,
	ListPatients,
	GetPatientDetails,
	GetScanResults,
	ShowMoreScans,
	ProvideDepthMaps,
	ProvideAgentStats,
}

func labelStrings() []string {
	out := make([]string, len(Labels))
	for i, l := range Labels {
		out[i] = string(l)
	}
	return out
}

// Slot names (spec 3/4.4).
const (
	SlotNationalID    = "national_id"
	SlotFirstName     = "first_name"
	SlotLastName      = "last_name"
	SlotContact       = "contact"
	SlotDateOfBirth   = "date_of_birth"
	SlotPatientID     = "patient_id"
	SlotDetails       = "details"
)

// Affirmation is the outcome of matching a message against the
// affirmative/negative/ambiguous confirmation patterns (spec 4.7 node 14).
type Affirmation int

const (
	AffirmationAmbiguous Affirmation = iota
	AffirmationYes
	AffirmationNo
)

// maxMessageLength is the truncation boundary from spec 4.4.
const maxMessageLength = 10000

// Truncate caps message at maxMessageLength characters (rune-safe).
func Truncate(message string) string {
	runes := []rune(message)
	if len(runes) <= maxMessageLength {
		return message
	}
	return string(runes[:maxMessageLength])
}
