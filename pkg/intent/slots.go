package intent

import (
	"regexp"
	"strings"
)

var (
	nationalIDPattern  = regexp.MustCompile(`\b[A-Za-z]\d{7}[A-Za-z]\b`)
	patientIDPattern   = regexp.MustCompile(`(?i)\bpatient\s*(?:id\s*)?#?(\d+)\b`)
	dateOfBirthPattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	contactPattern     = regexp.MustCompile(`\b(?:\+?\d[\d\- ]{6,}\d|[\w.+-]+@[\w-]+\.[\w.-]+)\b`)
	fullNamePattern    = regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)
)

// ExtractSlots pulls candidate slot values from message using independent
// patterns; multiple slots may fire per message (spec 4.4).
func ExtractSlots(message string) map[string]string {
	slots := map[string]string{}

	if m := nationalIDPattern.FindString(message); m != "" {
		slots[SlotNationalID] = strings.ToUpper(m)
	}
	if m := patientIDPattern.FindStringSubmatch(message); len(m) == 2 {
		slots[SlotPatientID] = m[1]
	}
	if m := dateOfBirthPattern.FindString(message); m != "" {
		slots[SlotDateOfBirth] = m
	}
	if m := contactPattern.FindString(message); m != "" {
		slots[SlotContact] = m
	}
	if m := fullNamePattern.FindString(message); m != "" {
		parts := strings.SplitN(m, " ", 2)
		slots[SlotFirstName] = parts[0]
		slots[SlotLastName] = parts[1]
	}
	return slots
}
