package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNationalIDMasker_AppliesTo(t *testing.T) {
	m := NationalIDMasker{}

	assert.True(t, m.AppliesTo("patient id S1234567A on file"))
	assert.False(t, m.AppliesTo("no identifiers here"))
	assert.False(t, m.AppliesTo("S123A too short"))
}

func TestNationalIDMasker_Mask(t *testing.T) {
	m := NationalIDMasker{}

	got := m.Mask("national id S1234567A belongs to patient")
	assert.Equal(t, "national id S*******A belongs to patient", got)
	assert.NotContains(t, got, "S1234567A")
}

func TestNationalIDMasker_MaskMultipleOccurrences(t *testing.T) {
	m := NationalIDMasker{}

	got := m.Mask("ids S1234567A and T7654321B")
	assert.Equal(t, "ids S*******A and T*******B", got)
}

func TestNationalIDMasker_MaskIsIdempotent(t *testing.T) {
	m := NationalIDMasker{}

	once := m.Mask("national id S1234567A")
	twice := m.Mask(once)
	assert.Equal(t, once, twice)
}

func TestNationalIDMasker_MaskLeavesNonMatchingTextAlone(t *testing.T) {
	m := NationalIDMasker{}

	got := m.Mask("nothing to redact in this sentence")
	assert.Equal(t, "nothing to redact in this sentence", got)
}

func TestCategory_String(t *testing.T) {
	assert.Equal(t, "intent", CategoryIntent.String())
	assert.Equal(t, "missing", CategoryMissing.String())
	assert.Equal(t, "tool", CategoryTool.String())
	assert.Equal(t, "success", CategorySuccess.String())
	assert.Equal(t, "error", CategoryError.String())
	assert.Equal(t, "flow", CategoryFlow.String())
}
