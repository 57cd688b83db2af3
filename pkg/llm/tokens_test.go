package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizer_Count(t *testing.T) {
	tk := NewTokenizer()

	count := tk.Count("create patient Jane Tan")
	assert.Greater(t, count, 0)
}

func TestTokenizer_Count_Empty(t *testing.T) {
	tk := NewTokenizer()

	assert.Equal(t, 0, tk.Count(""))
}

func TestBuildClassifyPrompt_IncludesLabelsAndMessage(t *testing.T) {
	prompt := buildClassifyPrompt("delete patient 5", []string{"hi"}, []string{"DeletePatient", "Unknown"})

	assert.Contains(t, prompt, "DeletePatient")
	assert.Contains(t, prompt, "delete patient 5")
}
