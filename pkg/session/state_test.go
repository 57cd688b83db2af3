package session

import (
	"testing"
	"time"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func truncMs(t time.Time) time.Time { return time.UnixMilli(t.UnixMilli()) }

func TestNew_DefaultValues(t *testing.T) {
	now := time.Now()
	s := New("conv-1", now)

	assert.Equal(t, "Unknown", s.Intent)
	assert.Equal(t, PendingNone, s.PendingAction)
	assert.Empty(t, s.MissingSlots)
	assert.False(t, s.ConfirmationRequired)
	assert.Equal(t, ConfirmationNone, s.ConfirmationKind)
	assert.Equal(t, defaultScanPageSize, s.ScanPageSize)
	assert.Equal(t, DownloadNone, s.DownloadStage)
	assert.NotNil(t, s.Slots)
}

func TestAppendMessage_BoundedTo5(t *testing.T) {
	s := New("conv-1", time.Now())
	for i := 0; i < 8; i++ {
		s.AppendMessage(RoleUser, "msg")
	}
	assert.Len(t, s.RecentMessages, 5)
}

func TestResetOnCancel_KeepsOnlyAllowedFields(t *testing.T) {
	s := New("conv-1", time.Now())
	s.AppendMessage(RoleUser, "hello")
	s.Intent = string("CreatePatient")
	s.PendingAction = PendingAwaitingSlotsForCreate
	s.Slots["first_name"] = "Jane"
	s.MissingSlots = []string{"last_name"}
	id := int64(5)
	s.SelectedPatientID = &id
	s.ConfirmationRequired = true
	s.ConfirmationKind = ConfirmationDelete
	s.HistorySummary = "prior summary"

	s.ResetOnCancel()

	assert.Equal(t, "conv-1", s.ConversationID)
	assert.Len(t, s.RecentMessages, 1)
	assert.Equal(t, "prior summary", s.HistorySummary)
	assert.Equal(t, "Unknown", s.Intent)
	assert.Equal(t, PendingNone, s.PendingAction)
	assert.Empty(t, s.MissingSlots)
	assert.Nil(t, s.SelectedPatientID)
	assert.False(t, s.ConfirmationRequired)
	assert.Equal(t, ConfirmationNone, s.ConfirmationKind)
}

func TestSerializeDeserialize_RoundTripExact(t *testing.T) {
	now := truncMs(time.Now())
	s := New("conv-2", now)
	s.AppendMessage(RoleUser, "create patient")
	s.Intent = "CreatePatient"
	s.PendingAction = PendingAwaitingSlotsForCreate
	s.Slots["first_name"] = "Jane"
	s.MissingSlots = []string{"last_name", "national_id"}
	id := int64(9)
	s.SelectedPatientID = &id
	s.ConfirmationRequired = true
	s.ConfirmationKind = ConfirmationStlDownload
	s.ScanBuffer = []backendclient.ScanRecord{{ID: 1, PatientID: 9}}
	s.ScanOffset = 3
	s.DownloadStage = DownloadPreviewShown
	s.ClarificationCount = 1
	s.HistorySummary = "a summary"
	s.MetricsDelta = MetricsDelta{SuccessfulOps: 2, Retries: 1}
	s.LastTouchedAt = now

	data, err := s.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, s, got)
}

func TestDeserialize_MissingFieldsTakeDefaults(t *testing.T) {
	got, err := Deserialize([]byte(`{"conversation_id":"conv-3"}`))
	require.NoError(t, err)

	assert.Equal(t, "Unknown", got.Intent)
	assert.Equal(t, PendingNone, got.PendingAction)
	assert.Equal(t, defaultScanPageSize, got.ScanPageSize)
	assert.NotNil(t, got.Slots)
}

func TestDeserialize_IgnoresUnknownFields(t *testing.T) {
	got, err := Deserialize([]byte(`{"conversation_id":"conv-4","unexpected_field":"value"}`))
	require.NoError(t, err)
	assert.Equal(t, "conv-4", got.ConversationID)
}
