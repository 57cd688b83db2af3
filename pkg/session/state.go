// Package session implements the Session Store (spec 4.5) and State Model
// (spec 4.6): a concurrency-safe conversation_id -> SessionState map with
// TTL and LRU eviction, and the pure per-session data it stores.
package session

import (
	"encoding/json"
	"time"

	"github.com/hydrochat/hydrochat/pkg/backendclient"
)

// MessageRole is the role of one recent_messages entry.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn kept in the bounded recent_messages window.
type Message struct {
	Role MessageRole `json:"role"`
	Text string      `json:"text"`
}

// PendingAction is the closed set of slot-filling/confirmation obligations
// a session may be waiting on (spec 3).
type PendingAction string

const (
	PendingNone                      PendingAction = "None"
	PendingAwaitingSlotsForCreate    PendingAction = "AwaitingSlotsForCreate"
	PendingAwaitingSlotsForUpdate    PendingAction = "AwaitingSlotsForUpdate"
	PendingAwaitingDeleteConfirm     PendingAction = "AwaitingDeleteConfirmation"
	PendingAwaitingStlConfirmation   PendingAction = "AwaitingStlConfirmation"
)

// ConfirmationKind identifies what an affirmative/negative reply resolves.
type ConfirmationKind string

const (
	ConfirmationNone        ConfirmationKind = "None"
	ConfirmationDelete      ConfirmationKind = "Delete"
	ConfirmationStlDownload ConfirmationKind = "StlDownload"
)

// DownloadStage tracks progress through the two-stage STL flow (spec 4.7
// node 10-12).
type DownloadStage string

const (
	DownloadNone             DownloadStage = "None"
	DownloadPreviewShown     DownloadStage = "PreviewShown"
	DownloadAwaitingStlConfirm DownloadStage = "AwaitingStlConfirm"
	DownloadStlLinksSent     DownloadStage = "StlLinksSent"
)

const recentMessagesMax = 5

const defaultScanPageSize = 10

// MetricsDelta is the set of counters a turn accumulates for merging into
// the global Metrics at turn end (spec 3, metrics_delta).
type MetricsDelta struct {
	SuccessfulOps int `json:"successful_ops"`
	FailedOps     int `json:"failed_ops"`
	AbortedOps    int `json:"aborted_ops"`
	Retries       int `json:"retries"`
}

// State is the per-conversation state model (spec 3, 4.6). All fields have
// defined initial values so a freshly created State is immediately valid.
type State struct {
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	LastTouchedAt  time.Time `json:"last_touched_at"`

	RecentMessages []Message `json:"recent_messages"`

	Intent         string           `json:"intent"`
	PendingAction  PendingAction    `json:"pending_action"`
	Slots          map[string]string `json:"slots"`
	MissingSlots   []string         `json:"missing_slots"`

	SelectedPatientID *int64 `json:"selected_patient_id,omitempty"`

	ConfirmationRequired bool             `json:"confirmation_required"`
	ConfirmationKind     ConfirmationKind `json:"confirmation_kind"`

	ScanBuffer    []backendclient.ScanRecord `json:"scan_buffer"`
	ScanOffset    int                        `json:"scan_offset"`
	ScanPageSize  int                        `json:"scan_page_size"`
	ScanPageStart int                        `json:"scan_page_start"`

	DownloadStage DownloadStage `json:"download_stage"`

	ClarificationCount int `json:"clarification_count"`

	HistorySummary string `json:"history_summary,omitempty"`

	MetricsDelta MetricsDelta `json:"metrics_delta"`
}

// New creates a fresh State for conversationID with every field at its
// spec-defined initial value.
func New(conversationID string, now time.Time) *State {
	return &State{
		ConversationID: conversationID,
		CreatedAt:      now,
		LastTouchedAt:  now,
		RecentMessages: nil,
		Intent:         "Unknown",
		PendingAction:  PendingNone,
		Slots:          map[string]string{},
		MissingSlots:   nil,
		ConfirmationKind: ConfirmationNone,
		ScanPageSize:   defaultScanPageSize,
		DownloadStage:  DownloadNone,
	}
}

// AppendMessage appends a (role, text) turn, truncating recent_messages to
// the last 5 entries (invariant iv, spec 3).
func (s *State) AppendMessage(role MessageRole, text string) {
	s.RecentMessages = append(s.RecentMessages, Message{Role: role, Text: text})
	if len(s.RecentMessages) > recentMessagesMax {
		s.RecentMessages = s.RecentMessages[len(s.RecentMessages)-recentMessagesMax:]
	}
}

// Touch updates last_touched_at (spec 4.6).
func (s *State) Touch(now time.Time) {
	s.LastTouchedAt = now
}

// ResetOnCancel clears everything except conversation_id, created_at,
// recent_messages, and history_summary (spec 3, 4.6).
func (s *State) ResetOnCancel() {
	conversationID := s.ConversationID
	createdAt := s.CreatedAt
	recentMessages := s.RecentMessages
	historySummary := s.HistorySummary

	*s = *New(conversationID, s.LastTouchedAt)
	s.CreatedAt = createdAt
	s.RecentMessages = recentMessages
	s.HistorySummary = historySummary
}

// Serialize renders s as the JSON shape defined in spec 6: field names
// exactly as in spec 3, enums as their identifier strings in the case the
// constants use (e.g. "AwaitingSlotsForCreate"; they are not upper-cased),
// timestamps as integer milliseconds since epoch.
func (s *State) Serialize() ([]byte, error) {
	return json.Marshal(wireState{
		ConversationID:       s.ConversationID,
		CreatedAtMs:          s.CreatedAt.UnixMilli(),
		LastTouchedAtMs:      s.LastTouchedAt.UnixMilli(),
		RecentMessages:       s.RecentMessages,
		Intent:               s.Intent,
		PendingAction:        s.PendingAction,
		Slots:                s.Slots,
		MissingSlots:         s.MissingSlots,
		SelectedPatientID:    s.SelectedPatientID,
		ConfirmationRequired: s.ConfirmationRequired,
		ConfirmationKind:     s.ConfirmationKind,
		ScanBuffer:           s.ScanBuffer,
		ScanOffset:           s.ScanOffset,
		ScanPageSize:         s.ScanPageSize,
		ScanPageStart:        s.ScanPageStart,
		DownloadStage:        s.DownloadStage,
		ClarificationCount:   s.ClarificationCount,
		HistorySummary:       s.HistorySummary,
		MetricsDelta:         s.MetricsDelta,
	})
}

// Deserialize parses data produced by Serialize. Unknown fields are
// ignored; missing fields take State's zero/default values (forward
// compatibility rule, spec 6).
func Deserialize(data []byte) (*State, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	s := &State{
		ConversationID:       w.ConversationID,
		CreatedAt:            time.UnixMilli(w.CreatedAtMs),
		LastTouchedAt:        time.UnixMilli(w.LastTouchedAtMs),
		RecentMessages:       w.RecentMessages,
		Intent:               w.Intent,
		PendingAction:        w.PendingAction,
		Slots:                w.Slots,
		MissingSlots:         w.MissingSlots,
		SelectedPatientID:    w.SelectedPatientID,
		ConfirmationRequired: w.ConfirmationRequired,
		ConfirmationKind:     w.ConfirmationKind,
		ScanBuffer:           w.ScanBuffer,
		ScanOffset:           w.ScanOffset,
		ScanPageSize:         w.ScanPageSize,
		ScanPageStart:        w.ScanPageStart,
		DownloadStage:        w.DownloadStage,
		ClarificationCount:   w.ClarificationCount,
		HistorySummary:       w.HistorySummary,
		MetricsDelta:         w.MetricsDelta,
	}
	if s.Slots == nil {
		s.Slots = map[string]string{}
	}
	if s.Intent == "" {
		s.Intent = "Unknown"
	}
	if s.PendingAction == "" {
		s.PendingAction = PendingNone
	}
	if s.ConfirmationKind == "" {
		s.ConfirmationKind = ConfirmationNone
	}
	if s.DownloadStage == "" {
		s.DownloadStage = DownloadNone
	}
	if s.ScanPageSize == 0 {
		s.ScanPageSize = defaultScanPageSize
	}
	return s, nil
}

// wireState is the exact JSON wire shape for a serialized State (spec 6).
type wireState struct {
	ConversationID       string                     `json:"conversation_id"`
	CreatedAtMs          int64                      `json:"created_at"`
	LastTouchedAtMs      int64                      `json:"last_touched_at"`
	RecentMessages       []Message                  `json:"recent_messages"`
	Intent               string                     `json:"intent"`
	PendingAction        PendingAction              `json:"pending_action"`
	Slots                map[string]string          `json:"slots"`
	MissingSlots         []string                   `json:"missing_slots"`
	SelectedPatientID    *int64                     `json:"selected_patient_id,omitempty"`
	ConfirmationRequired bool                       `json:"confirmation_required"`
	ConfirmationKind     ConfirmationKind           `json:"confirmation_kind"`
	ScanBuffer           []backendclient.ScanRecord `json:"scan_buffer"`
	ScanOffset           int                        `json:"scan_offset"`
	ScanPageSize         int                        `json:"scan_page_size"`
	ScanPageStart        int                        `json:"scan_page_start"`
	DownloadStage        DownloadStage              `json:"download_stage"`
	ClarificationCount   int                        `json:"clarification_count"`
	HistorySummary       string                     `json:"history_summary,omitempty"`
	MetricsDelta         MetricsDelta               `json:"metrics_delta"`
}
