package masking

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Mask(t *testing.T) {
	s := NewService()

	got := s.Mask("contact patient S1234567A about results")
	assert.Equal(t, "contact patient S*******A about results", got)
}

func TestService_Mask_EmptyString(t *testing.T) {
	s := NewService()

	assert.Equal(t, "", s.Mask(""))
}

func TestService_MaskAll(t *testing.T) {
	s := NewService()

	out := s.MaskAll([]string{"id S1234567A", "no id here"})
	require.Len(t, out, 2)
	assert.Equal(t, "id S*******A", out[0])
	assert.Equal(t, "no id here", out[1])
}

func TestHandler_MasksMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	h := NewHandler(base, NewService())
	logger := slog.New(h)

	logger.Info("patient S1234567A flagged", "national_id", "T7654321B")

	out := buf.String()
	assert.NotContains(t, out, "S1234567A")
	assert.NotContains(t, out, "T7654321B")
	assert.Contains(t, out, "S*******A")
	assert.Contains(t, out, "T*******B")
}

func TestHandler_WithAttrsMasksEagerly(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	h := NewHandler(base, NewService())
	logger := slog.New(h).With("national_id", "S1234567A")

	logger.Info("lookup performed")

	out := buf.String()
	assert.NotContains(t, out, "S1234567A")
	assert.Contains(t, out, "S*******A")
}

func TestHandler_MasksAnyKindAttr(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	h := NewHandler(base, NewService())
	logger := slog.New(h)

	fields := map[string][]string{"national_id": {"national id S1234567A already in use"}}
	logger.Error("backend rejected create, reflecting fields", "fields", fields)

	out := buf.String()
	assert.NotContains(t, out, "S1234567A")
	assert.Contains(t, out, "S*******A")
}

func TestHandler_HandleRecoversFromPanic(t *testing.T) {
	base := slog.NewTextHandler(&bytes.Buffer{}, nil)
	h := NewHandler(base, nil)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "message", 0)
	err := h.Handle(nil, r)
	assert.ErrorIs(t, err, errMaskingFailed)
}
