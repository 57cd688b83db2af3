package masking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// errMaskingFailed is returned by Handler.Handle when masking itself panics,
// so the caller's slog machinery sees a dropped record rather than a crash.
var errMaskingFailed = errors.New("masking: failed to mask log record, record dropped")

// Service applies PII masking to every outbound string: assistant replies,
// log records, and exception messages surfaced to clients. Created once at
// application startup (singleton-equivalent passed in as a constructor
// parameter per the "explicit constructor parameters" design note). Stateless
// aside from its registered maskers, so it is safe for concurrent use.
type Service struct {
	maskers []Masker
}

// NewService creates a masking service with the default maskers registered.
// Additional maskers (e.g. for future identifier shapes) can be supplied.
func NewService(extra ...Masker) *Service {
	s := &Service{
		maskers: append([]Masker{NationalIDMasker{}}, extra...),
	}
	return s
}

// Mask returns a redacted copy of s. Masking is idempotent:
// Mask(Mask(x)) == Mask(x), because the masker only ever replaces the
// interior of a match that itself no longer matches the pattern.
//
// Mask never returns an error: a masker that would fail is a defect in
// that masker (they must be defensive internally), not a runtime condition
// this method surfaces. Any string this returns is safe to log or emit.
func (s *Service) Mask(str string) string {
	if str == "" {
		return str
	}
	masked := str
	for _, m := range s.maskers {
		if m.AppliesTo(masked) {
			masked = m.Mask(masked)
		}
	}
	return masked
}

// MaskAll masks every string in a slice, returning a new slice.
func (s *Service) MaskAll(strs []string) []string {
	out := make([]string, len(strs))
	for i, str := range strs {
		out[i] = s.Mask(str)
	}
	return out
}

// Handler wraps an slog.Handler so that every log record's message and every
// string-valued attribute passes through masking before it reaches the
// underlying handler. This is the enforcement point for "masking failure is
// fatal for the offending record": if building the masked record itself
// panics, the record is dropped rather than risking an unmasked write, per
// the fail-closed discipline the teacher applies in MaskToolResult.
type Handler struct {
	next    slog.Handler
	service *Service
}

// NewHandler wraps next with masking enforced by service.
func NewHandler(next slog.Handler, service *Service) *Handler {
	return &Handler{next: next, service: service}
}

// Enabled delegates to the wrapped handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle masks the record's message and attribute values before delegating.
func (h *Handler) Handle(ctx context.Context, r slog.Record) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			// Fail-closed: drop the record rather than risk emitting it unmasked.
			err = errMaskingFailed
		}
	}()

	masked := slog.NewRecord(r.Time, r.Level, h.service.Mask(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.next.Handle(ctx, masked)
}

func (h *Handler) maskAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, h.service.Mask(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		maskedGroup := make([]slog.Attr, len(group))
		for i, ga := range group {
			maskedGroup[i] = h.maskAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedGroup...)}
	case slog.KindBool, slog.KindInt64, slog.KindUint64, slog.KindFloat64, slog.KindDuration, slog.KindTime:
		return a
	default:
		// KindAny (and any other shape, e.g. a resolved LogValuer): format and
		// mask it like a string rather than pass the raw value through, since
		// a map[string][]string of backend validation messages can echo a
		// raw national id (nodes.go LogError "fields" attr).
		return slog.String(a.Key, h.service.Mask(fmt.Sprintf("%v", a.Value.Resolve().Any())))
	}
}

// WithAttrs masks any string-valued attrs eagerly and returns a new Handler.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.maskAttr(a)
	}
	return &Handler{next: h.next.WithAttrs(masked), service: h.service}
}

// WithGroup delegates group scoping to the wrapped handler.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), service: h.service}
}
