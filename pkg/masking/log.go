package masking

import "log/slog"

// Log emits a structured log record tagged with category as the taxonomy
// field, through the standard logger. Callers pass the session id and node
// name explicitly so every record is filterable by conversation and by
// graph node, matching the {category, timestamp, session_id, node, message,
// extra} shape from the spec. The message and any string-valued extra are
// masked by the Handler installed on the default logger (see NewHandler);
// this helper only attaches the taxonomy attributes.
func Log(level slog.Level, category Category, sessionID, node, message string, extra ...any) {
	args := make([]any, 0, len(extra)+4)
	args = append(args, "category", category.String())
	if sessionID != "" {
		args = append(args, "session_id", sessionID)
	}
	if node != "" {
		args = append(args, "node", node)
	}
	args = append(args, extra...)
	slog.Log(nil, level, message, args...) //nolint:staticcheck // context intentionally nil; no request context carried by log call sites
}

// LogIntent logs an `intent` category event.
func LogIntent(sessionID, node, message string, extra ...any) {
	Log(slog.LevelInfo, CategoryIntent, sessionID, node, message, extra...)
}

// LogMissing logs a `missing` category event (slot-filling prompts).
func LogMissing(sessionID, node, message string, extra ...any) {
	Log(slog.LevelInfo, CategoryMissing, sessionID, node, message, extra...)
}

// LogTool logs a `tool` category event (HTTP tool client activity).
func LogTool(sessionID, node, message string, extra ...any) {
	Log(slog.LevelInfo, CategoryTool, sessionID, node, message, extra...)
}

// LogSuccess logs a `success` category event.
func LogSuccess(sessionID, node, message string, extra ...any) {
	Log(slog.LevelInfo, CategorySuccess, sessionID, node, message, extra...)
}

// LogError logs an `error` category event.
func LogError(sessionID, node, message string, extra ...any) {
	Log(slog.LevelError, CategoryError, sessionID, node, message, extra...)
}

// LogFlow logs a `flow` category event (graph routing/turn lifecycle).
func LogFlow(sessionID, node, message string, extra ...any) {
	Log(slog.LevelInfo, CategoryFlow, sessionID, node, message, extra...)
}
