package api

// MessageDTO is one entry of the response envelope's messages array.
type MessageDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentStateDTO mirrors spec 6's agent_state object.
type AgentStateDTO struct {
	Intent               string   `json:"intent"`
	AwaitingConfirmation bool     `json:"awaiting_confirmation"`
	MissingFields        []string `json:"missing_fields"`
}

// ConverseResponse is the outbound body of POST /hydrochat/converse/ (spec 6).
type ConverseResponse struct {
	ConversationID string        `json:"conversation_id"`
	Messages       []MessageDTO  `json:"messages"`
	AgentOp        string        `json:"agent_op"`
	AgentState     AgentStateDTO `json:"agent_state"`
}

// errorResponse is the shape returned for the 400/401/408 out-of-band
// status codes (spec 6); in-band user-facing errors stay 200 and flow
// through ConverseResponse instead.
type errorResponse struct {
	Error string `json:"error"`
}
