package assistant

// Error codes surfaced to API clients. Internal error text never leaves the
// server; these codes plus a generic message do.
const (
	CodeActionFailed  = "ACTION_FAILED"
	CodeInternalError = "INTERNAL_ERROR"
)

// SuggestedAction is a follow-up the client may render as a button or link.
type SuggestedAction struct {
	Label string `json:"label"`
	// Kind is "link" for deep links and "query" for a canned follow-up
	// query to submit back to the assistant.
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Meta carries per-request diagnostics alongside the answer.
type Meta struct {
	RequestID  string  `json:"request_id"`
	SessionID  string  `json:"session_id"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	ElapsedMS  int64   `json:"elapsed_ms"`
	ErrorCode  string  `json:"error_code,omitempty"`
}

// Response is the assistant's answer to one query.
type Response struct {
	Status  string                 `json:"status"` // "success" or "error"
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Actions []SuggestedAction      `json:"actions,omitempty"`
	Meta    Meta                   `json:"meta"`
}
