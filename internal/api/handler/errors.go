package handler

// ErrorResponse is the error envelope of every JSON endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	// Fields carries per-field messages for validation failures.
	Fields map[string]string `json:"fields,omitempty"`
	// Action hints what the user should do next, e.g. "login" after an
	// already-exists conflict.
	Action    string `json:"action,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
