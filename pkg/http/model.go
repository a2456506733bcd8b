package http

// APIResponse is the envelope every JSON endpoint replies with.
type APIResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ListData wraps collection endpoints.
type ListData struct {
	Rows  any   `json:"rows"`
	Total int64 `json:"total"`
}
