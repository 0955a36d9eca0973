package http

// APIResponse is the envelope every endpoint answers with. Data carries the
// payload on success and a list of *AppError or ValidationError on failure.
type APIResponse struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

type ValidationError struct {
	Code    string                 `json:"code,omitempty" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"weights"`
	Message string                 `json:"message,omitempty" example:"weights is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps list payloads such as snapshot history.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}
