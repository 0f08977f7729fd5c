package errors

// HTTPError is an error that knows how it should be rendered to a client.
type HTTPError struct {
	Code       int
	Message    string
	StatusCode int
	// Fields carries per-field messages for validation failures.
	Fields map[string]string
}

func NewHTTPError(statusCode int, code int, message string) *HTTPError {
	return &HTTPError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func (e HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) WithFields(fields map[string]string) *HTTPError {
	cp := *e
	cp.Fields = fields
	return &cp
}
