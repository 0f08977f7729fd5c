package response

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgErrors "github.com/vogiaan1904/tablequeue/pkg/errors"
)

type Resp struct {
	ErrorCode int    `json:"error_code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Errors    any    `json:"errors,omitempty"`
}

func parseHttpError(err error) (int, Resp) {
	var httpErr *pkgErrors.HTTPError
	if errors.As(err, &httpErr) {
		statusCode := httpErr.StatusCode
		if statusCode == 0 {
			statusCode = http.StatusBadRequest
		}

		resp := Resp{
			ErrorCode: httpErr.Code,
			Message:   httpErr.Message,
		}
		if len(httpErr.Fields) > 0 {
			resp.Errors = httpErr.Fields
		}
		return statusCode, resp
	}

	return http.StatusInternalServerError, Resp{
		ErrorCode: 500,
		Message:   "Internal server error",
	}
}

// Error renders err as a JSON error body.
func Error(w http.ResponseWriter, err error) {
	statusCode, resp := parseHttpError(err)
	JSON(w, statusCode, resp)
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Resp{Message: "Success", Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Resp{Message: "Created", Data: data})
}

func JSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
