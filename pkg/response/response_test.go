package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgErrors "github.com/vogiaan1904/tablequeue/pkg/errors"
)

func TestErrorRendering(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantFields bool
	}{
		{
			name:       "http error",
			err:        pkgErrors.NewHTTPError(http.StatusConflict, 40901, "already in queue"),
			wantStatus: http.StatusConflict,
			wantCode:   40901,
		},
		{
			name:       "wrapped http error",
			err:        fmt.Errorf("join: %w", pkgErrors.NewHTTPError(http.StatusBadGateway, 50201, "join failed")),
			wantStatus: http.StatusBadGateway,
			wantCode:   50201,
		},
		{
			name:       "validation fields",
			err:        pkgErrors.NewHTTPError(0, 40001, "invalid").WithFields(map[string]string{"name": "Name is required"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   40001,
			wantFields: true,
		},
		{
			name:       "unknown error",
			err:        fmt.Errorf("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   500,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tc.err)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			var body struct {
				ErrorCode int               `json:"error_code"`
				Errors    map[string]string `json:"errors"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.ErrorCode != tc.wantCode {
				t.Fatalf("expected code %d, got %d", tc.wantCode, body.ErrorCode)
			}
			if tc.wantFields && body.Errors["name"] != "Name is required" {
				t.Fatalf("expected field errors, got %v", body.Errors)
			}
		})
	}
}
