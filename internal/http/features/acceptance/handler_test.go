package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/tendant/true-feedback/internal/http/middleware"
	"github.com/tendant/true-feedback/pkg/domain"
)

func TestSet_Validation(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		withPrincipal  bool
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "no session",
			body:           `{"acceptMessages":true}`,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Unauthorized",
		},
		{
			name:           "invalid json",
			body:           `{invalid}`,
			withPrincipal:  true,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid request body",
		},
		{
			name:           "missing flag",
			body:           `{}`,
			withPrincipal:  true,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "acceptMessages is required",
		},
	}

	h := &Handler{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/accept-messages", bytes.NewBufferString(tt.body))
			if tt.withPrincipal {
				req = req.WithContext(middleware.WithPrincipal(req.Context(), &domain.Principal{ID: uuid.New(), IsVerified: true}))
			}
			rec := httptest.NewRecorder()

			defer func() {
				if r := recover(); r != nil {
					t.Errorf("Validation should have failed before reaching service")
				}
			}()

			h.Set(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("Status code = %d, want %d", rec.Code, tt.expectedStatus)
			}
			var response map[string]any
			json.NewDecoder(rec.Body).Decode(&response)
			if response["message"] != tt.expectedError {
				t.Errorf("Error = %q, want %q", response["message"], tt.expectedError)
			}
		})
	}
}

func TestGet_NoSession(t *testing.T) {
	h := &Handler{}
	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/accept-messages", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
