package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	domainerrors "github.com/courier-service/courier_service/internal/domain/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRespondDomainError_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", domainerrors.ValidationError("amount", "must be positive"), http.StatusBadRequest},
		{"not found", domainerrors.NotFoundError("TRANSFER_ATTEMPT"), http.StatusNotFound},
		{"conflict", domainerrors.ConflictError("transfer", "already running"), http.StatusConflict},
		{"unavailable", domainerrors.ServiceUnavailableError("solana", assert.AnError), http.StatusServiceUnavailable},
		{"internal", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)

			respondDomainError(c, tc.err)

			assert.Equal(t, tc.status, recorder.Code)
			assert.Contains(t, recorder.Body.String(), `"code"`)
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"limit=10&offset=20", 10, 20},
		{"limit=500", 100, 0},
		{"limit=-1&offset=-5", 50, 0},
		{"limit=abc", 50, 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(recorder)
			c.Request = httptest.NewRequest(http.MethodGet, "/transfers?"+tc.query, nil)

			limit, offset := parsePagination(c, 50, 100)
			assert.Equal(t, tc.wantLimit, limit)
			assert.Equal(t, tc.wantOffset, offset)
		})
	}
}
