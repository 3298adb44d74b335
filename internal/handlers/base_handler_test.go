package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", services.ErrExamNotFound, http.StatusNotFound, "EXAM_NOT_FOUND"},
		{"wrapped not found", fmt.Errorf("loading: %w", services.ErrAttemptNotFound), http.StatusNotFound, "ATTEMPT_NOT_FOUND"},
		{"window closed", services.ErrExamNotActive, http.StatusPreconditionFailed, "EXAM_NOT_ACTIVE"},
		{"attempts exhausted", services.ErrMaxAttemptsReached, http.StatusPreconditionFailed, "MAX_ATTEMPTS_REACHED"},
		{"wrong password", services.ErrInvalidExamPassword, http.StatusForbidden, "INVALID_EXAM_PASSWORD"},
		{"already submitted", services.ErrAttemptAlreadySubmitted, http.StatusConflict, "ATTEMPT_ALREADY_SUBMITTED"},
		{"permission", services.NewPermissionError("stu-2", 7, "attempt", "submit", "not owner"), http.StatusForbidden, "PERMISSION_DENIED"},
		{"business rule", services.NewBusinessRuleError("EXAM_HAS_ATTEMPTS", "exam has attempts", nil), http.StatusUnprocessableEntity, "EXAM_HAS_ATTEMPTS"},
		{"validation", validator.ValidationErrors{{Field: "title", Message: "title is required", Rule: "required"}}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBaseHandler(testLogger())
			router := gin.New()
			router.GET("/x", func(c *gin.Context) { h.handleServiceError(c, tt.err) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body models.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error)
			assert.Equal(t, "/x", body.Path)
		})
	}
}

func TestHandleServiceError_InternalMessageIsOpaque(t *testing.T) {
	h := NewBaseHandler(testLogger())
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		h.handleServiceError(c, errors.New("pq: password authentication failed for user cbt"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password authentication")
	assert.Contains(t, w.Body.String(), "An unexpected error occurred")
}

func TestHandleServiceError_ValidationDetails(t *testing.T) {
	h := NewBaseHandler(testLogger())
	router := gin.New()
	router.GET("/x", func(c *gin.Context) {
		h.handleServiceError(c, validator.ValidationErrors{
			{Field: "duration", Message: "duration must be between 1 and 600 minutes", Value: 0, Rule: "exam_duration"},
		})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.ValidationErrors, 1)
	assert.Equal(t, "duration", body.ValidationErrors[0].Field)
	assert.Equal(t, "exam_duration", body.ValidationErrors[0].Code)
	assert.Equal(t, "0", body.ValidationErrors[0].Value)
}
