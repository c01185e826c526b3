package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/kdp-pulse/internal/database"
	"github.com/irfndi/kdp-pulse/internal/services"
)

func generationRouter(runner *MockGenerationRunner, now time.Time) *gin.Engine {
	h := NewGenerationHandler(runner, nil)
	h.now = func() time.Time { return now }
	r := gin.New()
	r.POST("/users/:user_id/snapshots/generate", h.GenerateSnapshots)
	return r
}

func TestGenerationHandler_Generate(t *testing.T) {
	now := time.Date(2026, 10, 14, 6, 0, 0, 0, time.UTC)
	runner := &MockGenerationRunner{}
	runner.On("RunForUser", mock.Anything, "u1", now).Return(&services.GenerationReport{
		StartedAt: now,
		Users:     1,
		Processed: 2,
		Failed:    []services.FailedListing{{UserID: "u1", ASIN: "B003", Error: "timeout"}},
	}, nil)

	w := httptest.NewRecorder()
	generationRouter(runner, now).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/u1/snapshots/generate", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["processed"])
	assert.Len(t, body["failed"], 1)
}

func TestGenerationHandler_UnknownUser(t *testing.T) {
	now := time.Now()
	runner := &MockGenerationRunner{}
	runner.On("RunForUser", mock.Anything, "ghost", now).
		Return(nil, fmt.Errorf("failed to load user ghost: %w", database.ErrNotFound))

	w := httptest.NewRecorder()
	generationRouter(runner, now).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/users/ghost/snapshots/generate", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
