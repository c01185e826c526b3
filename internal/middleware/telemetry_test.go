package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func TestTracing_SkipsHealth(t *testing.T) {
	recorder := withRecorder(t)

	router := gin.New()
	router.Use(Tracing("kdp-pulse-test"))
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/api/v1/users/:user_id/notifications", func(c *gin.Context) {
		AddSpanAttribute(c, "user_id", c.Param("user_id"))
		AddSpanAttribute(c, "limit", 5)
		AddSpanAttribute(c, "nudge", true)
		RecordError(c, errors.New("ledger unavailable"), "ledger")
		c.Status(http.StatusOK)
	})

	for _, path := range []string{"/health", "/api/v1/users/u1/notifications"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Name(), "/api/v1/users/:user_id/notifications")
	assert.Len(t, spans[0].Events(), 1)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	router := gin.New()
	router.Use(RequestLogger(logger))
	router.GET("/api/v1/users/:user_id/weights", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/u7/weights", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/api/v1/users/:user_id/weights", entry["path"])
	assert.Equal(t, "u7", entry["user_id"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
}

func TestRecordError_NoSpan(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	assert.NotPanics(t, func() {
		RecordError(c, errors.New("x"), "x")
		AddSpanAttribute(c, "k", struct{}{})
	})
}
