package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
)

func TestStartSpanReusesTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "abc")
	span, ctx := StartSpan(ctx, "op")
	assert.Equal(t, "abc", span.TraceID)
	assert.Equal(t, "abc", TraceIDFrom(ctx))

	span, ctx = StartSpan(context.Background(), "op")
	assert.True(t, strings.HasPrefix(span.TraceID, "req_"))
	assert.Equal(t, span.TraceID, TraceIDFrom(ctx))
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	router := gin.New()
	router.Use(HTTPMiddleware(logging.Wrap(zap.New(core))))

	var seen string
	router.GET("/status", func(c *gin.Context) {
		seen = TraceIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	t.Run("generates id", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

		require.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(TraceHeader))
	})

	t.Run("propagates caller id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set(TraceHeader, "caller-1")
		router.ServeHTTP(w, req)

		assert.Equal(t, "caller-1", seen)
		assert.Equal(t, "caller-1", w.Header().Get(TraceHeader))
	})

	t.Run("rejects unprintable id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/status", nil)
		req.Header.Set(TraceHeader, "bad id")
		router.ServeHTTP(w, req)

		assert.NotEqual(t, "bad id", seen)
	})

	t.Run("logs failures as warnings", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

		warned := logs.FilterMessage("Request failed").All()
		require.Len(t, warned, 1)
		assert.Equal(t, int64(500), warned[0].ContextMap()["status"])
	})
}
