package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cropadvisor/cropadvisor/backend/auth-service/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2)) // generous rate
	r.POST("/login", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/login", nil))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("POST", "/login", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, w2.Code)

	// verify metrics incremented for memory limiter
	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	// very low rate to force rejections
	r.Use(RateLimitMiddleware(0.5, 1))
	r.POST("/signup", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest("POST", "/signup", nil))
	require.Equal(t, http.StatusOK, w1.Code)

	// immediate second request -> should be rate-limited
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("POST", "/signup", nil))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
	require.Equal(t, "1", w2.Header().Get("Retry-After"))
	require.JSONEq(t, `{"success":false,"message":"Too many requests"}`, w2.Body.String())

	// a token is back after 1/rps seconds
	time.Sleep(2100 * time.Millisecond)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, httptest.NewRequest("POST", "/signup", nil))
	require.Equal(t, http.StatusOK, w3.Code)
}

func TestRateLimitMiddleware_SeparateInstancesDoNotShareBuckets(t *testing.T) {
	r := gin.New()
	r.POST("/a", RateLimitMiddleware(0.1, 1), func(c *gin.Context) { c.Status(200) })
	r.POST("/b", RateLimitMiddleware(0.1, 1), func(c *gin.Context) { c.Status(200) })

	wa := httptest.NewRecorder()
	r.ServeHTTP(wa, httptest.NewRequest("POST", "/a", nil))
	wb := httptest.NewRecorder()
	r.ServeHTTP(wb, httptest.NewRequest("POST", "/b", nil))
	require.Equal(t, http.StatusOK, wa.Code)
	require.Equal(t, http.StatusOK, wb.Code)
}

func TestRateLimitMiddleware_UsesPrincipalWhenPresent(t *testing.T) {
	r := gin.New()
	// middleware that injects a principal before the rate limiter, keyed by header
	r.Use(func(c *gin.Context) {
		c.Set(PrincipalKey, &Principal{UserID: c.GetHeader("X-User"), Transport: TransportToken})
		c.Next()
	})
	r.Use(RateLimitMiddleware(0.1, 1))
	r.GET("/u", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	send := func(user string) int {
		req := httptest.NewRequest("GET", "/u", nil)
		req.Header.Set("X-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusOK, send("user-123"))
	// same subject => rejected
	require.Equal(t, http.StatusTooManyRequests, send("user-123"))
	// same IP, different subject => own bucket
	require.Equal(t, http.StatusOK, send("user-456"))
}
