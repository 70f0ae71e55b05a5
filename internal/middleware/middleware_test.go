package middleware

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/database"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/migrations"
	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	apperrors "github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const testSecret = "middleware-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite:file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	require.NoError(t, migrations.Migrate(db))
	return db
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestErrorHandlerMapsAppErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandlerMiddleware())
	r.GET("/conflict", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("create contest: %w", apperrors.ErrActiveContestExists))
	})
	r.GET("/shortfall", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrInsufficientProblems.WithMessage("Found 2, needed 3"))
	})
	r.GET("/plain", func(c *gin.Context) {
		_ = c.Error(fmt.Errorf("connection reset"))
	})
	r.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	w := serve(r, http.MethodGet, "/conflict", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, map[string]string{"error": "User already has an active contest", "kind": "active_contest_exists"}, decodeError(t, w))

	w = serve(r, http.MethodGet, "/shortfall", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_problems", decodeError(t, w)["kind"])
	assert.Equal(t, "Found 2, needed 3", decodeError(t, w)["error"])

	w = serve(r, http.MethodGet, "/plain", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w)["kind"])
	assert.NotContains(t, w.Body.String(), "connection reset")

	w = serve(r, http.MethodGet, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal", decodeError(t, w)["kind"])
}

func TestAuthMiddleware(t *testing.T) {
	db := newTestDB(t)
	user := models.User{ID: utils.GenerateID(), Username: "alice", Rating: models.InitialRating}
	require.NoError(t, db.Create(&user).Error)

	r := gin.New()
	r.Use(ErrorHandlerMiddleware())
	r.GET("/me", AuthMiddleware(testSecret, db), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	bearer := func(token string) http.Header {
		return http.Header{"Authorization": {"Bearer " + token}}
	}

	token, err := utils.GenerateToken(testSecret, user.ID, time.Hour)
	require.NoError(t, err)
	w := serve(r, http.MethodGet, "/me", bearer(token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, user.ID, w.Body.String())

	w = serve(r, http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", decodeError(t, w)["kind"])

	w = serve(r, http.MethodGet, "/me", http.Header{"Authorization": {"Token " + token}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := utils.GenerateToken("other-secret", user.ID, time.Hour)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/me", bearer(forged))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := utils.GenerateToken(testSecret, user.ID, -time.Minute)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/me", bearer(expired))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	ghost, err := utils.GenerateToken(testSecret, utils.GenerateID(), time.Hour)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/me", bearer(ghost))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "User not found", decodeError(t, w)["error"])
}

func TestOptionalAuthNeverAborts(t *testing.T) {
	r := gin.New()
	r.GET("/whoami", OptionalAuthMiddleware(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, "["+CurrentUserID(c)+"]")
	})

	w := serve(r, http.MethodGet, "/whoami", nil)
	assert.Equal(t, "[]", w.Body.String())

	w = serve(r, http.MethodGet, "/whoami", http.Header{"Authorization": {"Bearer garbage"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())

	token, err := utils.GenerateToken(testSecret, "u-1", time.Hour)
	require.NoError(t, err)
	w = serve(r, http.MethodGet, "/whoami", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, "[u-1]", w.Body.String())
}

func TestRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(0.001), 2)
	r := gin.New()
	r.GET("/x", RateLimitMiddleware(limiter), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	from := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, from("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, from("10.0.0.1").Code)
	w := from("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limited", decodeError(t, w)["kind"])

	assert.Equal(t, http.StatusNoContent, from("10.0.0.2").Code, "limits are per client")
}

func TestRateLimiterEvictsIdleEntries(t *testing.T) {
	limiter := NewIPRateLimiter(rate.Limit(1), 1)
	limiter.GetLimiter("10.0.0.1")
	limiter.evictIdle(time.Now(), time.Hour)
	assert.Len(t, limiter.ips, 1)
	limiter.evictIdle(time.Now().Add(2*time.Hour), time.Hour)
	assert.Empty(t, limiter.ips)
}

func TestMaintenanceModeBlocksWrites(t *testing.T) {
	r := gin.New()
	r.Use(MaintenanceMode(true))
	r.GET("/contests/1", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/contests/1/submit", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/contests/1", nil).Code)
	w := serve(r, http.MethodPost, "/contests/1/submit", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "maintenance", decodeError(t, w)["kind"])

	open := gin.New()
	open.Use(MaintenanceMode(false))
	open.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })
	assert.Equal(t, http.StatusCreated, serve(open, http.MethodPost, "/x", nil).Code)
}

func TestSecurityAndCORSHeaders(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware("https://circle.example"), SecurityHeaders())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/x", http.Header{"Origin": {"https://circle.example"}})
	assert.Equal(t, "https://circle.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = serve(r, http.MethodGet, "/x", http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/contests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/api/contests/abc", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/contests/:id", "200")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "unmatched", "404")), 1.0)
}
