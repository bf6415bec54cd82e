package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"file-sharing-service/pkg/logger"
	"file-sharing-service/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type staticAuth struct{ uid uuid.UUID }

func (a staticAuth) Authenticate(_ context.Context, token string) (uuid.UUID, error) {
	if token == "t0k3n" {
		return a.uid, nil
	}
	return uuid.Nil, errors.New("bad token")
}

func TestExtractToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer", "Bearer abc", "", "abc"},
		{"lowercase scheme", "bearer abc", "", "abc"},
		{"other scheme", "Basic abc", "zzz", ""},
		{"cookie", "", "abc", "abc"},
		{"nothing", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: middleware.AccessTokenCookie, Value: tc.cookie})
			}
			c.Request = req
			assert.Equal(t, tc.want, middleware.ExtractToken(c))
		})
	}
}

func TestAuthAndRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	uid := uuid.New()

	r := gin.New()
	r.Use(middleware.RequestLogger(logger.FromZap(zap.New(core))))
	r.GET("/me", middleware.Auth(staticAuth{uid: uid}), func(c *gin.Context) {
		got, ok := middleware.UserID(c)
		assert.True(t, ok)
		logger.GetLogger(c.Request.Context()).Info("inside handler")
		c.String(http.StatusOK, got.String())
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer t0k3n")
	req.Header.Set(middleware.RequestIDHeader, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uid.String(), w.Body.String())
	assert.Equal(t, "req-1", w.Header().Get(middleware.RequestIDHeader))

	inside := logs.FilterMessage("inside handler").All()
	if assert.Len(t, inside, 1) {
		assert.Equal(t, "req-1", inside[0].ContextMap()["request_id"])
	}
	done := logs.FilterMessage("request completed").All()
	if assert.Len(t, done, 1) {
		assert.Equal(t, int64(http.StatusOK), done[0].ContextMap()["status"])
		assert.Equal(t, uid.String(), done[0].ContextMap()["user_id"])
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}
