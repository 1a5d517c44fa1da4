package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expense_tracker/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret"

func TestSessionAuthMiddleware(t *testing.T) {
	r := gin.New()
	r.GET("/private", SessionAuthMiddleware(testSecret, "token"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": UserID(c), "email": c.GetString(ContextEmail)})
	})

	token, err := utils.GenerateJWT("user-1", "a@example.com", testSecret)
	require.NoError(t, err)
	forged, err := utils.GenerateJWT("user-1", "a@example.com", "other-secret")
	require.NoError(t, err)

	tests := []struct {
		name   string
		cookie string
		status int
	}{
		{name: "valid", cookie: token, status: http.StatusOK},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "garbage", cookie: "not-a-jwt", status: http.StatusUnauthorized},
		{name: "wrong secret", cookie: forged, status: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "token", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"userID":"user-1","email":"a@example.com"}`, w.Body.String())
			} else {
				assert.JSONEq(t, `{"message":"Unauthorized"}`, w.Body.String())
			}
		})
	}
}

func TestCSRF(t *testing.T) {
	x := NewCSRF([]byte("0123456789abcdef0123456789abcdef"), "_csrf", false, "localhost:5173")
	r := gin.New()
	r.Use(x.Middleware())
	r.GET("/csrf-token", func(c *gin.Context) {
		token, err := x.Token(c)
		require.NoError(t, err)
		c.JSON(http.StatusOK, gin.H{"csrfToken": token})
	})
	r.POST("/things", func(c *gin.Context) { c.Status(http.StatusCreated) })

	issue := func(cookie *http.Cookie) (string, *http.Response) {
		req := httptest.NewRequest(http.MethodGet, "/csrf-token", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			CSRFToken string `json:"csrfToken"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.NotEmpty(t, body.CSRFToken)
		return body.CSRFToken, w.Result()
	}

	// the first token also sets the cookie holding the real token
	token, res := issue(nil)
	cookies := res.Cookies()
	require.Len(t, cookies, 1)
	secret := cookies[0]
	assert.Equal(t, "_csrf", secret.Name)
	assert.True(t, secret.HttpOnly)

	// tokens are masked per request but all match the same cookie
	again, res := issue(secret)
	assert.Empty(t, res.Cookies(), "an existing cookie is kept")
	assert.NotEqual(t, token, again)

	post := func(cookie *http.Cookie, header string, headers ...string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/things", nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		if header != "" {
			req.Header.Set(CSRFHeader, header)
		}
		for i := 0; i+1 < len(headers); i += 2 {
			req.Header.Set(headers[i], headers[i+1])
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusCreated, post(secret, token).Code)
	assert.Equal(t, http.StatusCreated, post(secret, again).Code)
	assert.Equal(t, http.StatusCreated, post(secret, token, "Origin", "http://localhost:5173").Code)

	w := post(secret, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"message":"Invalid CSRF token"}`, w.Body.String())
	assert.Equal(t, http.StatusForbidden, post(nil, token).Code)
	assert.Equal(t, http.StatusForbidden, post(secret, token+"x").Code)
	assert.Equal(t, http.StatusForbidden, post(&http.Cookie{Name: "_csrf", Value: "other"}, token).Code)
	assert.Equal(t, http.StatusForbidden, post(secret, token, "Origin", "http://evil.example").Code)
}

func TestCSRFTokenOutsideMiddleware(t *testing.T) {
	x := NewCSRF([]byte("0123456789abcdef0123456789abcdef"), "_csrf", false)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := x.Token(c)
	assert.Error(t, err)
}

func TestSecurityHeaders(t *testing.T) {
	for _, prod := range []bool{false, true} {
		r := gin.New()
		r.Use(SecurityHeaders(prod))
		r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
		assert.Equal(t, prod, w.Header().Get("Strict-Transport-Security") != "")
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.POST("/login", RateLimit(rdb, "auth", 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	mr.FastForward(time.Minute + time.Second)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code, "window expired")
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	r := gin.New()
	r.POST("/login", RateLimit(nil, "auth", 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
