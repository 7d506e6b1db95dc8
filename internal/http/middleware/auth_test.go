package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/BigPharmacist/ChatApp/internal/platform/logger"
)

func signToken(t *testing.T, secret, subject string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestRequireAuth(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)
	const secret = "test-secret"
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"disabled passes through", "", "", http.StatusOK},
		{"missing token", secret, "", http.StatusUnauthorized},
		{"valid token", secret, "Bearer " + signToken(t, secret, "user-1", future), http.StatusOK},
		{"wrong secret", secret, "Bearer " + signToken(t, "other", "user-1", future), http.StatusUnauthorized},
		{"expired", secret, "Bearer " + signToken(t, secret, "user-1", time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"no subject", secret, "Bearer " + signToken(t, secret, "", future), http.StatusForbidden},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			am := NewAuthMiddleware(logger.Nop(), tc.secret)
			r := gin.New()
			r.Use(am.RequireAuth())
			r.GET("/collections", func(c *gin.Context) {
				if am.Enabled() {
					if uid, _ := c.Get(contextUserID); uid != "user-1" {
						t.Errorf("user id: got=%v", uid)
					}
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/collections", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("status: want=%d got=%d body=%s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}
