package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hueai/medassist-backend/internal/logger"
	"github.com/hueai/medassist-backend/internal/requestdata"
)

func signToken(t *testing.T, secret string, subject string, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func newAuthRouter(t *testing.T) (*gin.Engine, *uuid.UUID) {
	t.Helper()
	t.Setenv("JWT_SECRET_KEY", "test-secret")
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	am, err := NewAuthMiddleware(log)
	if err != nil {
		t.Fatalf("middleware: %v", err)
	}

	gin.SetMode(gin.TestMode)
	var seen uuid.UUID
	r := gin.New()
	r.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		if rd != nil {
			seen = rd.PatientID
		}
		c.Status(http.StatusOK)
	})
	return r, &seen
}

func TestRequireAuthValidToken(t *testing.T) {
	r, seen := newAuthRouter(t)
	patientID := uuid.New()
	token := signToken(t, "test-secret", patientID.String(), time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if *seen != patientID {
		t.Fatalf("patient id in context = %s, want %s", *seen, patientID)
	}
}

func TestRequireAuthQueryToken(t *testing.T) {
	r, _ := newAuthRouter(t)
	token := signToken(t, "test-secret", uuid.New().String(), time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/protected?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	r, _ := newAuthRouter(t)

	cases := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"expired token", signToken(t, "test-secret", uuid.New().String(), time.Now().Add(-time.Hour))},
		{"wrong secret", signToken(t, "other-secret", uuid.New().String(), time.Now().Add(time.Hour))},
		{"non-uuid subject", signToken(t, "test-secret", "patient-42", time.Now().Add(time.Hour))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}
