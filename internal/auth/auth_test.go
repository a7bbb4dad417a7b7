package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(AdminSubject, "admin")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Role != "admin" || claims.Subject != AdminSubject {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJWTRejectsForeignAndExpired(t *testing.T) {
	svc := NewJWTService("secret", 1)
	other := NewJWTService("other-secret", 1)
	token, _ := other.Generate(AdminSubject, "admin")
	if _, err := svc.Validate(token); err != ErrInvalidToken {
		t.Fatalf("foreign token: err = %v", err)
	}

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := svc.Generate(AdminSubject, "admin")
	if _, err := svc.Validate(expired); err != ErrInvalidToken {
		t.Fatalf("expired token: err = %v", err)
	}
	if _, err := svc.Validate("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("garbage token: err = %v", err)
	}
}

func TestAdminLogin(t *testing.T) {
	jwtSvc := NewJWTService("secret", 1)
	admin, err := NewAdminAuth("admin1234@", jwtSvc)
	if err != nil {
		t.Fatalf("NewAdminAuth: %v", err)
	}
	if _, err := admin.Login("wrong"); err != ErrInvalidPassword {
		t.Fatalf("wrong password: err = %v", err)
	}
	token, err := admin.Login("admin1234@")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := jwtSvc.Validate(token); err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if _, err := NewAdminAuth("", jwtSvc); err == nil {
		t.Fatal("expected error for empty password")
	}
}

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	admin, _ := NewAdminAuth("pw", NewJWTService("secret", 1))
	r := gin.New()
	r.POST("/api/admin/auth", NewHandler(admin, nil).Login)

	tests := []struct {
		body string
		want int
	}{
		{`{"password":"pw"}`, http.StatusOK},
		{`{"password":"nope"}`, http.StatusUnauthorized},
		{`{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/admin/auth", strings.NewReader(tt.body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.body, w.Code, tt.want)
		}
		if tt.want == http.StatusOK {
			var body struct {
				Data TokenResponse `json:"data"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Data.Token == "" {
				t.Fatalf("missing token: %s", w.Body.String())
			}
		}
		if tt.want == http.StatusUnauthorized && !strings.Contains(w.Body.String(), "Invalid password") {
			t.Fatalf("unexpected 401 body %s", w.Body.String())
		}
	}
}
