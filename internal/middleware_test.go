package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/johndosdos/cove/internal/auth"
)

func TestMiddleware(t *testing.T) {
	const secret = "middlewaresecret"
	userID := uuid.New()

	mint := func(t *testing.T, secret string, exp time.Duration) string {
		t.Helper()
		token, err := auth.MakeJWT(userID, secret, "cove", exp)
		if err != nil {
			t.Fatalf("%+v", err)
		}
		return token
	}

	tests := []struct {
		Name     string
		setup    func(t *testing.T, req *http.Request)
		wantUser uuid.UUID
	}{
		{"valid_JWT_cookie", func(t *testing.T, req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "jwt", Value: mint(t, secret, 5*time.Minute)})
		}, userID},
		{"valid_bearer_header", func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+mint(t, secret, 5*time.Minute))
		}, userID},
		{"expired_JWT", func(t *testing.T, req *http.Request) {
			req.AddCookie(&http.Cookie{Name: "jwt", Value: mint(t, secret, -1*time.Second)})
		}, uuid.Nil},
		{"wrong_secret", func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+mint(t, "othersecret", 5*time.Minute))
		}, uuid.Nil},
		{"empty_cookies", func(t *testing.T, req *http.Request) {}, uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
			rec := httptest.NewRecorder()
			tt.setup(t, req)

			isHandlerCalled := false
			gotUser := uuid.Nil
			nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				isHandlerCalled = true
				gotUser = auth.UserOrNil(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			Middleware(secret)(nextHandler).ServeHTTP(rec, req)

			if !isHandlerCalled {
				t.Error("nextHandler was supposed to be called")
			}
			if gotUser != tt.wantUser {
				t.Errorf("want user %s, got %s", tt.wantUser, gotUser)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("want %d, got %d", http.StatusOK, rec.Code)
			}
		})
	}
}
