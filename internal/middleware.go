package internal

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/johndosdos/cove/internal/auth"
)

// Middleware validates the client's JWT. The token is read from the "jwt"
// cookie or a bearer Authorization header. A valid token puts the user ID in
// the request context; requests without one continue anonymously and the
// handlers decide what an unknown user may do.
func Middleware(tokenSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := auth.ValidateJWT(token, tokenSecret)
			if err != nil {
				slog.DebugContext(r.Context(), "ignoring invalid token",
					"path", r.URL.Path,
					"error", err)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if c, err := r.Cookie("jwt"); err == nil && c.Value != "" {
		return c.Value
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
