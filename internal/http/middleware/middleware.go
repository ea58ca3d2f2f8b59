package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"olympiad-tracker/internal/security"
)

type contextKey int

const claimsKey contextKey = iota

// ClaimsFromContext returns the verified token claims of the request, if any.
func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*security.Claims)
	return claims, ok
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logger logs one line per request.
func Logger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			entry := log.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start).String(),
			})
			if rec.status >= http.StatusInternalServerError {
				entry.Warn("request failed")
				return
			}
			entry.Info("request")
		})
	}
}

// Recover turns a panic in a handler into a 500 carrying the panic message.
func Recover(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					log.WithField("path", r.URL.Path).Errorf("panic: %v", p)
					writeError(w, http.StatusInternalServerError, fmt.Sprint(p))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RequireToken rejects requests without a valid token. The token is taken from
// the Authorization header, or from the session cookie when the header is absent.
func RequireToken(tokens *security.TokenIssuer, sessions *security.SessionStore) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := tokenFromRequest(r, sessions)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				if errors.Is(err, security.ErrTokenExpired) {
					writeError(w, http.StatusUnauthorized, "Token expired")
					return
				}
				writeError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request, sessions *security.SessionStore) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token, ok := sessions.Token(r); ok {
			return token, nil
		}
		return "", errors.New("Not authenticated")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", errors.New("Invalid Authorization header format")
	}
	return parts[1], nil
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
