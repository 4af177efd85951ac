package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"qbwc-webhook-adapter/internal/auth"
	"qbwc-webhook-adapter/internal/contextkeys"
)

// BasicAuth is a Chi middleware that requires HTTP basic credentials.
// Without a configured account every request is refused.
func BasicAuth(logger *slog.Logger, realm string, creds auth.Credentials) func(next http.Handler) http.Handler {
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !creds.Enabled() {
				logger.Error("Write API credentials are not configured, refusing request", "path", r.URL.Path)
				http.Error(w, "API access is not configured", http.StatusServiceUnavailable)
				return
			}

			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", challenge)
				http.Error(w, "Missing credentials", http.StatusUnauthorized)
				return
			}
			if !creds.Check(username, password) {
				logger.Warn("Invalid API credentials received", "username", username, "remote_addr", r.RemoteAddr)
				w.Header().Set("WWW-Authenticate", challenge)
				http.Error(w, "Invalid credentials", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.UsernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CaptureBody reads the request body up to limit bytes and stores it in
// the context under contextkeys.RequestBodyKey, restoring r.Body so the
// next handler can still read it.
func CaptureBody(logger *slog.Logger, limit int64) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
					return
				}
				logger.Error("Failed to read request body", "error", err)
				http.Error(w, "Cannot read request body", http.StatusBadRequest)
				return
			}
			r.Body.Close()

			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			ctx := context.WithValue(r.Context(), contextkeys.RequestBodyKey, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
