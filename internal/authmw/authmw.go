// Package authmw guards the webhook endpoint with an optional shared bearer
// token, as sent by Alertmanager's http_config.authorization.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

const realm = `Bearer realm="phalerts"`

// Require returns middleware that rejects requests whose Authorization
// header does not carry token. An empty token disables the check.
// Comparison is constant-time.
func Require(token string, logger log.Logger) func(http.Handler) http.Handler {
	if token == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	if logger == nil {
		logger = log.Nop()
	}
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearer(r.Header.Get("Authorization"))
			if !ok {
				reject(w, r, logger, "missing or malformed authorization header")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
				reject(w, r, logger, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearer extracts the credentials of a Bearer authorization header. The
// scheme is case-insensitive.
func bearer(header string) (string, bool) {
	scheme, cred, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	cred = strings.TrimSpace(cred)
	return cred, cred != ""
}

func reject(w http.ResponseWriter, r *http.Request, logger log.Logger, reason string) {
	logger.Warn(r.Context(), "rejected unauthenticated request",
		"reason", reason,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	w.Header().Set("WWW-Authenticate", realm)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + reason + `"}` + "\n"))
}
