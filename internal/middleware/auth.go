package middleware

import (
	"net/http"

	"video-looper/internal/logging"

	"golang.org/x/crypto/bcrypt"
)

const authRealm = "video-looper"

// BasicAuth returns middleware requiring HTTP basic auth with a password
// matching the bcrypt hash. The user name is not checked. An empty hash
// disables authentication.
func BasicAuth(passwordHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if passwordHash == "" {
			return next
		}
		hash := []byte(passwordHash)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, password, ok := r.BasicAuth()
			if !ok || bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
				if ok {
					logging.Warn("[http] authentication failed from %s", w3cField(clientIP(r)))
				}
				w.Header().Set("WWW-Authenticate", `Basic realm="`+authRealm+`", charset="UTF-8"`)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
