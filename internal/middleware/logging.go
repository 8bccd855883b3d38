package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"video-looper/internal/logging"
)

// accessWriter records what the access log reports about a response.
type accessWriter struct {
	http.ResponseWriter
	status  int
	bytes   int64
	written bool
}

func newAccessWriter(w http.ResponseWriter) *accessWriter {
	return &accessWriter{ResponseWriter: w, status: http.StatusOK}
}

func (aw *accessWriter) WriteHeader(code int) {
	if aw.written {
		return
	}
	aw.status = code
	aw.written = true
	aw.ResponseWriter.WriteHeader(code)
}

func (aw *accessWriter) Write(b []byte) (int, error) {
	aw.written = true
	n, err := aw.ResponseWriter.Write(b)
	aw.bytes += int64(n)
	return n, err
}

// Hijack lets the /api/events websocket upgrade through. The request is
// logged with status 101 once the stream ends.
func (aw *accessWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := aw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	conn, brw, err := h.Hijack()
	if err == nil && !aw.written {
		aw.status = http.StatusSwitchingProtocols
		aw.written = true
	}
	return conn, brw, err
}

func (aw *accessWriter) Unwrap() http.ResponseWriter {
	return aw.ResponseWriter
}

// w3cFields is the W3C Extended Log Format directive for the lines Logger
// writes.
const w3cFields = "#Fields: date time c-ip cs-username cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken"

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// Logger returns middleware writing one W3C access log line per request.
// Probe endpoints are left out unless logHealthChecks is set.
func Logger(logHealthChecks bool) func(http.Handler) http.Handler {
	var header sync.Once

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !logHealthChecks && healthCheckPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			aw := newAccessWriter(w)
			next.ServeHTTP(aw, r)

			header.Do(func() { logging.Println(w3cFields) })
			logging.Println(accessLine(r, aw.status, aw.bytes, start))
		})
	}
}

func accessLine(r *http.Request, status int, bytes int64, start time.Time) string {
	now := start.UTC()
	user, _, _ := r.BasicAuth()
	return fmt.Sprintf("%s %s %s %s %s %s %d %d %d",
		now.Format("2006-01-02 15:04:05"),
		w3cField(clientIP(r)),
		w3cField(user),
		w3cField(r.Method),
		w3cField(r.URL.Path),
		w3cField(r.URL.RawQuery),
		status,
		bytes,
		time.Since(start).Milliseconds(),
	)
}

// w3cField makes a client-supplied value safe for one log field: control
// characters go (line breaks become spaces), empty values become "-" and
// values with blanks or quotes are quoted.
func w3cField(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, s)
	if s == "" {
		return "-"
	}
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// clientIP prefers the first X-Forwarded-For hop, for a kiosk behind a
// reverse proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
