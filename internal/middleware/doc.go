// Package middleware provides HTTP middleware for the video looper's
// control API.
//
// It includes:
//   - Access logging in W3C Extended Log Format (date, time, client IP,
//     basic-auth user, method, path, query, status, bytes, milliseconds),
//     preceded once by a #Fields directive
//   - Prometheus request metrics labelled by route template
//   - HTTP basic authentication against a bcrypt password hash
//
// The response writer wrappers pass Hijack through so the /api/events
// websocket can upgrade behind them.
package middleware
