// Package handlers provides the HTTP control API of the video looper.
//
// It includes handlers for:
//   - Triggering one-shot playback (POST /api/play/{media})
//   - Player status and the play history
//   - A websocket feed of synchronizer events (/api/events)
//   - Health, readiness and version probes
//
// Handlers depend on the Controller and HistoryReader interfaces rather
// than on the player and history packages' concrete types, so tests can
// substitute fakes.
package handlers
