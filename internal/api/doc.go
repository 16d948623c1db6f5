// Package api implements the HTTP REST API and WebSocket server for the
// Venstar bridge.
//
// This package provides:
//   - REST endpoints for listing thermostats, reading and writing
//     characteristics, submitting commands, and querying history
//   - WebSocket hub for real-time state change broadcasts
//   - JWT bearer verification with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Prometheus scrape endpoint at /metrics
//
// # Architecture
//
// The API server is a second front door onto the same controllers the MQTT
// command path uses. Writes go through the bridge, so they are serialized
// with polls and confirmed by a fresh snapshot before the response returns.
// State changes reach WebSocket clients through a bridge listener.
//
// # Security
//
// Tokens are minted elsewhere; the server only verifies HS256 signatures and
// the configured issuer. With no secret configured every route is open.
// WebSocket connections use single-use tickets so tokens never appear in URLs.
package api
