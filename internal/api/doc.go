// Package api hosts the HTTP server, middleware, and JSON handlers. Notable routes:
//   - POST /api/places/search runs a places search and returns normalized leads.
//   - POST /api/leads/bulk-save persists leads, skipping known place IDs.
//   - GET /api/leads lists saved leads, newest first.
//   - POST /api/places/export and GET /api/leads/export download CSV.
//   - GET /auth/signin, /auth/callback, /auth/session and POST /auth/signout
//     manage the Google sign-in session.
//   - GET /healthz, /readyz and /metrics for probes and Prometheus scraping.
//
// Every /api handler authorizes the caller through the auth.Gate before it
// touches the places API or the lead store.
package api
