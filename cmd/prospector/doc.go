// Package main hosts the prospector service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes the search, bulk-save, listing and CSV export endpoints plus the
//     Google sign-in flow. Every API handler checks the caller's signed session against the email allow-list
//     before calling the places API or the lead store.
//   - Search pipeline: internal/search pages through Places Text Search results (at most three pages, waiting
//     places.page_delay before each continuation token), dedupes by place ID, and optionally enriches the first
//     results with Place Details lookups fanned out through an errgroup.
//   - Persistence: leads are stored in Postgres (pgx) or a local SQLite file, keyed by place ID. Bulk saves
//     skip known IDs and report only the rows actually inserted. A lead-saved event is published to Pub/Sub
//     when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files (after an optional .env via godotenv);
//     zap provides structured logging; Prometheus metrics are exported on /metrics; OpenTelemetry spans wrap
//     upstream calls.
//
// Quick checklist:
//   - Required env vars: ALLOWED_EMAILS, GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET, NEXTAUTH_SECRET (session
//     signing), GOOGLE_MAPS_API_KEY, DATABASE_URL. PROSPECTOR_* keys override them.
//   - Run locally: go run ./cmd/prospector -config config.yaml, or set PROSPECTOR_DATABASE_BACKEND=sqlite with
//     DATABASE_URL pointing at a file path.
//   - The process drains in-flight requests for up to 10s on SIGTERM.
package main
