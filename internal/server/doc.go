// Package server exposes the Gmail mailbox over a small JSON HTTP API.
//
// # Key Components
//
// ServerContext owns the process-wide Gmail client. The client is built on
// first use from the OAuth client file and the stored token; concurrent first
// requests share a single load and a failed load is retried by the next
// request.
//
// APIServer routes POST /api/* requests to the mail client and the bulk
// executor. Every /api route requires the shared secret in the x-api-key
// header. Responses are JSON: {"error": "..."} with 400, 401 or 500 on
// failure, a route-specific body on success.
//
// HealthChecker serves /healthz, /readyz and /healthz/detailed.
//
// MetricsServer exposes Prometheus metrics on a dedicated port.
package server
