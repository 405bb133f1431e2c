// Package instrumentation provides OpenTelemetry metrics and tracing for
// gmailgate.
//
// # Metrics
//
// HTTP:
//   - http_requests_total: requests by method, route and status
//   - http_request_duration_seconds: request latency
//
// Gmail API:
//   - gmail_api_operations_total: calls by operation and status
//   - gmail_api_operation_duration_seconds: call latency
//   - credential_loads_total: credential load attempts by result
//
// Bulk operations:
//   - bulk_operations_total: finished runs by operation and outcome
//   - bulk_items_total: message ids by operation and result
//   - bulk_chunk_duration_seconds: latency of one chunk
//   - bulk_query_pages_total: search pages fetched by query-driven deletion
//
// # Tracing
//
// Spans are created for Gmail API calls (gmail.<operation>) and for whole bulk
// operations (bulk.<operation>). Inbound HTTP requests are traced by otelhttp
// in the server package.
//
// # Configuration
//
// DefaultConfig reads:
//   - INSTRUMENTATION_ENABLED (default: true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default: prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default: 0.1)
//   - OTEL_SERVICE_NAME (default: gmailgate)
package instrumentation
