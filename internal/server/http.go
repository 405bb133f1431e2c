package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/gmailgate/internal/instrumentation"
	"github.com/teemow/gmailgate/internal/logging"
)

// route is one authenticated API endpoint.
type route struct {
	path     string
	summary  string
	request  string
	response string
	handler  func(*APIServer) http.HandlerFunc
}

// apiRoutes lists every /api endpoint. All of them are POST.
var apiRoutes = []route{
	{
		path:     "/api/labels/list",
		summary:  "List all labels of the mailbox.",
		response: `{"labels": [...]}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleListLabels },
	},
	{
		path:     "/api/labels/create",
		summary:  "Create a user label.",
		request:  `{"name", "labelListVisibility"?, "messageListVisibility"?}`,
		response: `{"label": {...}}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleCreateLabel },
	},
	{
		path:     "/api/messages/search",
		summary:  "Search messages with a Gmail query. maxResults defaults to 100.",
		request:  `{"query", "maxResults"?}`,
		response: `{"messages": [{"id", "threadId"}]}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleSearch },
	},
	{
		path:     "/api/messages/get",
		summary:  "Fetch one message in full format.",
		request:  `{"messageId"}`,
		response: `{"message": {...}}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleGetMessage },
	},
	{
		path:     "/api/messages/send",
		summary:  "Send a message built from fields, or a base64url encoded RFC 2822 message.",
		request:  `{"to", "subject", "body", "cc"?, "bcc"?, "isHtml"?} or {"raw"}`,
		response: `{"success", "id", "threadId"}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleSend },
	},
	{
		path:     "/api/messages/delete",
		summary:  "Permanently delete one message.",
		request:  `{"messageId"}`,
		response: `{"success", "message"}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleDeleteMessage },
	},
	{
		path:     "/api/messages/batch-delete",
		summary:  "Permanently delete messages in chunks. Failed chunks are counted, not retried.",
		request:  `{"messageIds": [...]}`,
		response: `{"success", "deletedCount", "failedCount", "total"}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleBatchDelete },
	},
	{
		path:     "/api/messages/batch-trash",
		summary:  "Move messages to the trash one by one.",
		request:  `{"messageIds": [...]}`,
		response: `{"success", "trashedCount", "failedCount", "total"}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleBatchTrash },
	},
	{
		path:     "/api/messages/delete-by-query",
		summary:  "Delete every message matching a query, page by page, until none is left or a limit is hit.",
		request:  `{"query"}`,
		response: `{"success", "deletedCount", "failedCount", "total", "query", "complete", "stopReason"?}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleDeleteByQuery },
	},
	{
		path:     "/api/messages/add-label",
		summary:  "Add a label to a message.",
		request:  `{"messageId", "labelId"}`,
		response: `{"success"}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleAddLabel },
	},
	{
		path:     "/api/messages/remove-label",
		summary:  "Remove a label from a message.",
		request:  `{"messageId", "labelId"}`,
		response: `{"success"}`,
		handler:  func(s *APIServer) http.HandlerFunc { return s.handleRemoveLabel },
	},
}

// apiEndpoints returns the endpoint list advertised by GET /.
func apiEndpoints() []string {
	endpoints := make([]string, 0, len(apiRoutes))
	for _, rt := range apiRoutes {
		endpoints = append(endpoints, http.MethodPost+" "+rt.path)
	}
	return endpoints
}

// EndpointDoc describes one API endpoint for generated documentation.
type EndpointDoc struct {
	Method   string
	Path     string
	Summary  string
	Request  string
	Response string
}

// Endpoints documents every authenticated API endpoint in routing order.
func Endpoints() []EndpointDoc {
	docs := make([]EndpointDoc, 0, len(apiRoutes))
	for _, rt := range apiRoutes {
		docs = append(docs, EndpointDoc{
			Method:   http.MethodPost,
			Path:     rt.path,
			Summary:  rt.summary,
			Request:  rt.request,
			Response: rt.response,
		})
	}
	return docs
}

// APIServer serves the JSON API over plain HTTP.
type APIServer struct {
	config        Config
	serverContext *ServerContext
	health        *HealthChecker
	logger        *slog.Logger
	metrics       *instrumentation.Metrics
	httpServer    *http.Server
}

// NewAPIServer creates the API server. health may be nil, in which case the
// probe endpoints are not registered.
func NewAPIServer(sc *ServerContext, health *HealthChecker, config Config, logger *slog.Logger, metrics *instrumentation.Metrics) (*APIServer, error) {
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if logger == nil {
		logger = logging.Discard()
	}

	s := &APIServer{
		config:        config,
		serverContext: sc,
		health:        health,
		logger:        logger.With(slog.String("component", "api")),
		metrics:       metrics,
	}
	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		// No WriteTimeout: query-driven deletion may run for minutes and
		// is bounded by the executor's time budget instead.
		IdleTimeout: config.IdleTimeout,
	}
	return s, nil
}

// Handler returns the full middleware chain: tracing, CORS, request
// metrics, then the route mux.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	for _, rt := range apiRoutes {
		h := http.MaxBytesHandler(requireAPIKey(s.config.APIKey, rt.handler(s)), s.config.MaxBodyBytes)
		mux.Handle(http.MethodPost+" "+rt.path, h)
	}
	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	var handler http.Handler = observe(s.logger, s.metrics, mux)
	handler = cors(handler)
	return otelhttp.NewHandler(handler, "gmailgate",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}

// Start listens on the configured address and blocks until the server stops.
func (s *APIServer) Start() error {
	if !isLoopback(s.config.Addr) {
		s.logger.Warn("API is reachable from other hosts over plain HTTP; the API key is the only protection",
			slog.String("addr", s.config.Addr))
	}

	s.logger.Info("starting API server", slog.String("addr", s.config.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server. The server context is shut
// down first so that running bulk operations stop at the next chunk and
// answer with their partial result while connections drain.
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return errors.Join(s.serverContext.Shutdown(), s.httpServer.Shutdown(ctx))
}

// Addr returns the configured listen address.
func (s *APIServer) Addr() string {
	return s.config.Addr
}

// isLoopback reports whether addr binds only to a loopback interface.
// An empty host (":3000") binds every interface.
func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil || host == "" {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
