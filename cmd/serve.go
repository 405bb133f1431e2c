package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/gmailgate/internal/bulk"
	"github.com/teemow/gmailgate/internal/google"
	"github.com/teemow/gmailgate/internal/instrumentation"
	"github.com/teemow/gmailgate/internal/logging"
	"github.com/teemow/gmailgate/internal/server"
)

// MetricsConfig holds configuration for the metrics server.
type MetricsConfig struct {
	// Enabled determines whether the metrics server should be started.
	Enabled bool

	// Addr is the address for the metrics server (default: ":9090").
	Addr string
}

// serveOptions collects the serve flags.
type serveOptions struct {
	addr            string
	apiKey          string
	credentialsFile string
	tokenFile       string

	logLevel  string
	logFormat string
	debug     bool

	chunkSize        int
	pageSize         int64
	maxPages         int
	maxDuration      time.Duration
	maxFailureStreak int

	metrics MetricsConfig
}

// envOverrides maps flags to the environment variables that set them when
// the flag is not given on the command line.
var envOverrides = []struct {
	flag string
	env  string
}{
	{"addr", "GMAILGATE_ADDR"},
	{"api-key", "GMAILGATE_API_KEY"},
	{"credentials-file", "GMAILGATE_CREDENTIALS_FILE"},
	{"token-file", "GMAILGATE_TOKEN_FILE"},
	{"log-level", "LOG_LEVEL"},
	{"log-format", "LOG_FORMAT"},
	{"chunk-size", "GMAILGATE_CHUNK_SIZE"},
	{"page-size", "GMAILGATE_PAGE_SIZE"},
	{"max-pages", "GMAILGATE_MAX_PAGES"},
	{"max-duration", "GMAILGATE_MAX_DURATION"},
	{"max-failure-streak", "GMAILGATE_MAX_FAILURE_STREAK"},
	{"metrics-enabled", "METRICS_ENABLED"},
	{"metrics-addr", "METRICS_ADDR"},
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server.

Credentials:
  The OAuth client file (--credentials-file, default ~/.gmail-mcp/gcp-oauth.keys.json)
  and the stored token (--token-file, default ~/.gmail-mcp/credentials.json) are read
  on the first API request, not at startup.

API key:
  Every /api route requires the x-api-key header. Set the key with --api-key or
  GMAILGATE_API_KEY; otherwise a random key is generated and printed at startup.

Bulk deletion by query:
  Runs page by page until no message matches. It also stops after --max-pages
  pages, after --max-duration, or after --max-failure-streak pages in a row in
  which every chunk failed. The response then reports complete=false.

Every flag can also be set through the environment variable named in its help.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := applyEnvOverrides(cmd.Flags(), os.LookupEnv); err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return runServe(ctx, cmd.OutOrStdout(), opts)
		},
	}

	defaults := bulk.DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", server.DefaultAddr, "Listen address of the API server (GMAILGATE_ADDR)")
	f.StringVar(&opts.apiKey, "api-key", "", "Shared secret for the x-api-key header; generated when empty (GMAILGATE_API_KEY)")
	f.StringVar(&opts.credentialsFile, "credentials-file", "", "Google OAuth client file (GMAILGATE_CREDENTIALS_FILE)")
	f.StringVar(&opts.tokenFile, "token-file", "", "Stored OAuth token file (GMAILGATE_TOKEN_FILE)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error (LOG_LEVEL)")
	f.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format: text or json (LOG_FORMAT)")
	f.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	f.IntVar(&opts.chunkSize, "chunk-size", defaults.ChunkSize, "Message ids per Gmail call in bulk operations, at most 1000 (GMAILGATE_CHUNK_SIZE)")
	f.Int64Var(&opts.pageSize, "page-size", defaults.PageSize, "Messages fetched per search when deleting by query, at most 500 (GMAILGATE_PAGE_SIZE)")
	f.IntVar(&opts.maxPages, "max-pages", defaults.MaxIterations, "Search pages per delete-by-query run (GMAILGATE_MAX_PAGES)")
	f.DurationVar(&opts.maxDuration, "max-duration", defaults.MaxDuration, "Time budget of a delete-by-query run; negative disables it (GMAILGATE_MAX_DURATION)")
	f.IntVar(&opts.maxFailureStreak, "max-failure-streak", defaults.MaxFailureStreak, "Consecutive fully failed pages that stop a delete-by-query run (GMAILGATE_MAX_FAILURE_STREAK)")
	f.BoolVar(&opts.metrics.Enabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port (METRICS_ENABLED)")
	f.StringVar(&opts.metrics.Addr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address (METRICS_ADDR)")

	return cmd
}

// applyEnvOverrides sets every flag that was not given on the command line
// from its environment variable, if present.
func applyEnvOverrides(flags *pflag.FlagSet, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		if flags.Changed(o.flag) {
			continue
		}
		value, ok := lookup(o.env)
		if !ok || value == "" {
			continue
		}
		if err := flags.Set(o.flag, value); err != nil {
			return fmt.Errorf("invalid value %q for %s: %w", value, o.env, err)
		}
	}
	return nil
}

func (o serveOptions) bulkConfig() bulk.Config {
	return bulk.Config{
		ChunkSize:        o.chunkSize,
		PageSize:         o.pageSize,
		MaxIterations:    o.maxPages,
		MaxDuration:      o.maxDuration,
		MaxFailureStreak: o.maxFailureStreak,
	}
}

func (o serveOptions) credentialPaths() google.Paths {
	return google.Paths{
		CredentialsFile: o.credentialsFile,
		TokenFile:       o.tokenFile,
	}.WithDefaults()
}

func runServe(ctx context.Context, out io.Writer, opts serveOptions) error {
	logger, err := logging.New(os.Stderr, logging.Options{
		Level:  opts.logLevel,
		Format: opts.logFormat,
		Debug:  opts.debug,
	})
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	slog.SetDefault(logger)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("error during instrumentation shutdown", logging.Err(err))
		}
	}()

	var metricsServer *server.MetricsServer
	if opts.metrics.Enabled && provider.ServesPrometheus() {
		metricsServer, err = startMetricsServer(opts.metrics, provider, logger)
		if err != nil {
			return err
		}
	}

	paths := opts.credentialPaths()
	serverContext := server.NewServerContext(ctx, server.GmailLoader(paths, provider.Metrics()), logger, provider.Metrics())
	health := server.NewHealthChecker(serverContext, version)

	apiKey, generated := opts.apiKey, false
	if apiKey == "" {
		apiKey, generated = server.GenerateAPIKey(), true
	}

	apiServer, err := server.NewAPIServer(serverContext, health, server.Config{
		Addr:    opts.addr,
		APIKey:  apiKey,
		Version: version,
		Bulk:    opts.bulkConfig(),
	}, logger, provider.Metrics())
	if err != nil {
		return err
	}

	logger.Info("credential files",
		slog.String("credentials_file", paths.CredentialsFile),
		slog.String("token_file", paths.TokenFile))

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := apiServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	printBanner(out, apiServer.Addr(), apiKey, generated, metricsServer)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping HTTP server")
	case err := <-serverDone:
		if err != nil {
			runErr = fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	health.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()

	var errs []error
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("error shutting down HTTP server: %w", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("error shutting down metrics server: %w", err))
		}
	}
	if err := serverContext.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("error during server context shutdown: %w", err))
	}

	if runErr != nil {
		errs = append([]error{runErr}, errs...)
	}
	if len(errs) == 0 {
		logger.Info("HTTP server gracefully stopped")
	}
	return errors.Join(errs...)
}

func startMetricsServer(config MetricsConfig, provider *instrumentation.Provider, logger *slog.Logger) (*server.MetricsServer, error) {
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    config.Addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}

	// Use ready channel to confirm metrics server started successfully
	metricsReady := make(chan struct{})
	metricsErr := make(chan error, 1)
	go func() {
		if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			metricsErr <- err
		}
		close(metricsErr)
	}()

	select {
	case <-metricsReady:
		return metricsServer, nil
	case err := <-metricsErr:
		return nil, fmt.Errorf("metrics server failed to start: %w", err)
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("metrics server startup timed out")
	}
}

const bannerRule = "----------------------------------------"

// printBanner prints the address and API key for the operator.
func printBanner(w io.Writer, addr, apiKey string, generated bool, metricsServer *server.MetricsServer) {
	fmt.Fprintln(w, bannerRule)
	fmt.Fprintln(w, "Gmail API server started")
	fmt.Fprintln(w, bannerRule)
	fmt.Fprintf(w, "Server:  %s\n", displayURL(addr))
	if generated {
		fmt.Fprintf(w, "API key: %s (generated)\n", apiKey)
	} else {
		fmt.Fprintf(w, "API key: %s\n", logging.SanitizeToken(apiKey))
	}
	if metricsServer != nil {
		fmt.Fprintf(w, "Metrics: %s/metrics\n", displayURL(metricsServer.Addr()))
	}
	fmt.Fprintln(w, bannerRule)
	fmt.Fprintf(w, "Send the key in the %s header. Keep it secret.\n", server.APIKeyHeader)
	fmt.Fprintln(w, bannerRule)
}

// displayURL turns a listen address into a URL a local client can use.
func displayURL(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
