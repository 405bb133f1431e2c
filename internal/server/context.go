package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/gmailgate/internal/bulk"
	"github.com/teemow/gmailgate/internal/gmail"
	"github.com/teemow/gmailgate/internal/google"
	"github.com/teemow/gmailgate/internal/instrumentation"
	"github.com/teemow/gmailgate/internal/logging"
)

// ErrShutdown is returned when a client is requested after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// MailClient is the set of mailbox operations the HTTP routes use.
// *gmail.Client implements it.
type MailClient interface {
	bulk.Mailbox

	ListLabels(ctx context.Context) ([]*gmailapi.Label, error)
	CreateLabel(ctx context.Context, spec gmail.LabelSpec) (*gmailapi.Label, error)
	SearchMessages(ctx context.Context, query string, maxResults int64) ([]*gmailapi.Message, error)
	GetMessage(ctx context.Context, messageID string) (*gmailapi.Message, error)
	SendRaw(ctx context.Context, raw string) (*gmailapi.Message, error)
	SendEmail(ctx context.Context, msg *gmail.EmailMessage) (*gmailapi.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	ModifyLabels(ctx context.Context, messageID string, add, remove []string) (*gmailapi.Message, error)
}

var _ MailClient = (*gmail.Client)(nil)

// ClientLoader builds an authenticated mail client. ctx lives as long as
// the server, so the client may keep it for token refreshes.
type ClientLoader func(ctx context.Context) (MailClient, error)

// GmailLoader returns a ClientLoader that reads the OAuth client and stored
// token from paths and wraps them in a Gmail client.
func GmailLoader(paths google.Paths, metrics *instrumentation.Metrics) ClientLoader {
	return func(ctx context.Context) (MailClient, error) {
		handle, err := google.LoadCredentials(ctx, paths)
		if err != nil {
			return nil, err
		}
		return gmail.NewClient(ctx, handle.HTTPClient(ctx), metrics)
	}
}

const clientKey = "gmail"

// ServerContext holds the process-wide mail client. The client is created on
// first use; concurrent first callers share one load. A failed load is not
// cached, so the next request tries again.
type ServerContext struct {
	ctx     context.Context
	cancel  context.CancelFunc
	loader  ClientLoader
	logger  *slog.Logger
	metrics *instrumentation.Metrics

	group    singleflight.Group
	mu       sync.RWMutex
	client   MailClient
	shutdown bool
}

// NewServerContext creates a server context. Nothing is loaded until the
// first call to MailClient.
func NewServerContext(ctx context.Context, loader ClientLoader, logger *slog.Logger, metrics *instrumentation.Metrics) *ServerContext {
	if logger == nil {
		logger = logging.Discard()
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		loader:  loader,
		logger:  logger,
		metrics: metrics,
	}
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// MailClient returns the cached client, loading it if needed.
func (sc *ServerContext) MailClient(ctx context.Context) (MailClient, error) {
	sc.mu.RLock()
	client, shutdown := sc.client, sc.shutdown
	sc.mu.RUnlock()

	if shutdown {
		return nil, ErrShutdown
	}
	if client != nil {
		return client, nil
	}

	ch := sc.group.DoChan(clientKey, func() (interface{}, error) {
		return sc.load()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(MailClient), nil
	}
}

func (sc *ServerContext) load() (MailClient, error) {
	sc.mu.RLock()
	client := sc.client
	sc.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	client, err := sc.loader(sc.ctx)
	if err != nil {
		sc.metrics.RecordCredentialLoad(sc.ctx, instrumentation.StatusError)
		sc.logger.Error("failed to initialize Gmail client", logging.Err(err))
		return nil, fmt.Errorf("failed to initialize Gmail client: %w", err)
	}
	sc.metrics.RecordCredentialLoad(sc.ctx, instrumentation.StatusSuccess)

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.shutdown {
		return nil, ErrShutdown
	}
	sc.client = client
	sc.logger.Info("Gmail client initialized")
	return client, nil
}

// HasClient reports whether a client has been loaded.
func (sc *ServerContext) HasClient() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.client != nil
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown drops the cached client and cancels the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.client = nil
	sc.cancel()
	return nil
}
