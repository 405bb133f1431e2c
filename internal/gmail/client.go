package gmail

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/gmailgate/internal/instrumentation"
)

// MaxBatchSize is the largest id list Gmail accepts in one batchDelete call.
const MaxBatchSize = 1000

const me = "me"

// ErrBatchTooLarge is returned when BatchDeleteMessages receives more than MaxBatchSize ids.
var ErrBatchTooLarge = fmt.Errorf("batch exceeds %d message ids", MaxBatchSize)

// Client wraps the Gmail Users service of the authenticated mailbox.
type Client struct {
	svc     *gmail.UsersService
	metrics *instrumentation.Metrics
}

// NewClient creates a Gmail client sending requests through httpClient,
// which must already carry the OAuth credentials. Extra options are mainly
// used by tests to point the client at a local endpoint.
func NewClient(ctx context.Context, httpClient *http.Client, metrics *instrumentation.Metrics, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &Client{svc: svc.Users, metrics: metrics}, nil
}

// observe runs fn inside a span and records its latency and outcome.
func (c *Client) observe(ctx context.Context, operation string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := instrumentation.StartGmailSpan(ctx, operation, attrs...)
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordGmailOperation(ctx, operation, status, time.Since(start))

	return err
}

// ListLabels returns every label of the mailbox.
func (c *Client) ListLabels(ctx context.Context) ([]*gmail.Label, error) {
	var labels []*gmail.Label
	err := c.observe(ctx, instrumentation.OperationListLabels, func(ctx context.Context) error {
		res, err := c.svc.Labels.List(me).Context(ctx).Do()
		if err != nil {
			return err
		}
		labels = res.Labels
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	if labels == nil {
		labels = []*gmail.Label{}
	}
	return labels, nil
}

// LabelSpec describes a label to create.
type LabelSpec struct {
	Name                  string
	LabelListVisibility   string
	MessageListVisibility string
}

// Label visibility defaults used when a LabelSpec leaves them empty.
const (
	DefaultLabelListVisibility   = "labelShow"
	DefaultMessageListVisibility = "show"
)

// CreateLabel creates a user label.
func (c *Client) CreateLabel(ctx context.Context, spec LabelSpec) (*gmail.Label, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: label name is required", ErrInvalidMessage)
	}
	if spec.LabelListVisibility == "" {
		spec.LabelListVisibility = DefaultLabelListVisibility
	}
	if spec.MessageListVisibility == "" {
		spec.MessageListVisibility = DefaultMessageListVisibility
	}

	var label *gmail.Label
	err := c.observe(ctx, instrumentation.OperationCreateLabel, func(ctx context.Context) error {
		var err error
		label, err = c.svc.Labels.Create(me, &gmail.Label{
			Name:                  spec.Name,
			LabelListVisibility:   spec.LabelListVisibility,
			MessageListVisibility: spec.MessageListVisibility,
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create label %q: %w", spec.Name, err)
	}
	return label, nil
}

// SearchMessages returns up to maxResults message references (id and thread
// id only) matching a Gmail search query. It reads a single result page.
func (c *Client) SearchMessages(ctx context.Context, query string, maxResults int64) ([]*gmail.Message, error) {
	var messages []*gmail.Message
	err := c.observe(ctx, instrumentation.OperationSearch, func(ctx context.Context) error {
		call := c.svc.Messages.List(me).Q(query).Context(ctx)
		if maxResults > 0 {
			call = call.MaxResults(maxResults)
		}
		res, err := call.Do()
		if err != nil {
			return err
		}
		messages = res.Messages
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if messages == nil {
		messages = []*gmail.Message{}
	}
	return messages, nil
}

// SearchMessageIDs is SearchMessages reduced to the message ids.
func (c *Client) SearchMessageIDs(ctx context.Context, query string, maxResults int64) ([]string, error) {
	messages, err := c.SearchMessages(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// GetMessage retrieves a message in full format.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*gmail.Message, error) {
	var msg *gmail.Message
	err := c.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(me, messageID).Format("full").Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, messageID))
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	return msg, nil
}

// SendRaw sends an already encoded (base64url RFC 2822) message.
func (c *Client) SendRaw(ctx context.Context, raw string) (*gmail.Message, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: raw message is required", ErrInvalidMessage)
	}

	var sent *gmail.Message
	err := c.observe(ctx, instrumentation.OperationSend, func(ctx context.Context) error {
		var err error
		sent, err = c.svc.Messages.Send(me, &gmail.Message{Raw: raw}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}
	return sent, nil
}

// SendEmail builds msg into a MIME message and sends it.
func (c *Client) SendEmail(ctx context.Context, msg *EmailMessage) (*gmail.Message, error) {
	raw, err := msg.Raw()
	if err != nil {
		return nil, err
	}
	return c.SendRaw(ctx, raw)
}

// DeleteMessage permanently deletes a message, bypassing the trash.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	err := c.observe(ctx, instrumentation.OperationDelete, func(ctx context.Context) error {
		return c.svc.Messages.Delete(me, messageID).Context(ctx).Do()
	}, attribute.String(instrumentation.SpanAttrMessageID, messageID))
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", messageID, err)
	}
	return nil
}

// TrashMessage moves a message to the trash.
func (c *Client) TrashMessage(ctx context.Context, messageID string) error {
	err := c.observe(ctx, instrumentation.OperationTrash, func(ctx context.Context) error {
		_, err := c.svc.Messages.Trash(me, messageID).Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, messageID))
	if err != nil {
		return fmt.Errorf("failed to trash message %s: %w", messageID, err)
	}
	return nil
}

// BatchDeleteMessages permanently deletes up to MaxBatchSize messages in one
// call. Gmail either accepts the whole list or rejects it.
func (c *Client) BatchDeleteMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	if len(messageIDs) == 0 {
		return nil
	}

	err := c.observe(ctx, instrumentation.OperationBatchDelete, func(ctx context.Context) error {
		return c.svc.Messages.BatchDelete(me, &gmail.BatchDeleteMessagesRequest{Ids: messageIDs}).Context(ctx).Do()
	}, attribute.Int(instrumentation.SpanAttrMessageCount, len(messageIDs)))
	if err != nil {
		return fmt.Errorf("failed to batch delete %d messages: %w", len(messageIDs), err)
	}
	return nil
}

// ModifyLabels adds and removes labels on a single message.
func (c *Client) ModifyLabels(ctx context.Context, messageID string, add, remove []string) (*gmail.Message, error) {
	if len(add) == 0 && len(remove) == 0 {
		return nil, fmt.Errorf("%w: no label changes requested", ErrInvalidMessage)
	}

	var msg *gmail.Message
	err := c.observe(ctx, instrumentation.OperationModifyLabels, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Modify(me, messageID, &gmail.ModifyMessageRequest{
			AddLabelIds:    add,
			RemoveLabelIds: remove,
		}).Context(ctx).Do()
		return err
	}, attribute.String(instrumentation.SpanAttrMessageID, messageID))
	if err != nil {
		return nil, fmt.Errorf("failed to modify labels of message %s: %w", messageID, err)
	}
	return msg, nil
}
