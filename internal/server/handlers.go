package server

import (
	"errors"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/teemow/gmailgate/internal/bulk"
	"github.com/teemow/gmailgate/internal/gmail"
	"github.com/teemow/gmailgate/internal/instrumentation"
	"github.com/teemow/gmailgate/internal/logging"
)

// DefaultSearchResults is the page size of /api/messages/search when the
// request does not set maxResults.
const DefaultSearchResults = 100

type indexResponse struct {
	Message   string   `json:"message"`
	Version   string   `json:"version"`
	Endpoints []string `json:"endpoints"`
}

type createLabelRequest struct {
	Name                  string `json:"name"`
	LabelListVisibility   string `json:"labelListVisibility"`
	MessageListVisibility string `json:"messageListVisibility"`
}

type searchRequest struct {
	Query      string `json:"query"`
	MaxResults *int64 `json:"maxResults"`
}

type messageRequest struct {
	MessageID string `json:"messageId"`
}

type labelRequest struct {
	MessageID string `json:"messageId"`
	LabelID   string `json:"labelId"`
}

type sendRequest struct {
	To      addressList `json:"to"`
	Cc      addressList `json:"cc"`
	Bcc     addressList `json:"bcc"`
	Subject string      `json:"subject"`
	Body    string      `json:"body"`
	IsHTML  bool        `json:"isHtml"`
	Raw     string      `json:"raw"`
}

type batchRequest struct {
	MessageIDs *[]string `json:"messageIds"`
}

type queryRequest struct {
	Query *string `json:"query"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type sendResponse struct {
	Success  bool   `json:"success"`
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type batchDeleteResponse struct {
	Success      bool `json:"success"`
	DeletedCount int  `json:"deletedCount"`
	FailedCount  int  `json:"failedCount"`
	Total        int  `json:"total"`
}

type batchTrashResponse struct {
	Success      bool `json:"success"`
	TrashedCount int  `json:"trashedCount"`
	FailedCount  int  `json:"failedCount"`
	Total        int  `json:"total"`
}

type deleteByQueryResponse struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deletedCount"`
	FailedCount  int    `json:"failedCount"`
	Total        int    `json:"total"`
	Query        string `json:"query"`
	Complete     bool   `json:"complete"`
	StopReason   string `json:"stopReason,omitempty"`
}

func (s *APIServer) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, indexResponse{
		Message:   "Gmail API Server",
		Version:   s.config.Version,
		Endpoints: apiEndpoints(),
	})
}

func (s *APIServer) handleListLabels(w http.ResponseWriter, r *http.Request) {
	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}
	labels, err := client.ListLabels(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

func (s *APIServer) handleCreateLabel(w http.ResponseWriter, r *http.Request) {
	var req createLabelRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Name == "" {
		s.fail(w, r, invalidf("name is required"))
		return
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}
	label, err := client.CreateLabel(r.Context(), gmail.LabelSpec{
		Name:                  req.Name,
		LabelListVisibility:   req.LabelListVisibility,
		MessageListVisibility: req.MessageListVisibility,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"label": label})
}

func (s *APIServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	maxResults := int64(DefaultSearchResults)
	if req.MaxResults != nil {
		if *req.MaxResults <= 0 {
			s.fail(w, r, invalidf("maxResults must be positive"))
			return
		}
		maxResults = *req.MaxResults
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}
	messages, err := client.SearchMessages(r.Context(), req.Query, maxResults)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *APIServer) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.MessageID == "" {
		s.fail(w, r, invalidf("messageId is required"))
		return
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}
	msg, err := client.GetMessage(r.Context(), req.MessageID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}

func (s *APIServer) handleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	email := &gmail.EmailMessage{
		To:      req.To,
		Cc:      req.Cc,
		Bcc:     req.Bcc,
		Subject: req.Subject,
		Body:    req.Body,
		IsHTML:  req.IsHTML,
	}
	if req.Raw == "" {
		// Rejected before any client is loaded.
		if err := email.Validate(); err != nil {
			s.fail(w, r, err)
			return
		}
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}

	var msg *gmailapi.Message
	var err error
	if req.Raw != "" {
		msg, err = client.SendRaw(r.Context(), req.Raw)
	} else {
		msg, err = client.SendEmail(r.Context(), email)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.logger.Info("message sent",
		logging.MessageID(msg.Id),
		logging.Recipients(email.To))
	writeJSON(w, http.StatusOK, sendResponse{Success: true, ID: msg.Id, ThreadID: msg.ThreadId})
}

func (s *APIServer) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.MessageID == "" {
		s.fail(w, r, invalidf("messageId is required"))
		return
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}
	if err := client.DeleteMessage(r.Context(), req.MessageID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "Message deleted"})
}

func (s *APIServer) handleBatchDelete(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runBatch(w, r, bulk.OperationDelete)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, batchDeleteResponse{
		Success:      true,
		DeletedCount: res.Succeeded,
		FailedCount:  res.Failed,
		Total:        res.Total,
	})
}

func (s *APIServer) handleBatchTrash(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runBatch(w, r, bulk.OperationTrash)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, batchTrashResponse{
		Success:      true,
		TrashedCount: res.Succeeded,
		FailedCount:  res.Failed,
		Total:        res.Total,
	})
}

func (s *APIServer) runBatch(w http.ResponseWriter, r *http.Request, op bulk.Operation) (*bulk.Result, bool) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if req.MessageIDs == nil {
		s.fail(w, r, invalidf("messageIds is required"))
		return nil, false
	}
	return s.runBulk(w, r, bulk.Request{Operation: op, IDs: *req.MessageIDs})
}

func (s *APIServer) handleDeleteByQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Query == nil {
		s.fail(w, r, invalidf("query is required"))
		return
	}

	res, ok := s.runBulk(w, r, bulk.Request{Operation: bulk.OperationDeleteByQuery, Query: *req.Query})
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, deleteByQueryResponse{
		Success:      true,
		DeletedCount: res.Succeeded,
		FailedCount:  res.Failed,
		Total:        res.Total,
		Query:        res.Query,
		Complete:     res.Complete,
		StopReason:   res.StopReason,
	})
}

// runBulk executes req on the server context instead of the request context:
// a client that hangs up does not abort deletions already under way, while
// server shutdown stops the run before its next chunk. The request span is
// carried over so the run stays in the request trace.
func (s *APIServer) runBulk(w http.ResponseWriter, r *http.Request, req bulk.Request) (*bulk.Result, bool) {
	if err := req.Validate(); err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return nil, false
	}

	logger := logging.WithRoute(s.logger, r.Pattern)
	exec := bulk.NewExecutor(client, s.config.Bulk, logger, s.metrics)
	ctx := trace.ContextWithSpan(s.serverContext.Context(), trace.SpanFromContext(r.Context()))
	res, err := exec.Execute(ctx, req)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	if err := res.Err(); err != nil {
		logging.WithOperation(logger, string(req.Operation)).Warn("bulk operation had failures",
			logging.Count(res.Failed),
			logging.Status(logging.StatusError),
			logging.Err(err))
	}
	return res, true
}

func (s *APIServer) handleAddLabel(w http.ResponseWriter, r *http.Request) {
	s.modifyLabel(w, r, true)
}

func (s *APIServer) handleRemoveLabel(w http.ResponseWriter, r *http.Request) {
	s.modifyLabel(w, r, false)
}

func (s *APIServer) modifyLabel(w http.ResponseWriter, r *http.Request, add bool) {
	var req labelRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.MessageID == "" || req.LabelID == "" {
		s.fail(w, r, invalidf("messageId and labelId are required"))
		return
	}

	client, ok := s.mailClient(w, r)
	if !ok {
		return
	}

	labels := []string{req.LabelID}
	var err error
	if add {
		_, err = client.ModifyLabels(r.Context(), req.MessageID, labels, nil)
	} else {
		_, err = client.ModifyLabels(r.Context(), req.MessageID, nil, labels)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// mailClient fetches the shared client and answers 500 when it cannot be
// loaded.
func (s *APIServer) mailClient(w http.ResponseWriter, r *http.Request) (MailClient, bool) {
	client, err := s.serverContext.MailClient(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return client, true
}

// fail maps err to a status code and writes the error envelope.
func (s *APIServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var verr *validationError
	if errors.As(err, &verr) || errors.Is(err, gmail.ErrInvalidMessage) || errors.Is(err, bulk.ErrInvalidRequest) {
		status = http.StatusBadRequest
	}

	logger := logging.WithRoute(s.logger, r.Pattern)
	if traceID := instrumentation.GetTraceID(r.Context()); traceID != "" {
		logger = logger.With(slog.String("trace_id", traceID))
	}

	// A message or label that does not exist is the caller's mistake even
	// though it is answered with 500.
	level := logger.Warn
	if status == http.StatusInternalServerError && !gmail.IsNotFound(err) {
		level = logger.Error
	}
	level("request failed", logging.Err(err))

	writeError(w, status, err.Error())
}
