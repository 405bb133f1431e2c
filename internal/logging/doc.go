// Package logging provides structured logging utilities for gmailgate.
//
// It builds the process-wide slog logger from command line options and
// centralizes attribute names so that log lines from the router, the Gmail
// client and the bulk executor share the same keys.
//
// Usage:
//
//	logger := logging.WithOperation(slog.Default(), "batch-delete")
//	logger.Info("bulk operation finished",
//	    logging.Count(250),
//	    logging.Status(logging.StatusSuccess))
//
// Secrets are never logged directly: API keys and tokens go through
// SanitizeToken, recipient addresses through AnonymizeEmail.
package logging
