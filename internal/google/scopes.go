package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultScopes are the OAuth scopes the stored token is expected to carry.
//
// The full mail scope is required for permanent deletion (Messages.Delete and
// Messages.BatchDelete); gmail.modify alone only permits trashing.
var DefaultScopes = []string{
	gmail.MailGoogleComScope,
	gmail.GmailModifyScope,
	gmail.GmailLabelsScope,
	gmail.GmailSendScope,
}
