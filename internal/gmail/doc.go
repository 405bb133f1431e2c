// Package gmail is a thin client over the Gmail API for the single
// authenticated mailbox ("me").
//
// Every call takes a context, runs inside an OpenTelemetry span and is
// recorded in the Gmail API metrics. Errors returned by Google are wrapped
// with the operation that failed; StatusCode recovers the HTTP status.
//
// Example:
//
//	client, err := gmail.NewClient(ctx, handle.HTTPClient(ctx), provider.Metrics())
//	if err != nil {
//	    return err
//	}
//	ids, err := client.SearchMessageIDs(ctx, "from:newsletter@example.com", 500)
//	if err != nil {
//	    return err
//	}
//	err = client.BatchDeleteMessages(ctx, ids[:100])
package gmail
