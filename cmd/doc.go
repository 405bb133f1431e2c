// Package cmd implements the command-line interface for gmailgate.
//
// This package provides the following commands:
//   - serve: Start the HTTP API server in front of the Gmail mailbox
//   - version: Display version information
//   - generate-docs: Generate markdown documentation for the HTTP API
package cmd
