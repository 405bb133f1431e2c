package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/gmailgate/internal/server"
)

func newGenerateDocsCmd() *cobra.Command {
	var (
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate HTTP API documentation",
		Long: `Generate markdown documentation for the HTTP API.
The endpoint list comes from the router itself, so the documentation
always matches the routes the server registers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if outputFile == "" {
				return writeAPIDocs(cmd.OutOrStdout())
			}

			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			if err := writeAPIDocs(f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write output file: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Documentation written to %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func writeAPIDocs(w io.Writer) error {
	var b strings.Builder

	b.WriteString("# gmailgate HTTP API\n\n")
	fmt.Fprintf(&b, "Version: %s\n\n", version)
	fmt.Fprintf(&b, "All endpoints accept and return JSON and require the `%s` header.\n", server.APIKeyHeader)
	b.WriteString("Failures answer `{\"error\": \"...\"}` with status 400 (invalid input), ")
	b.WriteString("401 (missing or wrong API key) or 500 (Gmail or credential errors).\n\n")
	b.WriteString("`GET /` lists the endpoints without authentication. ")
	b.WriteString("`GET /healthz`, `GET /readyz` and `GET /healthz/detailed` are health probes.\n\n")

	b.WriteString("| Endpoint | Description |\n")
	b.WriteString("|---|---|\n")
	for _, ep := range server.Endpoints() {
		fmt.Fprintf(&b, "| `%s %s` | %s |\n", ep.Method, ep.Path, ep.Summary)
	}
	b.WriteString("\n")

	for _, ep := range server.Endpoints() {
		fmt.Fprintf(&b, "## %s %s\n\n", ep.Method, ep.Path)
		fmt.Fprintf(&b, "%s\n\n", ep.Summary)
		if ep.Request != "" {
			fmt.Fprintf(&b, "Request: `%s`\n\n", ep.Request)
		} else {
			b.WriteString("Request: empty body\n\n")
		}
		fmt.Fprintf(&b, "Response: `%s`\n\n", ep.Response)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
