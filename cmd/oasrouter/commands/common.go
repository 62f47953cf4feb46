// Package commands provides the oasrouter CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"

	"github.com/erraggy/oasrouter"
)

// Output format constants
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidateOutputFormat validates an output format and returns an error if invalid.
func ValidateOutputFormat(format string) error {
	if format != FormatText && format != FormatJSON && format != FormatYAML {
		return fmt.Errorf("invalid format '%s'. Valid formats: %s, %s, %s", format, FormatText, FormatJSON, FormatYAML)
	}
	return nil
}

// RenderStructured writes data as JSON or YAML.
func RenderStructured(w io.Writer, data any, format string) error {
	var out []byte
	var err error

	switch format {
	case FormatJSON:
		out, err = json.MarshalIndent(data, "", "  ")
	case FormatYAML:
		out, err = yaml.Marshal(data)
	default:
		return fmt.Errorf("invalid format for structured output: %s", format)
	}
	if err != nil {
		return fmt.Errorf("marshaling to %s: %w", format, err)
	}

	if _, err := fmt.Fprintln(w, strings.TrimRight(string(out), "\n")); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// NewRootCommand creates the oasrouter root command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "oasrouter",
		Short: "Serve HTTP APIs from their OpenAPI contract",
		Long: `oasrouter compiles an OpenAPI 3.x contract into a route table that
validates parameters, bodies and security before any handler runs.

Configuration is read from ./oasrouter.yaml (or --config), OASROUTER_*
environment variables and flags, in increasing order of precedence.`,
		Version:       oasrouter.Version(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default ./oasrouter.yaml)")

	root.AddCommand(NewServeCommand())
	root.AddCommand(NewRoutesCommand())
	root.AddCommand(NewVersionCommand())
	return root
}

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), oasrouter.BuildInfo())
			return err
		},
	}
}

func configFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
