package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/erraggy/oastools/parser"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/erraggy/oasrouter/contract"
	"github.com/erraggy/oasrouter/internal/httputil"
	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/router"
)

// RouteRecord is one row of the routes listing.
type RouteRecord struct {
	Method    string `json:"method" yaml:"method"`
	Path      string `json:"path" yaml:"path"`
	Pattern   string `json:"pattern" yaml:"pattern"`
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Security  string `json:"security,omitempty" yaml:"security,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty" yaml:"synthetic,omitempty"`
}

// NewRoutesCommand creates the routes command.
func NewRoutesCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "List the routes compiled from a contract",
		Long: `Routes builds the route table of a contract and lists every route
with its operation and security requirements. Templates skipped while
building (conflicts, missing operationId) are reported as warnings.`,
		Example: `  oasrouter routes --spec openapi.yaml
  oasrouter routes --spec openapi.yaml --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := ValidateOutputFormat(format); err != nil {
				return err
			}
			cfg, err := LoadConfig(configFile(cmd), cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			zl, err := NewLogger(cfg.LogLevel, cfg.Development)
			if err != nil {
				return err
			}
			defer func() { _ = zl.Sync() }()

			records, err := ListRoutes(cmd.Context(), cfg.Spec, logging.NewZapAdapter(zl))
			if err != nil {
				return err
			}
			if format == FormatText {
				return RenderRouteTable(cmd.OutOrStdout(), records)
			}
			return RenderStructured(cmd.OutOrStdout(), records, format)
		},
	}

	flags := cmd.Flags()
	flags.String("spec", "", "path of the OpenAPI 3.x contract")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVarP(&format, "format", "f", FormatText, "output format: text, json, or yaml")
	return cmd
}

// ListRoutes builds the route table of the contract at spec and returns its
// routes ordered by path template, then method.
func ListRoutes(ctx context.Context, spec string, logger logging.Logger) ([]RouteRecord, error) {
	c, err := contract.Load(ctx, contract.WithFilePath(spec), contract.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	r, err := router.New(c, router.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	table, err := r.Routes(ctx)
	if err != nil {
		return nil, err
	}
	return Records(table), nil
}

// Records converts the entries of table into listing rows.
func Records(table *router.RouteTable) []RouteRecord {
	entries := table.Entries()
	records := make([]RouteRecord, 0, len(entries))
	for _, e := range entries {
		rec := RouteRecord{
			Method:    e.Method,
			Path:      e.Template,
			Pattern:   e.Pattern,
			Operation: e.OperationID,
			Synthetic: e.Synthetic,
		}
		if !e.Synthetic {
			rec.Security = describeSecurity(e.Security)
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Path != records[j].Path {
			return records[i].Path < records[j].Path
		}
		return methodRank(records[i].Method) < methodRank(records[j].Method)
	})
	return records
}

// describeSecurity renders requirements as "a+b(scope), c". Every listed
// requirement must pass.
func describeSecurity(requirements []parser.SecurityRequirement) string {
	if len(requirements) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(requirements))
	for _, req := range requirements {
		names := make([]string, 0, len(req))
		for name := range req {
			names = append(names, name)
		}
		sort.Strings(names)
		for i, name := range names {
			if scopes := req[name]; len(scopes) > 0 {
				names[i] = fmt.Sprintf("%s(%s)", name, strings.Join(scopes, " "))
			}
		}
		if len(names) == 0 {
			names = append(names, "anonymous")
		}
		parts = append(parts, strings.Join(names, "+"))
	}
	return strings.Join(parts, ", ")
}

// methodRank orders methods the way route tables are built; unknown methods
// sort last.
func methodRank(method string) int {
	for i, m := range httputil.Methods {
		if m == method {
			return i
		}
	}
	return len(httputil.Methods)
}

var methodColors = map[string]*color.Color{
	"GET":    color.New(color.FgGreen),
	"POST":   color.New(color.FgYellow),
	"PUT":    color.New(color.FgBlue),
	"PATCH":  color.New(color.FgCyan),
	"DELETE": color.New(color.FgRed),
}

// RenderRouteTable writes records as an aligned text table. Methods are
// colored unless color.NoColor is set; fatih/color derives that from stdout
// (and NO_COLOR) at startup, whatever w is.
func RenderRouteTable(w io.Writer, records []RouteRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No routes.")
		return err
	}

	title := cases.Title(language.English)
	headers := []string{"method", "path", "operation", "security"}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		op := rec.Operation
		if rec.Synthetic {
			op = "(preflight)"
		}
		rows = append(rows, []string{rec.Method, rec.Path, op, rec.Security})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		headers[i] = title.String(h)
		widths[i] = len(headers[i])
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	var sb strings.Builder
	writeRow(&sb, headers, widths, nil)
	for i, w := range widths {
		if i > 0 {
			sb.WriteString("  ")
		}
		sb.WriteString(strings.Repeat("-", w))
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(&sb, row, widths, methodColors[row[0]])
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRow(sb *strings.Builder, cells []string, widths []int, methodColor *color.Color) {
	for i, cell := range cells {
		if i > 0 {
			sb.WriteString("  ")
		}
		padded := cell
		if i < len(cells)-1 {
			padded = fmt.Sprintf("%-*s", widths[i], cell)
		}
		if i == 0 && methodColor != nil {
			padded = methodColor.Sprint(padded)
		}
		sb.WriteString(padded)
	}
	sb.WriteString("\n")
}
