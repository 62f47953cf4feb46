package contract

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/erraggy/oastools/parser"

	"github.com/erraggy/oasrouter/internal/httputil"
	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/oaserrors"
)

// Component reference prefixes.
const (
	SchemaRefPrefix      = "#/components/schemas/"
	ParameterRefPrefix   = "#/components/parameters/"
	RequestBodyRefPrefix = "#/components/requestBodies/"
	ResponseRefPrefix    = "#/components/responses/"
)

// maxRefHops bounds chains of component refs (a parameter ref pointing at
// another parameter ref, ...).
const maxRefHops = 16

// Contract is a loaded OAS 3.x document.
type Contract struct {
	doc     *parser.OAS3Document
	source  string
	version string
	logger  logging.Logger
}

// Load loads a contract from exactly one source option.
//
// Returns a *oaserrors.ContractError if the source is missing, cannot be
// parsed or is not an OAS 3.x document.
func Load(ctx context.Context, opts ...Option) (*Contract, error) {
	cfg := &config{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	switch n := cfg.sources(); {
	case n == 0:
		return nil, &oaserrors.ConfigError{Option: "source", Message: "no contract source provided (use WithFilePath, WithBytes, WithDocument or WithParseResult)"}
	case n > 1:
		return nil, &oaserrors.ConfigError{Option: "source", Value: n, Message: "only one contract source may be provided"}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := logging.OrNop(cfg.logger)

	if cfg.document != nil {
		return newContract(cfg.document, nameOr(cfg.sourceName, "document"), cfg.document.OpenAPI, logger)
	}

	parsed := cfg.parsed
	if parsed == nil {
		popts := []parser.Option{
			parser.WithValidateStructure(cfg.validateStructure),
			parser.WithLogger(parserLogger{l: logger}),
		}
		source := cfg.filePath
		if cfg.filePath != "" {
			popts = append(popts, parser.WithFilePath(cfg.filePath))
		} else {
			source = "bytes"
			popts = append(popts, parser.WithBytes(cfg.data))
		}

		var err error
		parsed, err = parser.ParseWithOptions(popts...)
		if err != nil {
			return nil, &oaserrors.ContractError{Source: nameOr(cfg.sourceName, source), Message: "failed to parse", Cause: err}
		}
		if cfg.validateStructure && len(parsed.Errors) > 0 {
			return nil, &oaserrors.ContractError{
				Source:  nameOr(cfg.sourceName, source),
				Message: fmt.Sprintf("%d structural error(s)", len(parsed.Errors)),
				Cause:   parsed.Errors[0],
			}
		}
		for _, w := range parsed.Warnings {
			logger.Warn("contract parse warning", "source", source, "warning", w)
		}
	}

	source := nameOr(cfg.sourceName, parsed.SourcePath)
	doc, ok := parsed.OAS3Document()
	if !ok {
		return nil, &oaserrors.ContractError{
			Source:  source,
			Message: fmt.Sprintf("unsupported OpenAPI version %q (only 3.x is supported)", parsed.Version),
		}
	}
	return newContract(doc, source, parsed.Version, logger)
}

func newContract(doc *parser.OAS3Document, source, version string, logger logging.Logger) (*Contract, error) {
	if doc == nil {
		return nil, &oaserrors.ContractError{Source: source, Message: "document is nil"}
	}
	if !strings.HasPrefix(version, "3.") {
		return nil, &oaserrors.ContractError{
			Source:  source,
			Message: fmt.Sprintf("unsupported OpenAPI version %q (only 3.x is supported)", version),
		}
	}
	return &Contract{doc: doc, source: source, version: version, logger: logger}, nil
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}

// Document returns the underlying parsed document.
func (c *Contract) Document() *parser.OAS3Document { return c.doc }

// Source returns the name the contract was loaded from.
func (c *Contract) Source() string { return c.source }

// Version returns the OpenAPI version string.
func (c *Contract) Version() string { return c.version }

// Templates returns the document's path templates in sorted order.
func (c *Contract) Templates() []string {
	templates := make([]string, 0, len(c.doc.Paths))
	for template := range c.doc.Paths {
		templates = append(templates, template)
	}
	sort.Strings(templates)
	return templates
}

// GlobalSecurity returns the document-level security requirements.
func (c *Contract) GlobalSecurity() []parser.SecurityRequirement {
	return c.doc.Security
}

// SchemaNames returns the names of all component schemas, sorted.
func (c *Contract) SchemaNames() []string {
	if c.doc.Components == nil {
		return nil
	}
	names := make([]string, 0, len(c.doc.Components.Schemas))
	for name := range c.doc.Components.Schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SecuritySchemeNames returns the names of the component security schemes,
// sorted.
func (c *Contract) SecuritySchemeNames() []string {
	if c.doc.Components == nil {
		return nil
	}
	names := make([]string, 0, len(c.doc.Components.SecuritySchemes))
	for name := range c.doc.Components.SecuritySchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SecurityScheme returns the named component security scheme.
func (c *Contract) SecurityScheme(name string) (*parser.SecurityScheme, bool) {
	if c.doc.Components == nil {
		return nil, false
	}
	s, ok := c.doc.Components.SecuritySchemes[name]
	return s, ok && s != nil
}

// ComponentSchema returns the named component schema as a JSON tree.
func (c *Contract) ComponentSchema(name string) (map[string]any, bool, error) {
	if c.doc.Components == nil {
		return nil, false, nil
	}
	s, ok := c.doc.Components.Schemas[name]
	if !ok || s == nil {
		return nil, false, nil
	}
	tree, err := SchemaTree(s)
	if err != nil {
		return nil, true, fmt.Errorf("components.schemas.%s: %w", name, err)
	}
	return tree, true, nil
}

// SchemaTree converts a parsed schema into a generic JSON tree
// (map[string]any / []any / float64 / string / bool / nil).
func SchemaTree(s *parser.Schema) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// Operation is one HTTP method under one path template.
type Operation struct {
	// Template is the OAS path template (e.g., "/pets/{petId}")
	Template string
	// Method is the upper-case HTTP method
	Method string
	// ID is the operationId; empty when the contract omits it
	ID string
	// Parameters are the merged and resolved parameters
	Parameters []*parser.Parameter
	// RequestBody is the resolved request body, or nil
	RequestBody *parser.RequestBody
	// Responses maps response keys ("200", "4XX", "default") to resolved responses
	Responses map[string]*parser.Response
	// Security is the effective security requirement list
	Security []parser.SecurityRequirement
	// Raw is the operation as written in the contract
	Raw *parser.Operation
}

// ParametersIn returns the operation's parameters declared in location.
func (op *Operation) ParametersIn(location string) []*parser.Parameter {
	var out []*parser.Parameter
	for _, p := range op.Parameters {
		if p.In == location {
			out = append(out, p)
		}
	}
	return out
}

// Operations returns the operations under template in method order
// (GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE).
//
// Component references that do not resolve are logged and dropped.
func (c *Contract) Operations(template string) []*Operation {
	item := c.doc.Paths[template]
	if item == nil {
		return nil
	}

	var ops []*Operation
	for _, method := range httputil.Methods {
		raw := operationFor(item, method)
		if raw == nil {
			continue
		}
		op := &Operation{
			Template:    template,
			Method:      method,
			ID:          raw.OperationID,
			Parameters:  c.mergeParameters(template, item.Parameters, raw.Parameters),
			RequestBody: c.resolveRequestBody(template, method, raw.RequestBody),
			Responses:   c.resolveResponses(template, method, raw.Responses),
			Security:    c.effectiveSecurity(raw),
			Raw:         raw,
		}
		ops = append(ops, op)
	}
	return ops
}

func operationFor(item *parser.PathItem, method string) *parser.Operation {
	switch method {
	case "GET":
		return item.Get
	case "PUT":
		return item.Put
	case "POST":
		return item.Post
	case "DELETE":
		return item.Delete
	case "OPTIONS":
		return item.Options
	case "HEAD":
		return item.Head
	case "PATCH":
		return item.Patch
	case "TRACE":
		return item.Trace
	}
	return nil
}

// effectiveSecurity returns the operation's own list when it declares one,
// even an empty one, and the global list otherwise.
func (c *Contract) effectiveSecurity(op *parser.Operation) []parser.SecurityRequirement {
	if op.Security != nil {
		return op.Security
	}
	return c.doc.Security
}

// mergeParameters merges path-level parameters with operation-level ones.
// Operation parameters override path parameters with the same name and
// location; declaration order is preserved.
func (c *Contract) mergeParameters(template string, pathParams, opParams []*parser.Parameter) []*parser.Parameter {
	var merged []*parser.Parameter
	index := make(map[string]int)

	add := func(p *parser.Parameter) {
		resolved := c.resolveParameter(template, p)
		if resolved == nil {
			return
		}
		key := resolved.In + ":" + resolved.Name
		if i, ok := index[key]; ok {
			merged[i] = resolved
			return
		}
		index[key] = len(merged)
		merged = append(merged, resolved)
	}

	for _, p := range pathParams {
		add(p)
	}
	for _, p := range opParams {
		add(p)
	}
	return merged
}

func (c *Contract) resolveParameter(template string, p *parser.Parameter) *parser.Parameter {
	for hops := 0; p != nil && p.Ref != ""; hops++ {
		ref := p.Ref
		var next *parser.Parameter
		if hops < maxRefHops && strings.HasPrefix(ref, ParameterRefPrefix) && c.doc.Components != nil {
			next = c.doc.Components.Parameters[strings.TrimPrefix(ref, ParameterRefPrefix)]
		}
		if next == nil {
			c.logger.Warn("unresolved parameter reference", "template", template,
				"error", &oaserrors.ReferenceError{Ref: ref, Kind: "parameters", Message: "not found"})
			return nil
		}
		p = next
	}
	return p
}

func (c *Contract) resolveRequestBody(template, method string, rb *parser.RequestBody) *parser.RequestBody {
	for hops := 0; rb != nil && rb.Ref != ""; hops++ {
		ref := rb.Ref
		var next *parser.RequestBody
		if hops < maxRefHops && strings.HasPrefix(ref, RequestBodyRefPrefix) && c.doc.Components != nil {
			next = c.doc.Components.RequestBodies[strings.TrimPrefix(ref, RequestBodyRefPrefix)]
		}
		if next == nil {
			c.logger.Warn("unresolved request body reference", "template", template, "method", method,
				"error", &oaserrors.ReferenceError{Ref: ref, Kind: "requestBodies", Message: "not found"})
			return nil
		}
		rb = next
	}
	return rb
}

func (c *Contract) resolveResponses(template, method string, responses *parser.Responses) map[string]*parser.Response {
	out := make(map[string]*parser.Response)
	if responses == nil {
		return out
	}

	add := func(key string, r *parser.Response) {
		if !httputil.ValidateStatusCode(key) {
			return
		}
		if resolved := c.resolveResponse(template, method, r); resolved != nil {
			out[key] = resolved
		}
	}

	for key, r := range responses.Codes {
		if key != httputil.DefaultResponseKey {
			key = strings.ToUpper(key)
		}
		add(key, r)
	}
	if responses.Default != nil {
		add(httputil.DefaultResponseKey, responses.Default)
	}
	return out
}

func (c *Contract) resolveResponse(template, method string, r *parser.Response) *parser.Response {
	for hops := 0; r != nil && r.Ref != ""; hops++ {
		ref := r.Ref
		var next *parser.Response
		if hops < maxRefHops && strings.HasPrefix(ref, ResponseRefPrefix) && c.doc.Components != nil {
			next = c.doc.Components.Responses[strings.TrimPrefix(ref, ResponseRefPrefix)]
		}
		if next == nil {
			c.logger.Warn("unresolved response reference", "template", template, "method", method,
				"error", &oaserrors.ReferenceError{Ref: ref, Kind: "responses", Message: "not found"})
			return nil
		}
		r = next
	}
	return r
}
