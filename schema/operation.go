package schema

import (
	"slices"
	"strings"

	"github.com/erraggy/oastools/parser"

	"github.com/erraggy/oasrouter/contract"
	"github.com/erraggy/oasrouter/internal/httputil"
	"github.com/erraggy/oasrouter/logging"
)

// bodyMediaTypes lists the request body media types that can be validated,
// in order of preference.
var bodyMediaTypes = []string{
	httputil.MediaTypeJSON,
	httputil.MediaTypeMultipart,
	httputil.MediaTypeForm,
}

// Validators is the compiled validator bundle of one operation. Any field may
// be nil (or empty) when the operation declares nothing for it.
type Validators struct {
	Query     *ParamValidator
	Path      *ParamValidator
	Body      *BodyValidator
	Responses map[string]*ResponseValidator
}

// BodyValidator validates a request body of the chosen media type.
type BodyValidator struct {
	// MediaType is the request body media type the schema was taken from
	MediaType string
	// Required mirrors requestBody.required
	Required bool
	// Validator is nil when the media type declares no schema or the schema
	// failed to compile; the body is then parsed but not validated.
	Validator *Validator
	// ArrayFields are the top-level properties declared as arrays
	ArrayFields map[string]bool
}

// WrapArrayFields turns single values of array properties in a form or
// multipart field map into one-element lists, in place. A field sent once
// carries no repetition to mark it as a list.
func (b *BodyValidator) WrapArrayFields(fields map[string]any) {
	for name := range b.ArrayFields {
		v, ok := fields[name]
		if !ok {
			continue
		}
		if _, isList := v.([]any); !isList {
			fields[name] = []any{v}
		}
	}
}

// ResponseValidator validates the body of one declared response.
type ResponseValidator struct {
	// Key is the response key it was compiled from ("200", "2XX", "default")
	Key string
	// Validator is nil when the response declares no JSON schema: the body
	// is not checked.
	Validator *Validator
	// HasContent reports whether the response declares any content at all.
	HasContent bool
}

// Response returns the response validator for an actual status code, trying
// the exact code, then its "NXX" wildcard, then "default".
func (v *Validators) Response(status int) (*ResponseValidator, bool) {
	if v == nil {
		return nil, false
	}
	for _, key := range httputil.ResponseKeys(status) {
		if rv, ok := v.Responses[key]; ok {
			return rv, true
		}
	}
	return nil, false
}

// CompileOperation compiles the validators for op.
//
// Compilation failures (typically a ref to an unregistered schema) are logged
// as warnings and the affected validator is treated as absent. Compiling the
// same operation twice yields equivalent validators.
func (r *Registry) CompileOperation(op *contract.Operation) *Validators {
	logger := r.logger.With("operationId", op.ID, "method", op.Method, "template", op.Template)
	v := &Validators{Responses: make(map[string]*ResponseValidator, len(op.Responses))}

	for _, location := range []string{"query", "path"} {
		pv, err := r.CompileParameters(location, op.ParametersIn(location))
		if err != nil {
			logger.Warn("parameter schema not compiled, validation skipped", "in", location, "error", err)
		}
		if location == "query" {
			v.Query = pv
		} else {
			v.Path = pv
		}
	}

	v.Body = r.compileBody(op.RequestBody, logger)

	for key, resp := range op.Responses {
		v.Responses[key] = r.compileResponse(key, resp, logger)
	}
	return v
}

func (r *Registry) compileBody(rb *parser.RequestBody, logger logging.Logger) *BodyValidator {
	if rb == nil || len(rb.Content) == 0 {
		return nil
	}

	for _, want := range bodyMediaTypes {
		for _, key := range sortedKeys(rb.Content) {
			if httputil.MediaType(key) != want {
				continue
			}
			media := rb.Content[key]
			bv := &BodyValidator{MediaType: want, Required: rb.Required}
			if media == nil || media.Schema == nil {
				return bv
			}
			tree, err := contract.SchemaTree(media.Schema)
			if err == nil {
				if want != httputil.MediaTypeJSON {
					bv.ArrayFields = r.arrayProperties(tree)
				}
				bv.Validator, err = r.CompileTree(tree, want == httputil.MediaTypeMultipart)
			}
			if err != nil {
				logger.Warn("request body schema not compiled, validation skipped", "mediaType", want, "error", err)
			}
			return bv
		}
	}
	return nil
}

// arrayProperties returns the top-level properties of an object schema whose
// type is array, following component refs.
func (r *Registry) arrayProperties(tree map[string]any) map[string]bool {
	rewritten, _ := RewriteRefs(tree)
	props, _ := r.resolve(rewritten)["properties"].(map[string]any)
	var arrays map[string]bool
	for name, prop := range props {
		node, ok := prop.(map[string]any)
		if !ok || schemaType(r.resolve(node)) != "array" {
			continue
		}
		if arrays == nil {
			arrays = make(map[string]bool)
		}
		arrays[name] = true
	}
	return arrays
}

func (r *Registry) compileResponse(key string, resp *parser.Response, logger logging.Logger) *ResponseValidator {
	rv := &ResponseValidator{Key: key, HasContent: resp != nil && len(resp.Content) > 0}
	if !rv.HasContent {
		return rv
	}

	var media *parser.MediaType
	for _, mt := range sortedKeys(resp.Content) {
		if httputil.IsJSONMediaType(mt) {
			media = resp.Content[mt]
			break
		}
	}
	if media == nil || media.Schema == nil {
		return rv
	}

	tree, err := contract.SchemaTree(media.Schema)
	if err == nil {
		rv.Validator, err = r.CompileTree(tree, false)
	}
	if err != nil {
		logger.Warn("response schema not compiled, validation skipped", "status", key, "error", err)
	}
	return rv
}

// sortedKeys returns content keys with application/json first and the rest
// sorted, so the chosen schema does not depend on map order.
func sortedKeys(content map[string]*parser.MediaType) []string {
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		aJSON := httputil.MediaType(a) == httputil.MediaTypeJSON
		bJSON := httputil.MediaType(b) == httputil.MediaTypeJSON
		switch {
		case aJSON && !bJSON:
			return -1
		case bJSON && !aJSON:
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}
