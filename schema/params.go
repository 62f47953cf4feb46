package schema

import (
	"strconv"
	"strings"

	"github.com/erraggy/oastools/parser"

	"github.com/erraggy/oasrouter/contract"
)

// ParamValidator validates one parameter location (query or path) of an
// operation against a synthetic object schema built from the declared
// parameters.
//
// Validation and coercion are a single step: declared parameters arrive as
// strings (or lists of strings for repeated query keys) and are converted to
// their declared types before the schema runs.
//
// | Location | Default Style | Default Explode |
// |----------|---------------|-----------------|
// | path     | simple        | false           |
// | query    | form          | true            |
type ParamValidator struct {
	location  string
	params    map[string]*paramSpec
	validator *Validator
}

// paramSpec is what coercion needs to know about one parameter.
type paramSpec struct {
	name    string
	style   string
	explode bool
	schema  map[string]any
}

// Location returns "query" or "path".
func (p *ParamValidator) Location() string { return p.location }

// Validator returns the compiled synthetic schema, or nil when it failed to
// compile. A ParamValidator without one still coerces.
func (p *ParamValidator) Validator() *Validator { return p.validator }

// ValidateAndCoerce coerces the declared parameters in values to their
// declared types, in place, and validates the result. Undeclared keys are
// left untouched and allowed. The returned map is values itself; on failure
// the error is a *ValidationError.
func (p *ParamValidator) ValidateAndCoerce(values map[string]any) (map[string]any, error) {
	if values == nil {
		values = make(map[string]any)
	}
	for name, spec := range p.params {
		raw, ok := values[name]
		if !ok {
			continue
		}
		values[name] = spec.coerce(raw)
	}
	if p.validator == nil {
		return values, nil
	}
	return values, p.validator.Validate(values)
}

// CompileParameters builds the ParamValidator for params declared in
// location. Returns nil when no parameter is declared there.
//
// A parameter schema that cannot be compiled (for example a ref to an
// unregistered schema) leaves the validator without a compiled schema; the
// error is returned alongside so the caller can log it.
func (r *Registry) CompileParameters(location string, params []*parser.Parameter) (*ParamValidator, error) {
	if len(params) == 0 {
		return nil, nil
	}

	pv := &ParamValidator{location: location, params: make(map[string]*paramSpec, len(params))}
	properties := make(map[string]any, len(params))
	var required []any

	for _, param := range params {
		tree, err := contract.SchemaTree(param.Schema)
		if err != nil {
			return pv, err
		}
		if tree == nil {
			tree = map[string]any{}
		}
		if location == "path" {
			// path parameters are always required
			required = append(required, param.Name)
		} else if param.Required {
			required = append(required, param.Name)
		}
		properties[param.Name] = tree

		rewritten, _ := RewriteRefs(tree)
		resolved := cloneTree(r.resolve(rewritten))
		if resolved != nil {
			if items, ok := resolved["items"].(map[string]any); ok {
				resolved["items"] = cloneTree(r.resolve(items))
			}
			Normalize(resolved)
		}
		pv.params[param.Name] = newParamSpec(location, param, resolved)
	}

	synthetic := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		synthetic["required"] = required
	}

	v, err := r.CompileTree(synthetic, false)
	if err != nil {
		return pv, err
	}
	pv.validator = v
	return pv, nil
}

func newParamSpec(location string, param *parser.Parameter, tree map[string]any) *paramSpec {
	spec := &paramSpec{name: param.Name, style: param.Style, schema: tree}
	switch location {
	case "query":
		if spec.style == "" {
			spec.style = "form"
		}
		spec.explode = spec.style == "form"
	default:
		if spec.style == "" {
			spec.style = "simple"
		}
	}
	if param.Explode != nil {
		spec.explode = *param.Explode
	}
	return spec
}

// coerce converts a raw string or []any of strings to the declared type.
// Values that cannot be converted are returned unchanged so the schema
// reports them.
func (s *paramSpec) coerce(raw any) any {
	if s.schema == nil {
		return raw
	}

	if schemaType(s.schema) == "array" {
		items, _ := s.schema["items"].(map[string]any)
		return coerceArray(s.split(raw), items)
	}

	switch v := raw.(type) {
	case string:
		return coerceValue(s.stripPrefix(v), s.schema)
	default:
		return raw
	}
}

// split turns a raw value into array parts according to style and explode.
func (s *paramSpec) split(raw any) []string {
	var values []string
	switch v := raw.(type) {
	case string:
		values = []string{v}
	case []any:
		for _, item := range v {
			if str, ok := item.(string); ok {
				values = append(values, str)
			}
		}
	case []string:
		values = v
	}

	switch s.style {
	case "spaceDelimited":
		return strings.Split(strings.Join(values, " "), " ")
	case "pipeDelimited":
		return strings.Split(strings.Join(values, "|"), "|")
	case "form":
		if s.explode {
			// explode=true: repeated keys (id=3&id=4&id=5)
			return values
		}
		// explode=false: comma-separated in one value (id=3,4,5)
		return splitEach(values, ",")
	case "label":
		return s.splitPrefixed(values, ".")
	case "matrix":
		return s.splitPrefixed(values, ";")
	default:
		// simple: comma-separated
		return splitEach(values, ",")
	}
}

// splitPrefixed handles the label (".a.b" / ".a,b") and matrix
// (";id=a;id=b" / ";id=a,b") path styles.
func (s *paramSpec) splitPrefixed(values []string, prefix string) []string {
	if len(values) == 0 {
		return nil
	}
	value := strings.TrimPrefix(values[0], prefix)
	if prefix == ";" {
		key := s.name + "="
		if s.explode {
			var parts []string
			for _, part := range strings.Split(value, ";") {
				parts = append(parts, strings.TrimPrefix(part, key))
			}
			return parts
		}
		value = strings.TrimPrefix(value, key)
		return strings.Split(value, ",")
	}
	if s.explode {
		return strings.Split(value, prefix)
	}
	return strings.Split(value, ",")
}

// stripPrefix removes label and matrix decoration from a primitive value.
func (s *paramSpec) stripPrefix(value string) string {
	switch s.style {
	case "label":
		return strings.TrimPrefix(value, ".")
	case "matrix":
		return strings.TrimPrefix(strings.TrimPrefix(value, ";"), s.name+"=")
	}
	return value
}

func splitEach(values []string, sep string) []string {
	var parts []string
	for _, v := range values {
		parts = append(parts, strings.Split(v, sep)...)
	}
	return parts
}

// coerceValue converts a string value to the Go type the schema declares.
func coerceValue(value string, tree map[string]any) any {
	switch schemaType(tree) {
	case "integer":
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	case "number":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	case "boolean":
		switch value {
		case "true":
			return true
		case "false":
			return false
		}
	}
	return value
}

// coerceArray converts string values to a slice of typed values.
func coerceArray(values []string, items map[string]any) []any {
	result := make([]any, len(values))
	for i, v := range values {
		result[i] = coerceValue(v, items)
	}
	return result
}
