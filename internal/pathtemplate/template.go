// Package pathtemplate parses OpenAPI path templates such as "/pets/{petId}",
// converts them to chi route patterns and matches request paths against them.
package pathtemplate

import (
	"fmt"
	"regexp"
	"strings"
)

// Template is a parsed OpenAPI path template.
type Template struct {
	// raw is the OAS path template (e.g., "/pets/{petId}")
	raw string

	// pattern is the equivalent chi route pattern
	pattern string

	// shape is the template with every parameter name erased ("/pets/{}").
	// Two templates with the same shape route to the same host path.
	shape string

	// params are the OAS parameter names in order of appearance
	params []string

	// hostParams are the chi-safe parameter names, index-aligned with params
	hostParams []string

	// regex matches a request path and captures parameter values
	regex *regexp.Regexp
}

// Parse parses an OpenAPI path template.
//
// Returns an error if the template is empty, does not start with '/', has an
// unclosed or empty parameter, or repeats a parameter name.
func Parse(raw string) (*Template, error) {
	if raw == "" {
		return nil, fmt.Errorf("path template cannot be empty")
	}
	if raw[0] != '/' {
		return nil, fmt.Errorf("path template %q must start with '/'", raw)
	}

	var regexBuf, patternBuf, shapeBuf strings.Builder
	regexBuf.WriteString("^")

	t := &Template{raw: raw}
	seen := make(map[string]bool)

	i := 0
	for i < len(raw) {
		c := raw[i]
		if c != '{' {
			if strings.ContainsRune(`\.+*?()|[]{}^$`, rune(c)) {
				regexBuf.WriteByte('\\')
			}
			regexBuf.WriteByte(c)
			patternBuf.WriteByte(c)
			shapeBuf.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(raw[i:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unclosed path parameter at position %d in template %q", i, raw)
		}
		name := raw[i+1 : i+end]
		if name == "" {
			return nil, fmt.Errorf("empty path parameter at position %d in template %q", i, raw)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate path parameter %q in template %q", name, raw)
		}
		seen[name] = true

		hostName := hostParamName(name, len(t.params))
		t.params = append(t.params, name)
		t.hostParams = append(t.hostParams, hostName)

		// RFC 3986 path segments are separated by '/'
		regexBuf.WriteString("([^/]+)")
		patternBuf.WriteString("{" + hostName + "}")
		shapeBuf.WriteString("{}")

		i += end + 1
	}
	regexBuf.WriteString("$")

	regex, err := regexp.Compile(regexBuf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to compile path pattern for template %q: %w", raw, err)
	}

	t.regex = regex
	t.pattern = patternBuf.String()
	t.shape = shapeBuf.String()
	return t, nil
}

// hostParamName returns a chi-safe parameter name. chi treats ':' inside
// braces as a regexp delimiter, so anything outside [A-Za-z0-9_] is replaced.
func hostParamName(name string, index int) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.String() == name {
		return name
	}
	return fmt.Sprintf("%s_%d", b.String(), index)
}

// Raw returns the original OAS template.
func (t *Template) Raw() string { return t.raw }

// Pattern returns the chi route pattern.
func (t *Template) Pattern() string { return t.pattern }

// Shape returns the template with parameter names erased.
func (t *Template) Shape() string { return t.shape }

// Params returns the OAS parameter names in order of appearance.
func (t *Template) Params() []string { return t.params }

// HostParam returns the chi parameter name for the OAS parameter at index i.
func (t *Template) HostParam(i int) string { return t.hostParams[i] }

// Match matches a request path positionally against the template and returns
// the parameter values as they appear in path.
func (t *Template) Match(path string) (map[string]string, bool) {
	matches := t.regex.FindStringSubmatch(path)
	if matches == nil || len(matches) != len(t.params)+1 {
		return nil, false
	}

	params := make(map[string]string, len(t.params))
	for i, name := range t.params {
		params[name] = matches[i+1]
	}
	return params, true
}
