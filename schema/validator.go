package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/erraggy/oasrouter/oaserrors"
)

// ErrSchemaValidation is matched by every *ValidationError.
var ErrSchemaValidation = errors.New("schema validation failed")

// Issue is a single validation failure.
type Issue struct {
	// Location is the JSON pointer of the offending value ("" for the root)
	Location string `json:"location"`
	// Keyword is the JSON pointer of the failing schema keyword
	Keyword string `json:"keyword,omitempty"`
	// Message describes the failure
	Message string `json:"message"`
}

// ValidationError is returned by Validator.Validate when the value does not
// satisfy the schema.
type ValidationError struct {
	Issues []Issue
	Cause  error
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		if e.Cause != nil {
			return e.Cause.Error()
		}
		return ErrSchemaValidation.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		location := issue.Location
		if !strings.HasPrefix(location, "#") {
			location = "#" + location
		}
		parts = append(parts, fmt.Sprintf("%s: %s", location, issue.Message))
	}
	return strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidation
}

// Is reports whether target is oaserrors.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == oaserrors.ErrValidation
}

// Issues extracts validation issues from an error returned by Validate.
func Issues(err error) []Issue {
	if err == nil {
		return nil
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Issues
	}
	return []Issue{{Message: err.Error()}}
}

// Validator is a compiled JSON Schema. It is immutable and safe for
// concurrent use.
type Validator struct {
	schema *jsonschema.Schema
	url    string
}

// Location returns the resource URL the validator was compiled from.
func (v *Validator) Location() string { return v.url }

// Validate validates value. value may be any JSON-encodable Go value; it is
// converted to the generic JSON model before validation and never modified.
func (v *Validator) Validate(value any) error {
	instance, err := toJSONValue(value)
	if err != nil {
		return &ValidationError{
			Issues: []Issue{{Message: fmt.Sprintf("value is not JSON-encodable: %v", err)}},
			Cause:  err,
		}
	}
	if err := v.schema.Validate(instance); err != nil {
		var schemaErr *jsonschema.ValidationError
		if errors.As(err, &schemaErr) {
			return &ValidationError{Issues: collectIssues(schemaErr), Cause: err}
		}
		return &ValidationError{Issues: []Issue{{Message: err.Error()}}, Cause: err}
	}
	return nil
}

func collectIssues(err *jsonschema.ValidationError) []Issue {
	var issues []Issue
	var walk func(*jsonschema.ValidationError)
	walk = func(node *jsonschema.ValidationError) {
		if node == nil {
			return
		}
		if len(node.Causes) == 0 {
			issues = append(issues, Issue{
				Location: strings.TrimSpace(node.InstanceLocation),
				Keyword:  strings.TrimSpace(node.KeywordLocation),
				Message:  strings.TrimSpace(node.Message),
			})
			return
		}
		for _, cause := range node.Causes {
			walk(cause)
		}
	}
	walk(err)
	return issues
}

// toJSONValue converts v into the value model the schema engine accepts:
// map[string]any, []any, string, bool, nil, float64 and json.Number.
// Integers become json.Number; anything else goes through encoding/json.
func toJSONValue(v any) (any, error) {
	switch typed := v.(type) {
	case nil, string, bool, float64, json.Number:
		return typed, nil
	case int:
		return json.Number(strconv.FormatInt(int64(typed), 10)), nil
	case int32:
		return json.Number(strconv.FormatInt(int64(typed), 10)), nil
	case int64:
		return json.Number(strconv.FormatInt(typed, 10)), nil
	case float32:
		return float64(typed), nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, value := range typed {
			converted, err := toJSONValue(value)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(typed))
		for i, value := range typed {
			converted, err := toJSONValue(value)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var out any
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}
}
