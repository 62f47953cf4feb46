// Package httputil provides HTTP status, method and media-type helpers shared
// by the contract loader and the request pipeline.
package httputil

import (
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// HTTP Status Code Constants
const (
	StatusCodeLength     = 3   // Standard length of HTTP status codes (e.g., "200", "404")
	MinStatusCode        = 100 // Minimum valid HTTP status code
	MaxStatusCode        = 599 // Maximum valid HTTP status code
	WildcardChar         = 'X' // Wildcard character used in status code patterns (e.g., "2XX")
	MinWildcardFirstChar = '1' // Minimum first digit for wildcard patterns
	MaxWildcardFirstChar = '5' // Maximum first digit for wildcard patterns
	DefaultResponseKey   = "default"
)

// Media types the pipeline understands.
const (
	MediaTypeJSON      = "application/json"
	MediaTypeMultipart = "multipart/form-data"
	MediaTypeForm      = "application/x-www-form-urlencoded"
	MediaTypeSSE       = "text/event-stream"
	MediaTypeNDJSON    = "application/x-ndjson"
)

// Methods lists the HTTP methods an OpenAPI path item can declare, in the
// order route tables are built.
var Methods = []string{
	http.MethodGet,
	http.MethodPut,
	http.MethodPost,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodHead,
	http.MethodPatch,
	http.MethodTrace,
}

// ValidateStatusCode checks if a response key is valid according to OpenAPI.
// Valid values are "default", wildcard patterns 1XX-5XX and numeric codes 100-599.
func ValidateStatusCode(code string) bool {
	if code == DefaultResponseKey {
		return true
	}
	if len(code) != StatusCodeLength {
		return false
	}
	if code[1] == WildcardChar && code[2] == WildcardChar {
		return code[0] >= MinWildcardFirstChar && code[0] <= MaxWildcardFirstChar
	}
	statusCode, err := strconv.Atoi(code)
	return err == nil && statusCode >= MinStatusCode && statusCode <= MaxStatusCode
}

// ResponseKeys returns the response map keys to try for an actual status code,
// most specific first: the exact code, its "NXX" wildcard, then "default".
func ResponseKeys(status int) []string {
	exact := strconv.Itoa(status)
	if len(exact) != StatusCodeLength {
		return []string{exact, DefaultResponseKey}
	}
	return []string{exact, exact[:1] + "XX", DefaultResponseKey}
}

// AllowsBody reports whether a response with this status may carry a body.
func AllowsBody(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// MediaType returns the lower-cased media type of a Content-Type header value
// without parameters. Unparsable values fall back to the text before ';'.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsJSONMediaType reports whether mt is application/json or a +json suffix type.
func IsJSONMediaType(mt string) bool {
	mt = MediaType(mt)
	return mt == MediaTypeJSON || strings.HasSuffix(mt, "+json")
}

// IsStreamingMediaType reports whether mt denotes a streamed response body.
func IsStreamingMediaType(mt string) bool {
	switch MediaType(mt) {
	case MediaTypeSSE, MediaTypeNDJSON:
		return true
	}
	return false
}
