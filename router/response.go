package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/erraggy/oasrouter/internal/httputil"
)

const contentTypeText = "text/plain; charset=utf-8"

// Response is implemented by response types.
// All response helpers return types that implement this interface.
type Response interface {
	// StatusCode returns the HTTP status code.
	StatusCode() int

	// Headers returns the HTTP headers to include in the response.
	Headers() http.Header

	// Body returns the response body (may be nil for no-content responses).
	Body() any

	// WriteTo writes the response to the ResponseWriter.
	WriteTo(w http.ResponseWriter) error
}

// BasicResponse is the Response returned by the helpers in this package.
type BasicResponse struct {
	status int
	header http.Header
	body   any
	encode func(w io.Writer, body any) error
}

// StatusCode implements Response.
func (r *BasicResponse) StatusCode() int { return r.status }

// Headers implements Response.
func (r *BasicResponse) Headers() http.Header { return r.header }

// Body implements Response.
func (r *BasicResponse) Body() any { return r.body }

// WriteTo implements Response.
func (r *BasicResponse) WriteTo(w http.ResponseWriter) error {
	for k, v := range r.header {
		w.Header()[k] = v
	}
	w.WriteHeader(r.status)
	if r.body == nil || r.encode == nil || !httputil.AllowsBody(r.status) {
		return nil
	}
	return r.encode(w, r.body)
}

// Header sets a response header and returns the response for chaining.
//
//	return router.JSON(http.StatusCreated, pet).Header("Location", "/pets/1"), nil
func (r *BasicResponse) Header(key, value string) *BasicResponse {
	r.header.Set(key, value)
	return r
}

func newResponse(status int, contentType string, body any, encode func(io.Writer, any) error) *BasicResponse {
	header := make(http.Header)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &BasicResponse{status: status, header: header, body: body, encode: encode}
}

// JSON creates a JSON response with the given status and body.
//
// Example:
//
//	return router.JSON(http.StatusOK, pets), nil
func JSON(status int, body any) *BasicResponse {
	return newResponse(status, httputil.MediaTypeJSON, body, func(w io.Writer, v any) error {
		if raw, ok := v.(json.RawMessage); ok {
			_, err := w.Write(raw)
			return err
		}
		return json.NewEncoder(w).Encode(v)
	})
}

// NoContent creates a 204 No Content response.
func NoContent() *BasicResponse {
	return newResponse(http.StatusNoContent, "", nil, nil)
}

// Text creates a plain text response.
func Text(status int, body string) *BasicResponse {
	return newResponse(status, contentTypeText, body, func(w io.Writer, v any) error {
		_, err := io.WriteString(w, v.(string))
		return err
	})
}

// Binary creates a response with raw bytes of the given content type.
// JSON content types are validated like JSON responses in strict mode.
func Binary(status int, contentType string, data []byte) *BasicResponse {
	return newResponse(status, contentType, data, func(w io.Writer, v any) error {
		_, err := w.Write(v.([]byte))
		return err
	})
}

// Stream creates a streaming response. Streaming bodies are never validated.
//
// Example:
//
//	return router.Stream(http.StatusOK, "text/event-stream", events), nil
func Stream(status int, contentType string, reader io.Reader) *BasicResponse {
	return newResponse(status, contentType, reader, func(w io.Writer, v any) error {
		_, err := io.Copy(w, v.(io.Reader))
		return err
	})
}

// ResponseError carries a complete response through an error return.
// Security handlers return one to reply with their own rejection.
type ResponseError struct {
	Response Response
}

// NewResponseError wraps resp in a *ResponseError.
func NewResponseError(resp Response) *ResponseError {
	return &ResponseError{Response: resp}
}

// Error returns a human-readable error message.
func (e *ResponseError) Error() string {
	if e.Response == nil {
		return "response error"
	}
	return fmt.Sprintf("response error: status %d", e.Response.StatusCode())
}

// responseBodyValue returns the value the response validator checks and
// whether the response carries a body at all. Streaming bodies report
// streaming=true and are not read.
func responseBodyValue(resp Response) (value any, hasBody, streaming bool, err error) {
	contentType := resp.Headers().Get("Content-Type")
	body := resp.Body()
	if httputil.IsStreamingMediaType(contentType) {
		return nil, body != nil, true, nil
	}

	switch v := body.(type) {
	case nil:
		return nil, false, false, nil
	case io.Reader:
		return nil, true, true, nil
	case []byte:
		if len(v) == 0 {
			return nil, false, false, nil
		}
		if !httputil.IsJSONMediaType(contentType) {
			return nil, true, false, nil
		}
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil, true, false, err
		}
		return decoded, true, false, nil
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(v, &decoded); err != nil {
			return nil, true, false, err
		}
		return decoded, true, false, nil
	case string:
		if v == "" {
			return nil, false, false, nil
		}
		return v, true, false, nil
	default:
		return v, true, false, nil
	}
}
