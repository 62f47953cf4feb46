package router

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/erraggy/oasrouter/internal/httputil"
)

// Request carries everything the pipeline extracted from one HTTP request.
// It is created fresh per request and never shared.
type Request struct {
	// HTTPRequest is the original HTTP request. Its body has already been
	// consumed when the operation declares a request body.
	HTTPRequest *http.Request

	// Method is the upper-case HTTP method.
	Method string

	// URL is the request URL.
	URL *url.URL

	// Header is the request header.
	Header http.Header

	// PathParams contains the path parameters, coerced to their declared
	// types (e.g. int64 for integer parameters).
	PathParams map[string]any

	// QueryParams contains the query parameters. Declared parameters are
	// coerced to their declared types; undeclared ones are strings, or
	// []any of strings when repeated.
	QueryParams map[string]any

	// Cookies maps cookie names to values. Malformed cookies are skipped.
	Cookies map[string]string

	// Body is the parsed request body: the decoded JSON value, or a
	// map[string]any for form and multipart bodies. Nil when the operation
	// declares no body the pipeline can parse.
	Body any

	// RawBody is the raw request body bytes, when the body was read.
	RawBody []byte

	// ContentType is the media type of the request body, without parameters.
	ContentType string

	// RequestID is the X-Request-ID of the request, generated when absent.
	RequestID string

	// OperationID is the operationId of the matched operation.
	OperationID string

	// MatchedPath is the OpenAPI path template that matched (e.g. "/pets/{petId}").
	MatchedPath string
}

// JSON decodes the request body into v. JSON bodies are decoded from the raw
// bytes; form and multipart bodies are re-encoded from the parsed field map.
func (r *Request) JSON(v any) error {
	if httputil.IsJSONMediaType(r.ContentType) && len(r.RawBody) > 0 {
		return json.Unmarshal(r.RawBody, v)
	}
	if r.Body == nil {
		return errors.New("router: request has no body")
	}
	data, err := json.Marshal(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Form returns the string fields of a form or multipart body. Uploaded files
// are not included; use File for those.
func (r *Request) Form() url.Values {
	values := make(url.Values)
	if r.ContentType == httputil.MediaTypeForm && len(r.RawBody) > 0 {
		if parsed, err := url.ParseQuery(string(r.RawBody)); err == nil {
			return parsed
		}
	}
	fields, ok := r.Body.(map[string]any)
	if !ok {
		return values
	}
	for name, value := range fields {
		switch v := value.(type) {
		case string:
			values.Add(name, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					values.Add(name, s)
				}
			}
		}
	}
	return values
}

// File returns the uploaded files of a multipart field, in upload order.
func (r *Request) File(name string) []*UploadedFile {
	fields, ok := r.Body.(map[string]any)
	if !ok {
		return nil
	}
	switch v := fields[name].(type) {
	case *UploadedFile:
		return []*UploadedFile{v}
	case []any:
		var files []*UploadedFile
		for _, item := range v {
			if f, ok := item.(*UploadedFile); ok {
				files = append(files, f)
			}
		}
		return files
	}
	return nil
}

// UploadedFile is a file part of a multipart body. Schema validation sees it
// as an object with filename, contentType and size.
type UploadedFile struct {
	Filename    string
	ContentType string
	Size        int64

	header *multipart.FileHeader
}

// Open opens the uploaded content.
func (f *UploadedFile) Open() (multipart.File, error) {
	if f.header == nil {
		return nil, errors.New("router: uploaded file has no content")
	}
	return f.header.Open()
}

// Bytes reads the whole uploaded content.
func (f *UploadedFile) Bytes() ([]byte, error) {
	file, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(file)
}

// MarshalJSON implements json.Marshaler.
func (f *UploadedFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
	}{f.Filename, f.ContentType, f.Size})
}

// queryValues flattens a query string: a single value stays a string,
// repeated keys become []any in order.
func queryValues(query url.Values) map[string]any {
	out := make(map[string]any, len(query))
	for key, values := range query {
		if len(values) == 1 {
			out[key] = values[0]
			continue
		}
		list := make([]any, len(values))
		for i, v := range values {
			list[i] = v
		}
		out[key] = list
	}
	return out
}

// cookieValues parses the Cookie header. The first cookie of a name wins.
func cookieValues(r *http.Request) map[string]string {
	cookies := r.Cookies()
	out := make(map[string]string, len(cookies))
	for _, c := range cookies {
		if _, ok := out[c.Name]; !ok {
			out[c.Name] = c.Value
		}
	}
	return out
}

// formFields converts parsed form values and files into the field map the
// body validator sees. Repeated names collapse into ordered []any values.
func formFields(values map[string][]string, files map[string][]*multipart.FileHeader) map[string]any {
	out := make(map[string]any, len(values)+len(files))
	add := func(name string, v any) {
		switch existing := out[name].(type) {
		case nil:
			out[name] = v
		case []any:
			out[name] = append(existing, v)
		default:
			out[name] = []any{existing, v}
		}
	}

	for name, vs := range values {
		for _, v := range vs {
			add(name, v)
		}
	}
	for name, headers := range files {
		for _, h := range headers {
			add(name, &UploadedFile{
				Filename:    h.Filename,
				ContentType: h.Header.Get("Content-Type"),
				Size:        h.Size,
				header:      h,
			})
		}
	}
	return out
}

// readMultipart parses a multipart body held in memory.
func readMultipart(raw []byte, boundary string, maxMemory int64) (*multipart.Form, error) {
	if boundary == "" {
		return nil, http.ErrMissingBoundary
	}
	return multipart.NewReader(bytes.NewReader(raw), boundary).ReadForm(maxMemory)
}
