package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/erraggy/oasrouter/internal/httputil"
	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/schema"
)

// headerRequestID is echoed on every response.
const headerRequestID = "X-Request-ID"

// pipeline serves one route entry. entry is nil for the preflight and
// not-found handlers, which only use the write helpers.
type pipeline struct {
	router *Router
	entry  *RouteEntry
}

func (r *Router) operationHandler(entry *RouteEntry) http.HandlerFunc {
	p := &pipeline{router: r, entry: entry}
	return p.serve
}

// serve runs the request through extraction, parameter validation, body
// validation, security, dispatch and (in strict mode) response validation.
// The first failing stage ends the request.
func (p *pipeline) serve(w http.ResponseWriter, hr *http.Request) {
	ctx := hr.Context()
	requestID := newRequestID(hr)
	entry := p.entry
	logger := p.router.cfg.logger.With("requestId", requestID, "operationId", entry.OperationID)

	req := &Request{
		HTTPRequest: hr,
		Method:      hr.Method,
		URL:         hr.URL,
		Header:      hr.Header,
		PathParams:  p.pathParams(hr),
		QueryParams: queryValues(hr.URL.Query()),
		Cookies:     cookieValues(hr),
		RequestID:   requestID,
		OperationID: entry.OperationID,
		MatchedPath: entry.Template,
	}

	if info := validateParams(entry.Validators.Query, req.QueryParams, "query"); info != nil {
		p.writeError(w, hr, requestID, *info)
		return
	}
	if info := validateParams(entry.Validators.Path, req.PathParams, "path"); info != nil {
		p.writeError(w, hr, requestID, *info)
		return
	}

	if bv := entry.Validators.Body; bv != nil {
		form, info := p.readBody(w, hr, req, bv, logger)
		if form != nil {
			defer func() { _ = form.RemoveAll() }()
		}
		if info != nil {
			p.writeError(w, hr, requestID, *info)
			return
		}
	}

	sec := NewSecurityContext()
	chain := securityChain{lookup: p.router.securityHandler}
	if resp, info := chain.evaluate(ctx, req, entry.Security, sec); resp != nil || info != nil {
		if resp != nil {
			p.write(w, hr, requestID, resp)
			return
		}
		if info.Status >= http.StatusInternalServerError {
			logger.Error("security evaluation failed", "message", info.Message)
		}
		p.writeError(w, hr, requestID, *info)
		return
	}

	handler := p.router.handler(entry.OperationID)
	if handler == nil {
		p.writeError(w, hr, requestID, ErrorInfo{
			Status:  http.StatusNotImplemented,
			Code:    ErrCodeNotImplemented,
			Message: fmt.Sprintf("no handler registered for operation %q", entry.OperationID),
		})
		return
	}

	resp, err := callHandler(ctx, handler, req, sec)
	if err != nil {
		logger.Error("handler failed", "error", err)
		p.writeError(w, hr, requestID, ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    ErrCodeHandler,
			Message: fmt.Sprintf("handler for operation %q failed: %v", entry.OperationID, err),
		})
		return
	}
	if resp == nil {
		resp = NoContent()
	}

	if p.router.cfg.strict {
		if info := p.checkResponse(resp, logger); info != nil {
			p.writeError(w, hr, requestID, *info)
			return
		}
	}

	p.write(w, hr, requestID, resp)
}

// validateParams coerces and validates one parameter location. values is
// coerced in place.
func validateParams(v *schema.ParamValidator, values map[string]any, location string) *ErrorInfo {
	if v == nil {
		return nil
	}
	if _, err := v.ValidateAndCoerce(values); err != nil {
		return &ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeValidation,
			Message: location + " parameters do not match the contract",
			Details: schema.Issues(err),
		}
	}
	return nil
}

// pathParams extracts the path parameters under their OpenAPI names. The chi
// route context is used when present; otherwise the template is matched
// against the request path.
func (p *pipeline) pathParams(hr *http.Request) map[string]any {
	tpl := p.entry.template
	out := make(map[string]any, len(tpl.Params()))
	if len(tpl.Params()) == 0 {
		return out
	}

	if rctx := chi.RouteContext(hr.Context()); rctx != nil && len(rctx.URLParams.Keys) > 0 {
		for i, name := range tpl.Params() {
			value := rctx.URLParam(tpl.HostParam(i))
			if hr.URL.RawPath != "" {
				if unescaped, err := url.PathUnescape(value); err == nil {
					value = unescaped
				}
			}
			out[name] = value
		}
		return out
	}

	if values, ok := tpl.Match(hr.URL.Path); ok {
		for name, value := range values {
			out[name] = value
		}
	}
	return out
}

// readBody reads, parses and validates the request body. The returned form
// must be cleaned up by the caller when non-nil.
func (p *pipeline) readBody(w http.ResponseWriter, hr *http.Request, req *Request, bv *schema.BodyValidator, logger logging.Logger) (*multipart.Form, *ErrorInfo) {
	limit := p.router.cfg.maxBodySize
	var raw []byte
	if hr.Body != nil {
		var err error
		raw, err = io.ReadAll(http.MaxBytesReader(w, hr.Body, limit))
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, &ErrorInfo{
					Status:  http.StatusRequestEntityTooLarge,
					Code:    ErrCodePayloadTooLarge,
					Message: fmt.Sprintf("request body exceeds %d bytes", limit),
				}
			}
			logger.Debug("request body read failed, treating as empty", "error", err)
			raw = nil
		}
	}

	contentType := hr.Header.Get("Content-Type")
	mediaType := httputil.MediaType(contentType)
	req.RawBody = raw
	req.ContentType = mediaType

	if !httputil.IsJSONMediaType(mediaType) && mediaType != httputil.MediaTypeForm && mediaType != httputil.MediaTypeMultipart {
		return nil, &ErrorInfo{
			Status:  http.StatusUnsupportedMediaType,
			Code:    ErrCodeUnsupportedMediaType,
			Message: fmt.Sprintf("unsupported content type %q", mediaType),
			Details: map[string]any{"contentType": mediaType, "expected": bv.MediaType},
		}
	}
	if len(raw) == 0 && bv.Required {
		return nil, &ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeBodyValidation,
			Message: "request body is required",
		}
	}

	// Empty and unparsable bodies are validated as an empty object.
	var (
		body any = map[string]any{}
		form *multipart.Form
	)
	switch mediaType {
	case httputil.MediaTypeForm:
		values, err := url.ParseQuery(string(raw))
		if err != nil {
			logger.Debug("form body could not be parsed, treating as empty", "error", err)
			break
		}
		fields := formFields(values, nil)
		bv.WrapArrayFields(fields)
		body = fields
	case httputil.MediaTypeMultipart:
		if len(raw) == 0 {
			break
		}
		_, params, _ := mime.ParseMediaType(contentType)
		parsed, err := readMultipart(raw, params["boundary"], multipartMemory)
		if err != nil {
			logger.Debug("multipart body could not be parsed, treating as empty", "error", err)
			break
		}
		form = parsed
		fields := formFields(form.Value, form.File)
		bv.WrapArrayFields(fields)
		body = fields
	default:
		if len(raw) == 0 {
			break
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			logger.Debug("request body is not valid JSON, treating as empty", "error", err)
			break
		}
		body = decoded
	}
	req.Body = body

	if bv.Validator == nil {
		return form, nil
	}
	if err := bv.Validator.Validate(body); err != nil {
		return form, &ErrorInfo{
			Status:  http.StatusBadRequest,
			Code:    ErrCodeBodyValidation,
			Message: "request body does not match the contract",
			Details: schema.Issues(err),
		}
	}
	return form, nil
}

// checkResponse validates resp against the declared responses. Mismatches are
// logged; in development mode a schema violation also becomes a 500.
func (p *pipeline) checkResponse(resp Response, logger logging.Logger) *ErrorInfo {
	validators := p.entry.Validators
	if len(validators.Responses) == 0 {
		return nil
	}

	status := resp.StatusCode()
	value, hasBody, streaming, decodeErr := responseBodyValue(resp)
	if streaming {
		return nil
	}

	rv, ok := validators.Response(status)
	if !ok {
		logger.Warn("response status not documented", "status", status)
		return nil
	}
	if !httputil.AllowsBody(status) {
		if hasBody {
			logger.Warn("response body sent with a status that allows none", "status", status)
		}
		return nil
	}
	if rv.Validator == nil {
		if hasBody && !rv.HasContent {
			logger.Warn("response body not declared by the contract", "status", status, "response", rv.Key)
		}
		return nil
	}

	contentType := resp.Headers().Get("Content-Type")
	if contentType != "" && !httputil.IsJSONMediaType(contentType) {
		return nil
	}

	var issues []schema.Issue
	if decodeErr != nil {
		issues = []schema.Issue{{Message: "response body is not valid JSON: " + decodeErr.Error()}}
	} else if err := rv.Validator.Validate(value); err != nil {
		issues = schema.Issues(err)
	}
	if len(issues) == 0 {
		return nil
	}

	logger.Warn("response contract violation", "status", status, "response", rv.Key, "issues", issues)
	if !p.router.cfg.development {
		return nil
	}
	return &ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    ErrCodeContractViolation,
		Message: "response does not match the contract",
		Details: map[string]any{"status": status, "issues": issues},
	}
}

// write finalizes resp: CORS headers, X-Request-ID, then the response itself.
func (p *pipeline) write(w http.ResponseWriter, hr *http.Request, requestID string, resp Response) {
	p.router.cors.apply(w.Header())
	w.Header().Set(headerRequestID, requestID)
	if err := resp.WriteTo(w); err != nil {
		p.router.cfg.logger.Warn("response write failed",
			"requestId", requestID, "method", hr.Method, "path", hr.URL.Path, "error", err)
	}
}

// writeError renders info through the error responder and writes it.
func (p *pipeline) writeError(w http.ResponseWriter, hr *http.Request, requestID string, info ErrorInfo) {
	info.RequestID = requestID
	if p.entry != nil {
		info.OperationID = p.entry.OperationID
	}
	responder := &errorResponder{
		verbose:   p.router.cfg.development,
		formatter: p.router.errorFormatter,
		logger:    p.router.cfg.logger,
	}
	p.write(w, hr, requestID, responder.response(hr.Context(), info))
}

func callHandler(ctx context.Context, handler HandlerFunc, req *Request, sec *SecurityContext) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return handler(ctx, req, sec)
}

// newRequestID returns the request's X-Request-ID, or a new UUID.
func newRequestID(hr *http.Request) string {
	if id := hr.Header.Get(headerRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}
