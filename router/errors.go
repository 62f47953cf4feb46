package router

import (
	"context"
	"net/http"

	"github.com/erraggy/oasrouter/logging"
)

// Error codes carried in verbose error bodies.
const (
	ErrCodeValidation           = "ERR_VALIDATION"
	ErrCodeBodyValidation       = "INVALID_BODY_VALIDATION"
	ErrCodeUnsupportedMediaType = "UNSUPPORTED_MEDIA_TYPE"
	ErrCodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeConfig               = "ERR_CONFIG"
	ErrCodeNotImplemented       = "NOT_IMPLEMENTED"
	ErrCodeHandler              = "HANDLER_ERROR"
	ErrCodeContractViolation    = "CONTRACT_VIOLATION"
	ErrCodeNotFound             = "NOT_FOUND"
)

// ErrorInfo describes a request that the pipeline ended with an error.
type ErrorInfo struct {
	// Status is the HTTP status code
	Status int `json:"-"`
	// Code is one of the ErrCode constants; empty when redacted
	Code string `json:"code,omitempty"`
	// Message is a human-readable description
	Message string `json:"message"`
	// Details holds validation issues or other context; nil when redacted
	Details any `json:"details,omitempty"`
	// RequestID is the X-Request-ID of the request
	RequestID string `json:"-"`
	// OperationID is the matched operationId, if any
	OperationID string `json:"-"`
}

// terseMessage returns the fixed message used when errors are not verbose.
func terseMessage(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "Unauthorized"
	case status == http.StatusForbidden:
		return "Forbidden"
	case status == http.StatusNotFound:
		return "Not Found"
	case status >= 500:
		return "Internal Server Error"
	default:
		return "Bad Request"
	}
}

// redact strips everything but the status and a fixed message.
func (e ErrorInfo) redact() ErrorInfo {
	return ErrorInfo{
		Status:      e.Status,
		Message:     terseMessage(e.Status),
		RequestID:   e.RequestID,
		OperationID: e.OperationID,
	}
}

// errorResponder is the single place pipeline failures become responses.
type errorResponder struct {
	verbose   bool
	formatter func() ErrorFormatter
	logger    logging.Logger
}

// response builds the error response for info. A registered formatter runs
// first; its error, panic or nil response falls back to the built-in body.
func (e *errorResponder) response(ctx context.Context, info ErrorInfo) Response {
	if !e.verbose {
		info = info.redact()
	}

	if formatter := e.formatter(); formatter != nil {
		resp, err := callFormatter(ctx, formatter, info)
		switch {
		case err != nil:
			e.logger.Warn("error formatter failed, using built-in format",
				"status", info.Status, "requestId", info.RequestID, "error", err)
		case resp != nil:
			return resp
		}
	}

	if e.verbose {
		return JSON(info.Status, info)
	}
	return JSON(info.Status, map[string]string{"message": info.Message})
}

func callFormatter(ctx context.Context, formatter ErrorFormatter, info ErrorInfo) (resp Response, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	return formatter(ctx, info)
}
