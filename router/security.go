package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/erraggy/oastools/parser"
)

type resultKind int

const (
	resultRejected resultKind = iota
	resultAccepted
	resultResponse
)

// SecurityResult is the outcome of a security handler. The zero value
// rejects the request.
type SecurityResult struct {
	kind     resultKind
	response Response
}

// Accept lets the request continue to the next requirement.
func Accept() SecurityResult { return SecurityResult{kind: resultAccepted} }

// Reject ends the request with 401 UNAUTHORIZED.
func Reject() SecurityResult { return SecurityResult{kind: resultRejected} }

// RejectWith ends the request with resp, returned verbatim. A nil resp is
// the same as Reject.
func RejectWith(resp Response) SecurityResult {
	if resp == nil {
		return Reject()
	}
	return SecurityResult{kind: resultResponse, response: resp}
}

// Accepted reports whether the result lets the request continue.
func (r SecurityResult) Accepted() bool { return r.kind == resultAccepted }

// Response returns the response of a RejectWith result, or nil.
func (r SecurityResult) Response() Response { return r.response }

// SecurityContext is per-request scratch space shared by the security
// handlers of one request and the business handler.
type SecurityContext struct {
	values    map[string]any
	principal any
	schemes   []string
}

// NewSecurityContext creates an empty SecurityContext.
func NewSecurityContext() *SecurityContext {
	return &SecurityContext{values: make(map[string]any)}
}

// Set stores a value under key.
func (s *SecurityContext) Set(key string, value any) { s.values[key] = value }

// Get returns the value stored under key.
func (s *SecurityContext) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// SetPrincipal records the authenticated identity.
func (s *SecurityContext) SetPrincipal(principal any) { s.principal = principal }

// Principal returns the identity recorded by SetPrincipal, or nil.
func (s *SecurityContext) Principal() any { return s.principal }

// Schemes returns the names of the schemes that accepted the request, in
// evaluation order.
func (s *SecurityContext) Schemes() []string {
	return append([]string(nil), s.schemes...)
}

// securityChain evaluates an operation's effective security requirements.
//
// Every requirement object must pass, in declaration order; scheme names
// inside one object are evaluated in sorted order.
type securityChain struct {
	lookup func(scheme string) SecurityHandlerFunc
}

// evaluate returns nil when every requirement passed. Otherwise it returns
// either a verbatim response or the error to render.
func (c *securityChain) evaluate(ctx context.Context, req *Request, requirements []parser.SecurityRequirement, sec *SecurityContext) (Response, *ErrorInfo) {
	for _, requirement := range requirements {
		for _, scheme := range sortedSchemes(requirement) {
			handler := c.lookup(scheme)
			if handler == nil {
				return nil, &ErrorInfo{
					Status:  http.StatusInternalServerError,
					Code:    ErrCodeConfig,
					Message: fmt.Sprintf("no security handler registered for scheme %q", scheme),
					Details: map[string]any{"scheme": scheme},
				}
			}

			result, err := callSecurity(ctx, handler, req, requirement[scheme], sec)
			if err != nil {
				var respErr *ResponseError
				if errors.As(err, &respErr) && respErr.Response != nil {
					return respErr.Response, nil
				}
				return nil, &ErrorInfo{
					Status:  http.StatusForbidden,
					Code:    ErrCodeForbidden,
					Message: fmt.Sprintf("security scheme %q denied access: %v", scheme, err),
					Details: map[string]any{"scheme": scheme},
				}
			}

			switch result.kind {
			case resultAccepted:
				sec.schemes = append(sec.schemes, scheme)
			case resultResponse:
				return result.response, nil
			default:
				return nil, &ErrorInfo{
					Status:  http.StatusUnauthorized,
					Code:    ErrCodeUnauthorized,
					Message: fmt.Sprintf("security scheme %q rejected the request", scheme),
					Details: map[string]any{"scheme": scheme},
				}
			}
		}
	}
	return nil, nil
}

// callSecurity invokes handler, turning a panic into an error.
func callSecurity(ctx context.Context, handler SecurityHandlerFunc, req *Request, scopes []string, sec *SecurityContext) (result SecurityResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = panicError(rec)
		}
	}()
	if scopes == nil {
		scopes = []string{}
	}
	return handler(ctx, req, scopes, sec)
}

func sortedSchemes(requirement parser.SecurityRequirement) []string {
	names := make([]string, 0, len(requirement))
	for name := range requirement {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// panicError converts a recovered value into an error.
func panicError(rec any) error {
	switch v := rec.(type) {
	case error:
		return v
	case string:
		return errors.New(v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}
