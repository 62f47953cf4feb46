// Package security provides ready-made security handlers for the router:
// API keys, bearer JWTs and HTTP Basic credentials.
//
// Each constructor returns a router.SecurityHandlerFunc to register under
// the scheme name used by the contract:
//
//	apiKey, err := security.APIKey(security.InHeader, "X-API-Key", security.StaticKeys("s3cr3t"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = r.RegisterSecurity("apiKey", apiKey)
//	_ = r.RegisterSecurity("bearer", security.BearerJWT(security.HMACKey(secret)))
//
// Missing or invalid credentials reject the request (401). Valid credentials
// that lack a required scope, and validator failures, are returned as errors
// (403).
package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erraggy/oasrouter/oaserrors"
	"github.com/erraggy/oasrouter/router"
)

// API key locations, as in the contract's securitySchemes.
const (
	InHeader = "header"
	InQuery  = "query"
	InCookie = "cookie"
)

// Keys under which handlers store what they established in the
// router.SecurityContext.
const (
	// ClaimsKey holds the jwt.MapClaims of an accepted bearer token
	ClaimsKey = "jwt.claims"
	// APIKeyKey holds the accepted API key
	APIKeyKey = "apiKey"
	// UsernameKey holds the accepted Basic username
	UsernameKey = "basic.username"
)

// ErrInsufficientScope is matched by every *ScopeError.
var ErrInsufficientScope = errors.New("insufficient scope")

// ScopeError reports the required scopes a credential does not grant.
type ScopeError struct {
	Missing []string
}

// Error returns a human-readable error message.
func (e *ScopeError) Error() string {
	return fmt.Sprintf("insufficient scope: missing %s", strings.Join(e.Missing, ", "))
}

// Is reports whether target matches this error type.
func (e *ScopeError) Is(target error) bool {
	return target == ErrInsufficientScope
}

// KeyValidator checks an API key. It returns the principal the key belongs
// to and whether the key is valid. An error ends the request with 403.
type KeyValidator func(ctx context.Context, key string) (principal any, ok bool, err error)

// StaticKeys accepts any of keys. The matched key is the principal.
func StaticKeys(keys ...string) KeyValidator {
	return func(_ context.Context, key string) (any, bool, error) {
		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
				return k, true, nil
			}
		}
		return nil, false, nil
	}
}

// APIKey returns a handler for an apiKey scheme reading the key named name
// from location (InHeader, InQuery or InCookie).
//
// Returns a *oaserrors.ConfigError for an unknown location, an empty name or
// a nil validator.
func APIKey(location, name string, validate KeyValidator) (router.SecurityHandlerFunc, error) {
	switch location {
	case InHeader, InQuery, InCookie:
	default:
		return nil, &oaserrors.ConfigError{Option: "location", Value: location, Message: "must be header, query or cookie"}
	}
	if name == "" {
		return nil, &oaserrors.ConfigError{Option: "name", Message: "cannot be empty"}
	}
	if validate == nil {
		return nil, &oaserrors.ConfigError{Option: "validate", Message: "cannot be nil"}
	}

	return func(ctx context.Context, req *router.Request, _ []string, sec *router.SecurityContext) (router.SecurityResult, error) {
		key := apiKeyFrom(req, location, name)
		if key == "" {
			return router.Reject(), nil
		}
		principal, ok, err := validate(ctx, key)
		if err != nil {
			return router.Reject(), err
		}
		if !ok {
			return router.Reject(), nil
		}
		sec.Set(APIKeyKey, key)
		if principal != nil {
			sec.SetPrincipal(principal)
		}
		return router.Accept(), nil
	}, nil
}

func apiKeyFrom(req *router.Request, location, name string) string {
	switch location {
	case InHeader:
		return req.Header.Get(name)
	case InCookie:
		return req.Cookies[name]
	default:
		switch v := req.QueryParams[name].(type) {
		case string:
			return v
		case []any:
			if len(v) > 0 {
				s, _ := v[0].(string)
				return s
			}
		}
		return ""
	}
}

// CredentialsValidator checks Basic credentials. It returns the principal and
// whether the credentials are valid. An error ends the request with 403.
type CredentialsValidator func(ctx context.Context, username, password string) (principal any, ok bool, err error)

// StaticCredentials accepts the username/password pairs of users. A password
// starting with "$2" is a bcrypt hash; anything else is compared as plain
// text. The username is the principal.
func StaticCredentials(users map[string]string) CredentialsValidator {
	return func(_ context.Context, username, password string) (any, bool, error) {
		want, ok := users[username]
		if !ok {
			return nil, false, nil
		}
		if strings.HasPrefix(want, "$2") {
			err := bcrypt.CompareHashAndPassword([]byte(want), []byte(password))
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, fmt.Errorf("checking password of %q: %w", username, err)
			}
			return username, true, nil
		}
		return username, subtle.ConstantTimeCompare([]byte(want), []byte(password)) == 1, nil
	}
}

// Basic returns a handler for an http "basic" scheme.
func Basic(verify CredentialsValidator) router.SecurityHandlerFunc {
	return func(ctx context.Context, req *router.Request, _ []string, sec *router.SecurityContext) (router.SecurityResult, error) {
		if verify == nil || req.HTTPRequest == nil {
			return router.Reject(), nil
		}
		username, password, ok := req.HTTPRequest.BasicAuth()
		if !ok {
			return router.Reject(), nil
		}
		principal, valid, err := verify(ctx, username, password)
		if err != nil {
			return router.Reject(), err
		}
		if !valid {
			return router.Reject(), nil
		}
		sec.Set(UsernameKey, username)
		if principal == nil {
			principal = username
		}
		sec.SetPrincipal(principal)
		return router.Accept(), nil
	}
}
