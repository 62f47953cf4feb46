package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/erraggy/oasrouter/router"
)

// JWTOption configures BearerJWT.
type JWTOption func(*jwtConfig)

type jwtConfig struct {
	methods []string
	parser  []jwt.ParserOption
}

// WithValidMethods restricts the accepted signing algorithms.
// Default: HS256.
func WithValidMethods(methods ...string) JWTOption {
	return func(c *jwtConfig) { c.methods = methods }
}

// WithIssuer requires the iss claim to equal issuer.
func WithIssuer(issuer string) JWTOption {
	return func(c *jwtConfig) { c.parser = append(c.parser, jwt.WithIssuer(issuer)) }
}

// WithAudience requires the aud claim to contain audience.
func WithAudience(audience string) JWTOption {
	return func(c *jwtConfig) { c.parser = append(c.parser, jwt.WithAudience(audience)) }
}

// WithLeeway allows clock skew when checking exp, nbf and iat.
func WithLeeway(d time.Duration) JWTOption {
	return func(c *jwtConfig) { c.parser = append(c.parser, jwt.WithLeeway(d)) }
}

// WithExpirationRequired rejects tokens without an exp claim.
func WithExpirationRequired() JWTOption {
	return func(c *jwtConfig) { c.parser = append(c.parser, jwt.WithExpirationRequired()) }
}

// HMACKey returns a jwt.Keyfunc that accepts only HMAC-signed tokens and
// verifies them with secret.
func HMACKey(secret []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}
}

// BearerJWT returns a handler for an http "bearer" scheme carrying a JWT in
// the Authorization header.
//
// A missing, malformed, expired or badly signed token rejects the request.
// The required scopes must all be granted by the token's "scope" claim
// (space separated) or its "scopes"/"scp" claim (list); otherwise the handler
// returns a *ScopeError. The accepted claims are stored under ClaimsKey and
// the subject, when present, becomes the principal.
func BearerJWT(keyFunc jwt.Keyfunc, opts ...JWTOption) router.SecurityHandlerFunc {
	cfg := &jwtConfig{methods: []string{jwt.SigningMethodHS256.Alg()}}
	for _, opt := range opts {
		opt(cfg)
	}
	parser := jwt.NewParser(append([]jwt.ParserOption{jwt.WithValidMethods(cfg.methods)}, cfg.parser...)...)

	return func(_ context.Context, req *router.Request, scopes []string, sec *router.SecurityContext) (router.SecurityResult, error) {
		raw, ok := bearerToken(req.Header.Get("Authorization"))
		if !ok || keyFunc == nil {
			return router.Reject(), nil
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(raw, claims, keyFunc)
		if err != nil || !token.Valid {
			return router.Reject(), nil
		}

		if missing := missingScopes(grantedScopes(claims), scopes); len(missing) > 0 {
			return router.Reject(), &ScopeError{Missing: missing}
		}

		sec.Set(ClaimsKey, claims)
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			sec.SetPrincipal(sub)
		}
		return router.Accept(), nil
	}
}

// bearerToken extracts the token of a "Bearer <token>" header value. The
// scheme name is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func grantedScopes(claims jwt.MapClaims) map[string]bool {
	granted := make(map[string]bool)
	if s, ok := claims["scope"].(string); ok {
		for _, scope := range strings.Fields(s) {
			granted[scope] = true
		}
	}
	for _, key := range []string{"scopes", "scp"} {
		switch v := claims[key].(type) {
		case string:
			for _, scope := range strings.Fields(v) {
				granted[scope] = true
			}
		case []any:
			for _, item := range v {
				if scope, ok := item.(string); ok {
					granted[scope] = true
				}
			}
		}
	}
	return granted
}

func missingScopes(granted map[string]bool, required []string) []string {
	var missing []string
	for _, scope := range required {
		if !granted[scope] {
			missing = append(missing, scope)
		}
	}
	return missing
}
