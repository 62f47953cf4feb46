package router

import (
	"net/http"
	"sort"
	"strings"
)

// CORSConfig configures the CORS headers attached to every response.
type CORSConfig struct {
	// Origin is "*" or one explicit origin. An explicit origin also enables
	// Access-Control-Allow-Credentials and adds "Vary: Origin".
	Origin string
	// Headers override the computed headers by name. An empty value removes
	// the header.
	Headers map[string]string
}

// DefaultCORSConfig allows any origin.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{Origin: "*"}
}

// corsPolicy holds the precomputed CORS headers.
type corsPolicy struct {
	headers map[string]string
	keys    []string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	origin := cfg.Origin
	if origin == "" {
		origin = "*"
	}

	headers := map[string]string{
		"Access-Control-Allow-Origin":   origin,
		"Access-Control-Allow-Methods":  "GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE",
		"Access-Control-Allow-Headers":  "Accept, Authorization, Content-Type, X-API-Key, X-Request-ID",
		"Access-Control-Expose-Headers": "X-Request-ID",
		"Access-Control-Max-Age":        "86400",
	}
	if origin != "*" {
		headers["Access-Control-Allow-Credentials"] = "true"
		headers["Vary"] = "Origin"
	}

	for name, value := range cfg.Headers {
		name = http.CanonicalHeaderKey(strings.TrimSpace(name))
		if value == "" {
			delete(headers, name)
			continue
		}
		headers[name] = value
	}

	keys := make([]string, 0, len(headers))
	for name := range headers {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return &corsPolicy{headers: headers, keys: keys}
}

// apply sets the CORS headers on h. Vary is appended to, not replaced.
func (p *corsPolicy) apply(h http.Header) {
	for _, name := range p.keys {
		value := p.headers[name]
		if name == "Vary" {
			h.Add(name, value)
			continue
		}
		h.Set(name, value)
	}
}
