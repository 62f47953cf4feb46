package security

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasrouter/oaserrors"
	"github.com/erraggy/oasrouter/router"
)

func newRequest(t *testing.T, header http.Header, query map[string]any, cookies map[string]string) *router.Request {
	t.Helper()
	hr := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, vs := range header {
		for _, v := range vs {
			hr.Header.Add(k, v)
		}
	}
	return &router.Request{
		HTTPRequest: hr,
		Method:      hr.Method,
		URL:         hr.URL,
		Header:      hr.Header,
		QueryParams: query,
		Cookies:     cookies,
	}
}

// =============================================================================
// API keys
// =============================================================================

func TestAPIKey(t *testing.T) {
	validate := StaticKeys("k1", "k2")

	tests := []struct {
		name     string
		location string
		req      *router.Request
		accepted bool
	}{
		{"header", InHeader, newRequest(t, http.Header{"X-Api-Key": {"k1"}}, nil, nil), true},
		{"header wrong key", InHeader, newRequest(t, http.Header{"X-Api-Key": {"nope"}}, nil, nil), false},
		{"header missing", InHeader, newRequest(t, nil, nil, nil), false},
		{"query", InQuery, newRequest(t, nil, map[string]any{"X-API-Key": "k2"}, nil), true},
		{"query repeated", InQuery, newRequest(t, nil, map[string]any{"X-API-Key": []any{"k2", "x"}}, nil), true},
		{"query empty list", InQuery, newRequest(t, nil, map[string]any{"X-API-Key": []any{}}, nil), false},
		{"cookie", InCookie, newRequest(t, nil, nil, map[string]string{"X-API-Key": "k1"}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := APIKey(tt.location, "X-API-Key", validate)
			require.NoError(t, err)

			sec := router.NewSecurityContext()
			result, err := h(context.Background(), tt.req, nil, sec)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, result.Accepted())
			if tt.accepted {
				assert.NotNil(t, sec.Principal())
				_, ok := sec.Get(APIKeyKey)
				assert.True(t, ok)
			}
		})
	}
}

func TestAPIKey_ValidatorError(t *testing.T) {
	failure := errors.New("key store down")
	h, err := APIKey(InHeader, "X-API-Key", func(context.Context, string) (any, bool, error) {
		return nil, false, failure
	})
	require.NoError(t, err)

	result, err := h(context.Background(), newRequest(t, http.Header{"X-Api-Key": {"k"}}, nil, nil), nil, router.NewSecurityContext())
	assert.ErrorIs(t, err, failure)
	assert.False(t, result.Accepted())
}

func TestAPIKey_Config(t *testing.T) {
	tests := []struct {
		name     string
		location string
		key      string
		validate KeyValidator
		option   string
	}{
		{"bad location", "body", "k", StaticKeys(), "location"},
		{"empty name", InHeader, "", StaticKeys(), "name"},
		{"nil validator", InHeader, "k", nil, "validate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := APIKey(tt.location, tt.key, tt.validate)
			var cfgErr *oaserrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.option, cfgErr.Option)
		})
	}
}

// =============================================================================
// Basic
// =============================================================================

func TestBasic(t *testing.T) {
	verify := func(_ context.Context, user, pass string) (any, bool, error) {
		if user == "broken" {
			return nil, false, errors.New("directory unavailable")
		}
		return nil, user == "alice" && pass == "wonderland", nil
	}
	h := Basic(verify)

	withAuth := func(user, pass string) *router.Request {
		req := newRequest(t, nil, nil, nil)
		req.HTTPRequest.SetBasicAuth(user, pass)
		return req
	}

	t.Run("valid", func(t *testing.T) {
		sec := router.NewSecurityContext()
		result, err := h(context.Background(), withAuth("alice", "wonderland"), nil, sec)
		require.NoError(t, err)
		assert.True(t, result.Accepted())
		assert.Equal(t, "alice", sec.Principal())
		user, _ := sec.Get(UsernameKey)
		assert.Equal(t, "alice", user)
	})

	t.Run("wrong password", func(t *testing.T) {
		result, err := h(context.Background(), withAuth("alice", "x"), nil, router.NewSecurityContext())
		require.NoError(t, err)
		assert.False(t, result.Accepted())
	})

	t.Run("no credentials", func(t *testing.T) {
		result, err := h(context.Background(), newRequest(t, nil, nil, nil), nil, router.NewSecurityContext())
		require.NoError(t, err)
		assert.False(t, result.Accepted())
	})

	t.Run("verifier error", func(t *testing.T) {
		_, err := h(context.Background(), withAuth("broken", "x"), nil, router.NewSecurityContext())
		assert.Error(t, err)
	})
}

func TestStaticCredentials(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	verify := StaticCredentials(map[string]string{
		"plain":  "wonderland",
		"hashed": string(hash),
		"broken": "$2a$not-a-hash",
	})

	tests := []struct {
		user, pass string
		ok         bool
		wantErr    bool
	}{
		{"plain", "wonderland", true, false},
		{"plain", "wonder", false, false},
		{"hashed", "hunter2", true, false},
		{"hashed", "hunter3", false, false},
		{"nobody", "x", false, false},
		{"broken", "x", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.pass, func(t *testing.T) {
			principal, ok, err := verify(context.Background(), tt.user, tt.pass)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.user, principal)
			}
		})
	}
}

// =============================================================================
// Bearer JWT
// =============================================================================

var testSecret = []byte("test-secret")

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func bearer(t *testing.T, token string) *router.Request {
	t.Helper()
	return newRequest(t, http.Header{"Authorization": {"Bearer " + token}}, nil, nil)
}

func TestBearerJWT(t *testing.T) {
	h := BearerJWT(HMACKey(testSecret), WithIssuer("oasrouter-test"))
	valid := jwt.MapClaims{
		"sub":   "alice",
		"iss":   "oasrouter-test",
		"exp":   time.Now().Add(time.Hour).Unix(),
		"scope": "items:read items:write",
	}

	t.Run("valid token with scopes", func(t *testing.T) {
		sec := router.NewSecurityContext()
		result, err := h(context.Background(), bearer(t, sign(t, jwt.SigningMethodHS256, testSecret, valid)), []string{"items:read"}, sec)
		require.NoError(t, err)
		assert.True(t, result.Accepted())
		assert.Equal(t, "alice", sec.Principal())

		claims, ok := sec.Get(ClaimsKey)
		require.True(t, ok)
		assert.Equal(t, "oasrouter-test", claims.(jwt.MapClaims)["iss"])
	})

	t.Run("missing scope", func(t *testing.T) {
		result, err := h(context.Background(), bearer(t, sign(t, jwt.SigningMethodHS256, testSecret, valid)), []string{"items:read", "admin"}, router.NewSecurityContext())
		assert.False(t, result.Accepted())
		assert.ErrorIs(t, err, ErrInsufficientScope)

		var scopeErr *ScopeError
		require.ErrorAs(t, err, &scopeErr)
		assert.Equal(t, []string{"admin"}, scopeErr.Missing)
	})

	rejected := []struct {
		name string
		req  *router.Request
	}{
		{"no header", newRequest(t, nil, nil, nil)},
		{"wrong scheme", newRequest(t, http.Header{"Authorization": {"Basic abc"}}, nil, nil)},
		{"empty token", newRequest(t, http.Header{"Authorization": {"Bearer "}}, nil, nil)},
		{"garbage", bearer(t, "not.a.jwt")},
		{"wrong secret", bearer(t, sign(t, jwt.SigningMethodHS256, []byte("other"), valid))},
		{"wrong issuer", bearer(t, sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"iss": "someone-else"}))},
		{"expired", bearer(t, sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
			"iss": "oasrouter-test",
			"exp": time.Now().Add(-time.Hour).Unix(),
		}))},
		{"disallowed method", bearer(t, sign(t, jwt.SigningMethodHS512, testSecret, valid))},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h(context.Background(), tt.req, nil, router.NewSecurityContext())
			require.NoError(t, err)
			assert.False(t, result.Accepted())
		})
	}
}

func TestBearerJWT_Options(t *testing.T) {
	claims := jwt.MapClaims{"aud": "inventory", "scopes": []any{"a", "b"}}

	h := BearerJWT(HMACKey(testSecret), WithValidMethods("HS512"), WithAudience("inventory"), WithLeeway(time.Second))
	result, err := h(context.Background(), bearer(t, sign(t, jwt.SigningMethodHS512, testSecret, claims)), []string{"a", "b"}, router.NewSecurityContext())
	require.NoError(t, err)
	assert.True(t, result.Accepted())

	strict := BearerJWT(HMACKey(testSecret), WithExpirationRequired())
	result, err = strict(context.Background(), bearer(t, sign(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "x"})), nil, router.NewSecurityContext())
	require.NoError(t, err)
	assert.False(t, result.Accepted())
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"Bearer", "", false},
		{"Token abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := bearerToken(tt.header)
		assert.Equal(t, tt.want, got, tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
	}
}

func TestGrantedScopes(t *testing.T) {
	granted := grantedScopes(jwt.MapClaims{
		"scope":  "a b",
		"scopes": []any{"c", 1},
		"scp":    "d",
	})
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true, "d": true}, granted)
	assert.Equal(t, []string{"x"}, missingScopes(granted, []string{"a", "x"}))
	assert.Empty(t, missingScopes(granted, nil))
}
