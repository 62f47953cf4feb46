package router

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityResult(t *testing.T) {
	assert.True(t, Accept().Accepted())
	assert.False(t, Reject().Accepted())
	assert.Nil(t, Reject().Response())

	resp := Text(http.StatusTooManyRequests, "slow down")
	rejected := RejectWith(resp)
	assert.False(t, rejected.Accepted())
	assert.Same(t, resp, rejected.Response())

	assert.Equal(t, Reject(), RejectWith(nil))
}

func TestSecurityContext(t *testing.T) {
	sec := NewSecurityContext()

	_, ok := sec.Get("user")
	assert.False(t, ok)

	sec.Set("user", "alice")
	v, ok := sec.Get("user")
	require.True(t, ok)
	assert.Equal(t, "alice", v)

	assert.Nil(t, sec.Principal())
	sec.SetPrincipal(map[string]any{"sub": "alice"})
	assert.Equal(t, map[string]any{"sub": "alice"}, sec.Principal())

	assert.Empty(t, sec.Schemes())
}

func TestRouter_SecurityOrder(t *testing.T) {
	r := newTestRouter(t)

	var (
		order  []string
		scopes = map[string][]string{}
		seen   any
	)
	require.NoError(t, r.RegisterSecurity("first", func(_ context.Context, _ *Request, s []string, sec *SecurityContext) (SecurityResult, error) {
		order = append(order, "first")
		scopes["first"] = s
		sec.Set("user", "alice")
		sec.SetPrincipal("alice")
		return Accept(), nil
	}))
	require.NoError(t, r.RegisterSecurity("second", func(_ context.Context, req *Request, s []string, sec *SecurityContext) (SecurityResult, error) {
		order = append(order, "second")
		scopes["second"] = s
		seen, _ = sec.Get("user")
		if req.QueryParams["token"] != "t0k3n" {
			return Reject(), nil
		}
		return Accept(), nil
	}))
	require.NoError(t, r.Register("readSecure", func(_ context.Context, _ *Request, sec *SecurityContext) (Response, error) {
		return JSON(http.StatusOK, map[string]any{"schemes": sec.Schemes(), "principal": sec.Principal()}), nil
	}))

	for i := 0; i < 3; i++ {
		order = nil
		rec := serve(r, http.MethodGet, "/secure?token=t0k3n", "", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []string{"first", "second"}, order)
		assert.JSONEq(t, `{"schemes":["first","second"],"principal":"alice"}`, rec.Body.String())
	}

	assert.Equal(t, []string{"read"}, scopes["first"])
	assert.Equal(t, []string{}, scopes["second"])
	assert.Equal(t, "alice", seen, "second scheme observes what the first one set")

	t.Run("every requirement must pass", func(t *testing.T) {
		order = nil
		rec := serve(r, http.MethodGet, "/secure", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, []string{"first", "second"}, order)
	})
}

func TestRouter_SecurityOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		first      SecurityHandlerFunc
		wantStatus int
		wantCode   string
		wantBody   string
	}{
		{
			name: "reject",
			first: func(context.Context, *Request, []string, *SecurityContext) (SecurityResult, error) {
				return Reject(), nil
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   ErrCodeUnauthorized,
		},
		{
			name: "error",
			first: func(context.Context, *Request, []string, *SecurityContext) (SecurityResult, error) {
				return Accept(), errors.New("token expired")
			},
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeForbidden,
		},
		{
			name: "panic",
			first: func(context.Context, *Request, []string, *SecurityContext) (SecurityResult, error) {
				panic("bad token store")
			},
			wantStatus: http.StatusForbidden,
			wantCode:   ErrCodeForbidden,
		},
		{
			name: "custom rejection",
			first: func(context.Context, *Request, []string, *SecurityContext) (SecurityResult, error) {
				return RejectWith(Text(http.StatusTooManyRequests, "slow down")), nil
			},
			wantStatus: http.StatusTooManyRequests,
			wantBody:   "slow down",
		},
		{
			name: "response carried by error",
			first: func(context.Context, *Request, []string, *SecurityContext) (SecurityResult, error) {
				return Reject(), fmt.Errorf("billing: %w", NewResponseError(Text(http.StatusPaymentRequired, "pay up")))
			},
			wantStatus: http.StatusPaymentRequired,
			wantBody:   "pay up",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, WithDevelopmentMode(true))
			secondCalled := false
			require.NoError(t, r.RegisterSecurity("first", tt.first))
			require.NoError(t, r.RegisterSecurity("second", func(context.Context, *Request, []string, *SecurityContext) (SecurityResult, error) {
				secondCalled = true
				return Accept(), nil
			}))
			require.NoError(t, r.Register("readSecure", itemHandler(http.StatusOK, nil)))

			rec := serve(r, http.MethodGet, "/secure", "", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, secondCalled)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantCode != "" {
				body := decodeJSON(t, rec)
				assert.Equal(t, tt.wantCode, body["code"])
				assert.Equal(t, map[string]any{"scheme": "first"}, body["details"])
			}
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestRouter_MissingSecurityHandler(t *testing.T) {
	r := newTestRouter(t, WithDevelopmentMode(true))
	require.NoError(t, r.RegisterSecurity("first", acceptAll))
	require.NoError(t, r.Register("readSecure", itemHandler(http.StatusOK, nil)))

	rec := serve(r, http.MethodGet, "/secure", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, ErrCodeConfig, body["code"])
	assert.Contains(t, body["message"], `"second"`)
}

func TestSortedSchemes(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedSchemes(map[string][]string{"c": nil, "a": nil, "b": nil}))
	assert.Empty(t, sortedSchemes(nil))
}

func TestPanicError(t *testing.T) {
	cause := errors.New("cause")
	assert.Same(t, cause, panicError(cause))
	assert.EqualError(t, panicError("boom"), "boom")
	assert.EqualError(t, panicError(42), "panic: 42")
}
