package router

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSPolicy(t *testing.T) {
	t.Run("wildcard defaults", func(t *testing.T) {
		h := make(http.Header)
		newCORSPolicy(DefaultCORSConfig()).apply(h)

		assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE", h.Get("Access-Control-Allow-Methods"))
		assert.Contains(t, h.Get("Access-Control-Allow-Headers"), "Authorization")
		assert.Equal(t, "X-Request-ID", h.Get("Access-Control-Expose-Headers"))
		assert.Equal(t, "86400", h.Get("Access-Control-Max-Age"))
		assert.Empty(t, h.Get("Access-Control-Allow-Credentials"))
		assert.Empty(t, h.Values("Vary"))
	})

	t.Run("explicit origin", func(t *testing.T) {
		h := make(http.Header)
		h.Add("Vary", "Accept-Encoding")
		newCORSPolicy(CORSConfig{Origin: "https://app.example"}).apply(h)

		assert.Equal(t, "https://app.example", h.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", h.Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, []string{"Accept-Encoding", "Origin"}, h.Values("Vary"))
	})

	t.Run("overrides", func(t *testing.T) {
		h := make(http.Header)
		newCORSPolicy(CORSConfig{
			Origin: "*",
			Headers: map[string]string{
				"access-control-allow-methods":  "GET",
				"Access-Control-Expose-Headers": "",
				" X-Frame-Options ":             "DENY",
			},
		}).apply(h)

		assert.Equal(t, "GET", h.Get("Access-Control-Allow-Methods"))
		assert.NotContains(t, h, "Access-Control-Expose-Headers")
		assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	})

	t.Run("empty origin means any", func(t *testing.T) {
		h := make(http.Header)
		newCORSPolicy(CORSConfig{}).apply(h)
		assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	})
}
