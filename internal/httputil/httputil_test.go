package httputil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected bool
	}{
		{"default keyword", "default", true},
		{"wildcard 2XX", "2XX", true},
		{"wildcard 5XX", "5XX", true},
		{"invalid wildcard 0XX", "0XX", false},
		{"invalid wildcard 6XX", "6XX", false},
		{"partial wildcard 20X", "20X", false},
		{"valid 200", "200", true},
		{"valid 599", "599", true},
		{"invalid 099", "099", false},
		{"invalid 600", "600", false},
		{"too short", "20", false},
		{"letters", "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateStatusCode(tt.code))
		})
	}
}

func TestResponseKeys(t *testing.T) {
	assert.Equal(t, []string{"200", "2XX", "default"}, ResponseKeys(200))
	assert.Equal(t, []string{"404", "4XX", "default"}, ResponseKeys(404))
	assert.Equal(t, []string{"42", "default"}, ResponseKeys(42))
}

func TestAllowsBody(t *testing.T) {
	assert.True(t, AllowsBody(200))
	assert.True(t, AllowsBody(500))
	assert.False(t, AllowsBody(204))
	assert.False(t, AllowsBody(304))
	assert.False(t, AllowsBody(101))
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"application/json", "application/json"},
		{"Application/JSON; charset=utf-8", "application/json"},
		{"multipart/form-data; boundary=xyz", "multipart/form-data"},
		{"text/plain;;bad", "text/plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaType(tt.in))
		})
	}
}

func TestIsJSONMediaType(t *testing.T) {
	assert.True(t, IsJSONMediaType("application/json"))
	assert.True(t, IsJSONMediaType("application/problem+json; charset=utf-8"))
	assert.False(t, IsJSONMediaType("text/plain"))
	assert.False(t, IsJSONMediaType(""))
}

func TestIsStreamingMediaType(t *testing.T) {
	assert.True(t, IsStreamingMediaType("text/event-stream"))
	assert.True(t, IsStreamingMediaType("application/x-ndjson"))
	assert.False(t, IsStreamingMediaType("application/json"))
}
