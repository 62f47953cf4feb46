package router

import (
	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/oaserrors"
)

// DefaultMaxBodySize is the request body limit when WithMaxBodySize is not
// used (10 MiB).
const DefaultMaxBodySize int64 = 10 << 20

// multipartMemory is how much of a multipart body is kept in memory before
// file parts spill to temporary files.
const multipartMemory int64 = 32 << 20

// Option is a functional option for New.
type Option func(*config) error

type config struct {
	cors        CORSConfig
	strict      bool
	development bool
	maxBodySize int64
	logger      logging.Logger
}

func defaultConfig() config {
	return config{
		cors:        DefaultCORSConfig(),
		maxBodySize: DefaultMaxBodySize,
		logger:      logging.NopLogger{},
	}
}

// WithCORS sets the CORS headers attached to every response.
// Default: DefaultCORSConfig().
func WithCORS(cors CORSConfig) Option {
	return func(c *config) error {
		if cors.Origin == "" {
			return &oaserrors.ConfigError{Option: "cors.origin", Message: "cannot be empty (use \"*\" to allow any origin)"}
		}
		c.cors = cors
		return nil
	}
}

// WithStrictMode enables response validation. Default: false.
func WithStrictMode(enabled bool) Option {
	return func(c *config) error {
		c.strict = enabled
		return nil
	}
}

// WithDevelopmentMode makes error bodies verbose and turns response contract
// violations into 500 responses. Default: false.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *config) error {
		c.development = enabled
		return nil
	}
}

// WithMaxBodySize limits how many bytes of a request body are read.
// Default: DefaultMaxBodySize.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n <= 0 {
			return &oaserrors.ConfigError{Option: "maxBodySize", Value: n, Message: "must be positive"}
		}
		c.maxBodySize = n
		return nil
	}
}

// WithLogger sets the logger. Default: logging.NopLogger.
func WithLogger(l logging.Logger) Option {
	return func(c *config) error {
		c.logger = logging.OrNop(l)
		return nil
	}
}
