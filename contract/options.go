package contract

import (
	"github.com/erraggy/oastools/parser"

	"github.com/erraggy/oasrouter/logging"
	"github.com/erraggy/oasrouter/oaserrors"
)

// Option is a functional option for Load.
type Option func(*config) error

type config struct {
	// Contract source (exactly one of these must be set)
	filePath string
	data     []byte
	document *parser.OAS3Document
	parsed   *parser.ParseResult

	sourceName        string
	validateStructure bool
	logger            logging.Logger
}

// WithFilePath loads the contract from a YAML or JSON file.
func WithFilePath(path string) Option {
	return func(c *config) error {
		if path == "" {
			return &oaserrors.ConfigError{Option: "filePath", Message: "cannot be empty"}
		}
		c.filePath = path
		return nil
	}
}

// WithBytes loads the contract from an in-memory YAML or JSON document.
func WithBytes(data []byte) Option {
	return func(c *config) error {
		if len(data) == 0 {
			return &oaserrors.ConfigError{Option: "bytes", Message: "cannot be empty"}
		}
		c.data = data
		return nil
	}
}

// WithDocument uses an already parsed OAS 3.x document.
func WithDocument(doc *parser.OAS3Document) Option {
	return func(c *config) error {
		if doc == nil {
			return &oaserrors.ConfigError{Option: "document", Message: "cannot be nil"}
		}
		c.document = doc
		return nil
	}
}

// WithParseResult uses the result of parser.ParseWithOptions.
func WithParseResult(result *parser.ParseResult) Option {
	return func(c *config) error {
		if result == nil {
			return &oaserrors.ConfigError{Option: "parseResult", Message: "cannot be nil"}
		}
		c.parsed = result
		return nil
	}
}

// WithSourceName overrides the name used for the contract in errors and logs.
func WithSourceName(name string) Option {
	return func(c *config) error {
		c.sourceName = name
		return nil
	}
}

// WithValidateStructure makes structural problems reported by the parser
// fatal. Default: false.
func WithValidateStructure(enabled bool) Option {
	return func(c *config) error {
		c.validateStructure = enabled
		return nil
	}
}

// WithLogger sets the logger used while loading. The parser's debug output is
// routed through it as well.
func WithLogger(l logging.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

func (c *config) sources() int {
	n := 0
	if c.filePath != "" {
		n++
	}
	if c.data != nil {
		n++
	}
	if c.document != nil {
		n++
	}
	if c.parsed != nil {
		n++
	}
	return n
}

// parserLogger forwards parser log output to a logging.Logger.
type parserLogger struct {
	l logging.Logger
}

func (p parserLogger) Debug(msg string, attrs ...any) { p.l.Debug(msg, attrs...) }
func (p parserLogger) Info(msg string, attrs ...any)  { p.l.Info(msg, attrs...) }
func (p parserLogger) Warn(msg string, attrs ...any)  { p.l.Warn(msg, attrs...) }
func (p parserLogger) Error(msg string, attrs ...any) { p.l.Error(msg, attrs...) }
func (p parserLogger) With(attrs ...any) parser.Logger {
	return parserLogger{l: p.l.With(attrs...)}
}

var _ parser.Logger = parserLogger{}
