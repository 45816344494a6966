package httpvalidator

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/erraggy/oasguard/engine"
	"github.com/erraggy/oasguard/formats"
	"github.com/erraggy/oasguard/oaserrors"
)

// DefaultMaxBodySize caps request and response bodies read for validation.
const DefaultMaxBodySize int64 = 10 << 20

// BeforeHandler receives a request that failed validation together with its
// errors and returns the request to dispatch instead of answering 400. It
// must return a non-nil request; otherwise Process fails with a
// *oaserrors.BeforeHandlerError. An error returned alongside a non-nil
// request is logged as a warning and otherwise ignored.
type BeforeHandler func(req *http.Request, errs []ValidationError) (*http.Request, error)

// ErrorHandler builds the failure response for status (400 or 500). A nil
// return falls back to ErrorResponse.
type ErrorHandler func(status int, message string, errs []ValidationError) *Response

// Options is the validator configuration. It is read once by New and never
// changes afterwards.
type Options struct {
	// AdditionalParameters accepts path and query parameters the operation
	// does not declare.
	AdditionalParameters bool
	// BeforeHandler, when set, replaces the 400 response on request
	// validation failure.
	BeforeHandler BeforeHandler
	// ErrorHandler, when set, builds 400 and 500 responses.
	ErrorHandler ErrorHandler
	// ExampleResponse synthesizes a body from the declared example when
	// the handler writes none.
	ExampleResponse bool
	// MissingFormatFatal fails processing on a format with no validator.
	// When false such formats are not enforced.
	MissingFormatFatal bool
	// PathNotFoundFatal fails processing for requests matching no
	// operation. When false they are passed through unvalidated.
	PathNotFoundFatal bool
	// SetDefaultParameters fills absent query parameters from their
	// schema defaults.
	SetDefaultParameters bool
	// StripResponse removes undeclared fields from response bodies
	// instead of reporting them.
	StripResponse bool
	// StripResponseHeaders removes undeclared response headers during
	// header validation.
	StripResponseHeaders bool
	// ValidateError runs response validation on the 400 response built for
	// a failed request instead of returning it directly. The handler is
	// still not called.
	ValidateError bool

	ValidateRequest         bool
	ValidateResponse        bool
	ValidateResponseHeaders bool

	// StrictEmptyArrayValidation reports an empty array where an object is
	// expected.
	StrictEmptyArrayValidation bool

	// Engine selects the schema engine by name: "jsonschema" (default) or
	// "gojsonschema".
	Engine string
	// Language is a BCP 47 tag for engine messages.
	Language string
	// Logger receives diagnostics. Defaults to NopLogger.
	Logger Logger
	// MaxBodySize caps bodies read for validation. Defaults to
	// DefaultMaxBodySize.
	MaxBodySize int64
}

// DefaultOptions returns the default configuration.
func DefaultOptions() Options {
	return Options{
		MissingFormatFatal: true,
		PathNotFoundFatal:  true,
		ValidateRequest:    true,
		ValidateResponse:   true,
		Engine:             engine.NameJSONSchema,
		Logger:             NopLogger{},
		MaxBodySize:        DefaultMaxBodySize,
	}
}

// Option is a functional option for configuring a Validator.
type Option func(*config) error

type formatEntry struct {
	typ, name string
	v         formats.Validator
}

// config holds the configuration assembled by New.
type config struct {
	opts    Options
	formats []formatEntry
}

func defaultConfig() *config {
	return &config{opts: DefaultOptions()}
}

// WithOptions replaces the whole configuration record.
func WithOptions(o Options) Option {
	return func(c *config) error {
		c.opts = o
		return nil
	}
}

// WithAdditionalParameters sets Options.AdditionalParameters.
func WithAdditionalParameters(allow bool) Option {
	return func(c *config) error {
		c.opts.AdditionalParameters = allow
		return nil
	}
}

// WithBeforeHandler sets Options.BeforeHandler.
func WithBeforeHandler(h BeforeHandler) Option {
	return func(c *config) error {
		c.opts.BeforeHandler = h
		return nil
	}
}

// WithErrorHandler sets Options.ErrorHandler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) error {
		c.opts.ErrorHandler = h
		return nil
	}
}

// WithExampleResponse sets Options.ExampleResponse.
func WithExampleResponse(enable bool) Option {
	return func(c *config) error {
		c.opts.ExampleResponse = enable
		return nil
	}
}

// WithMissingFormatFatal sets Options.MissingFormatFatal.
func WithMissingFormatFatal(fatal bool) Option {
	return func(c *config) error {
		c.opts.MissingFormatFatal = fatal
		return nil
	}
}

// WithPathNotFoundFatal sets Options.PathNotFoundFatal.
func WithPathNotFoundFatal(fatal bool) Option {
	return func(c *config) error {
		c.opts.PathNotFoundFatal = fatal
		return nil
	}
}

// WithSetDefaultParameters sets Options.SetDefaultParameters.
func WithSetDefaultParameters(enable bool) Option {
	return func(c *config) error {
		c.opts.SetDefaultParameters = enable
		return nil
	}
}

// WithStripResponse sets Options.StripResponse.
func WithStripResponse(enable bool) Option {
	return func(c *config) error {
		c.opts.StripResponse = enable
		return nil
	}
}

// WithStripResponseHeaders sets Options.StripResponseHeaders.
func WithStripResponseHeaders(enable bool) Option {
	return func(c *config) error {
		c.opts.StripResponseHeaders = enable
		return nil
	}
}

// WithValidateError sets Options.ValidateError.
func WithValidateError(enable bool) Option {
	return func(c *config) error {
		c.opts.ValidateError = enable
		return nil
	}
}

// WithValidateRequest sets Options.ValidateRequest.
func WithValidateRequest(enable bool) Option {
	return func(c *config) error {
		c.opts.ValidateRequest = enable
		return nil
	}
}

// WithValidateResponse sets Options.ValidateResponse.
func WithValidateResponse(enable bool) Option {
	return func(c *config) error {
		c.opts.ValidateResponse = enable
		return nil
	}
}

// WithValidateResponseHeaders sets Options.ValidateResponseHeaders.
func WithValidateResponseHeaders(enable bool) Option {
	return func(c *config) error {
		c.opts.ValidateResponseHeaders = enable
		return nil
	}
}

// WithStrictEmptyArrayValidation sets Options.StrictEmptyArrayValidation.
func WithStrictEmptyArrayValidation(strict bool) Option {
	return func(c *config) error {
		c.opts.StrictEmptyArrayValidation = strict
		return nil
	}
}

// WithEngine selects the schema engine by name.
func WithEngine(name string) Option {
	return func(c *config) error {
		c.opts.Engine = name
		return nil
	}
}

// WithLanguage sets the language of engine messages.
func WithLanguage(tag string) Option {
	return func(c *config) error {
		c.opts.Language = tag
		return nil
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(l Logger) Option {
	return func(c *config) error {
		if l == nil {
			l = NopLogger{}
		}
		c.opts.Logger = l
		return nil
	}
}

// WithMaxBodySize sets the maximum body size in bytes.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n < 0 {
			return &oaserrors.ConfigError{Option: "maxBodySize", Value: n, Message: "cannot be negative"}
		}
		c.opts.MaxBodySize = n
		return nil
	}
}

// WithFormat registers a custom format validator before serving starts.
func WithFormat(typ, name string, v formats.Validator) Option {
	return func(c *config) error {
		if v == nil {
			return &oaserrors.ConfigError{Option: "format", Value: name, Message: "validator cannot be nil"}
		}
		c.formats = append(c.formats, formatEntry{typ: typ, name: name, v: v})
		return nil
	}
}

// optionSetters maps lower-cased option names to their setters.
var optionSetters = map[string]func(o *Options, v any) error{
	"additionalparameters":       boolOption(func(o *Options) *bool { return &o.AdditionalParameters }),
	"exampleresponse":            boolOption(func(o *Options) *bool { return &o.ExampleResponse }),
	"missingformatexception":     boolOption(func(o *Options) *bool { return &o.MissingFormatFatal }),
	"pathnotfoundexception":      boolOption(func(o *Options) *bool { return &o.PathNotFoundFatal }),
	"setdefaultparameters":       boolOption(func(o *Options) *bool { return &o.SetDefaultParameters }),
	"stripresponse":              boolOption(func(o *Options) *bool { return &o.StripResponse }),
	"stripresponseheaders":       boolOption(func(o *Options) *bool { return &o.StripResponseHeaders }),
	"validateerror":              boolOption(func(o *Options) *bool { return &o.ValidateError }),
	"validaterequest":            boolOption(func(o *Options) *bool { return &o.ValidateRequest }),
	"validateresponse":           boolOption(func(o *Options) *bool { return &o.ValidateResponse }),
	"validateresponseheaders":    boolOption(func(o *Options) *bool { return &o.ValidateResponseHeaders }),
	"strictemptyarrayvalidation": boolOption(func(o *Options) *bool { return &o.StrictEmptyArrayValidation }),
	"engine":                     stringOption(func(o *Options) *string { return &o.Engine }),
	"language":                   stringOption(func(o *Options) *string { return &o.Language }),
	"maxbodysize": func(o *Options, v any) error {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("cannot be negative")
		}
		o.MaxBodySize = n
		return nil
	},
	"beforehandler": func(o *Options, v any) error {
		switch h := v.(type) {
		case nil:
			o.BeforeHandler = nil
		case BeforeHandler:
			o.BeforeHandler = h
		case func(*http.Request, []ValidationError) (*http.Request, error):
			o.BeforeHandler = h
		default:
			return fmt.Errorf("expected a BeforeHandler, got %T", v)
		}
		return nil
	},
	"errorhandler": func(o *Options, v any) error {
		switch h := v.(type) {
		case nil:
			o.ErrorHandler = nil
		case ErrorHandler:
			o.ErrorHandler = h
		case func(int, string, []ValidationError) *Response:
			o.ErrorHandler = h
		default:
			return fmt.Errorf("expected an ErrorHandler, got %T", v)
		}
		return nil
	},
}

func boolOption(field func(*Options) *bool) func(*Options, any) error {
	return func(o *Options, v any) error {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return err
		}
		*field(o) = b
		return nil
	}
}

func stringOption(field func(*Options) *string) func(*Options, any) error {
	return func(o *Options, v any) error {
		s, err := cast.ToStringE(v)
		if err != nil {
			return err
		}
		*field(o) = s
		return nil
	}
}

// WithOptionMap applies string-keyed options using the middleware's option
// names (additionalParameters, missingFormatException, validateResponse,
// ...). Names match case-insensitively. Unknown names and unconvertible
// values fail with a *oaserrors.ConfigError.
func WithOptionMap(m map[string]any) Option {
	return func(c *config) error {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			set, ok := optionSetters[strings.ToLower(k)]
			if !ok {
				return &oaserrors.ConfigError{Option: k, Message: "unknown option"}
			}
			if err := set(&c.opts, m[k]); err != nil {
				return &oaserrors.ConfigError{Option: k, Value: m[k], Cause: err}
			}
		}
		return nil
	}
}

// WithConfigFile reads options from a YAML, JSON or TOML file with viper
// and applies them like WithOptionMap.
func WithConfigFile(path string) Option {
	return func(c *config) error {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return &oaserrors.ConfigError{Option: "config", Value: path, Cause: err}
		}
		return WithOptionMap(v.AllSettings())(c)
	}
}
