package httpvalidator

import (
	"context"
	"net/http"
	"strings"

	"github.com/erraggy/oasguard/engine"
	"github.com/erraggy/oasguard/formats"
	"github.com/erraggy/oasguard/oaserrors"
	"github.com/erraggy/oasguard/openapi"
)

// Validator validates HTTP exchanges against an OpenAPI 3.x document.
//
// Create one with New or NewFromFile and either call Process directly or
// wrap a handler with Middleware:
//
//	v, err := httpvalidator.NewFromFile("openapi.yaml",
//	    httpvalidator.WithStripResponse(true),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", v.Middleware(mux))
//
// A Validator is safe for concurrent use.
type Validator struct {
	doc      *openapi.Document
	opts     Options
	registry *formats.Registry
	engine   engine.Engine
	logger   Logger
}

// New creates a Validator for doc.
//
// Returns a *oaserrors.ConfigError if doc is nil or an option is invalid.
func New(doc *openapi.Document, opts ...Option) (*Validator, error) {
	if doc == nil {
		return nil, &oaserrors.ConfigError{Option: "document", Message: "cannot be nil"}
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.opts.Logger == nil {
		cfg.opts.Logger = NopLogger{}
	}
	if cfg.opts.MaxBodySize <= 0 {
		cfg.opts.MaxBodySize = DefaultMaxBodySize
	}

	registry := formats.NewRegistry()
	for _, f := range cfg.formats {
		registry.Add(f.typ, f.name, f.v)
	}
	eng, err := engine.New(cfg.opts.Engine, registry,
		engine.WithDraft(engine.DraftFor(doc.Version)),
		engine.WithLanguage(cfg.opts.Language),
	)
	if err != nil {
		return nil, &oaserrors.ConfigError{Option: "engine", Value: cfg.opts.Engine, Cause: err}
	}

	return &Validator{
		doc:      doc,
		opts:     cfg.opts,
		registry: registry,
		engine:   eng,
		logger:   cfg.opts.Logger.With("document", doc.Source),
	}, nil
}

// NewFromFile loads the OpenAPI document at path and creates a Validator.
// A missing file is a *oaserrors.ConfigError; an unreadable document is a
// *oaserrors.ParseError.
func NewFromFile(path string, opts ...Option) (*Validator, error) {
	doc, err := openapi.Load(path)
	if err != nil {
		return nil, err
	}
	return New(doc, opts...)
}

// AddFormat registers a format validator. Registering the same type and
// name again replaces the previous validator.
func (v *Validator) AddFormat(typ, name string, f formats.Validator) {
	v.registry.Add(typ, name, f)
}

// Options returns the validator's configuration.
func (v *Validator) Options() Options {
	return v.opts
}

// Document returns the OpenAPI document.
func (v *Validator) Document() *openapi.Document {
	return v.doc
}

// Process validates req, dispatches it to next at most once and validates
// the response. Validation failures are returned as 400 or 500 responses.
// A non-nil error is returned only for unmatched routes with
// PathNotFoundFatal, formats without a validator with MissingFormatFatal,
// and BeforeHandler contract violations.
func (v *Validator) Process(req *http.Request, next http.Handler) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != "" {
		return dispatch(next, req), nil
	}

	op, pathValues, found := v.doc.Match(method, req.URL.EscapedPath())
	if !found {
		if v.opts.PathNotFoundFatal {
			return nil, &oaserrors.PathNotFoundError{Method: method, Path: req.URL.Path}
		}
		v.logger.Debug("path not in document, passing through", "method", method, "path", req.URL.Path)
		return dispatch(next, req), nil
	}
	log := v.logger.With("method", method, "path", op.Path)

	var resp *Response
	var st *requestState
	if v.opts.ValidateRequest {
		var err error
		st, err = v.validateRequest(req, op, pathValues)
		if err != nil {
			return nil, err
		}
		req = st.req
	}

	switch {
	case st != nil && len(st.errs) > 0:
		log.Debug("request validation failed", "errors", len(st.errs))
		if v.opts.BeforeHandler != nil {
			failed := req.WithContext(context.WithValue(req.Context(), errorsKey, st.errs))
			rewritten, err := v.opts.BeforeHandler(failed, st.errs)
			if rewritten == nil {
				return nil, &oaserrors.BeforeHandlerError{Cause: err}
			}
			if err != nil {
				log.Warn("before handler error ignored", "error", err)
			}
			resp = dispatch(next, rewritten)
			break
		}
		resp = v.errorResponse(http.StatusBadRequest, "Request validation failed", st.errs)
		if !v.opts.ValidateError {
			return resp, nil
		}
	default:
		resp = dispatch(next, req)
	}

	if resp.StatusCode == http.StatusNoContent {
		return resp, nil
	}
	if v.opts.ExampleResponse && len(strings.TrimSpace(string(resp.Body))) == 0 {
		resp = v.exampleResponse(resp, req, op, st)
	}

	if v.opts.ValidateResponse {
		errs, out, err := v.validateResponseBody(resp, op)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			log.Warn("response validation failed", "status", resp.StatusCode, "errors", len(errs))
			return v.errorResponse(http.StatusInternalServerError, "Response validation failed", errs), nil
		}
		resp = out
	}
	if v.opts.ValidateResponseHeaders {
		errs, out, err := v.validateResponseHeaders(resp, op)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			log.Warn("response header validation failed", "status", resp.StatusCode, "errors", len(errs))
			return v.errorResponse(http.StatusInternalServerError, "Response validation failed", errs), nil
		}
		resp = out
	}
	return resp, nil
}

// Middleware wraps next with Process. Errors returned by Process are
// logged and answered with a 500 JSON body.
func (v *Validator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, err := v.Process(r, next)
		if err != nil {
			v.logger.Error("request processing failed", "method", r.Method, "path", r.URL.Path, "error", err)
			resp = v.errorResponse(http.StatusInternalServerError, err.Error(), nil)
		}
		if werr := resp.Write(w); werr != nil {
			v.logger.Debug("response write failed", "error", werr)
		}
	})
}

// errorResponse builds a failure response through ErrorHandler when set.
func (v *Validator) errorResponse(status int, message string, errs []ValidationError) *Response {
	if v.opts.ErrorHandler != nil {
		if resp := v.opts.ErrorHandler(status, message, errs); resp != nil {
			return resp
		}
	}
	return ErrorResponse(status, message, errs)
}

// dispatch runs next once and captures its response.
func dispatch(next http.Handler, req *http.Request) *Response {
	rec := newRecorder()
	next.ServeHTTP(rec, req)
	return rec.result()
}
