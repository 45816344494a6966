// Package oaserrors provides structured error types for oasguard.
package oaserrors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is().
// These allow quick checks without type assertions.
var (
	// ErrParse indicates the OpenAPI document could not be decoded.
	ErrParse = errors.New("parse error")

	// ErrReference indicates a reference resolution failure.
	ErrReference = errors.New("reference error")

	// ErrCircularReference indicates a circular $ref was detected.
	ErrCircularReference = errors.New("circular reference")

	// ErrResourceLimit indicates a resource limit was exceeded.
	ErrResourceLimit = errors.New("resource limit exceeded")

	// ErrConfig indicates an invalid configuration.
	ErrConfig = errors.New("configuration error")

	// ErrPathNotFound indicates a request target matched no operation.
	ErrPathNotFound = errors.New("path not found")

	// ErrMissingFormat indicates a declared format has no validator.
	ErrMissingFormat = errors.New("missing format")

	// ErrBeforeHandler indicates the before-handler hook returned no request.
	ErrBeforeHandler = errors.New("before handler contract violation")
)

// ParseError reports an OpenAPI document that could not be read or
// decoded.
type ParseError struct {
	Path    string
	Line    int // 0 when unknown
	Column  int // 0 when unknown
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Path != "" {
		b.WriteString(" in " + e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}
	appendDetails(&b, e.Message, causeText(e.Cause))
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Cause }

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ReferenceError reports a local $ref that could not be inlined.
type ReferenceError struct {
	// Ref is the reference as written, e.g. "#/components/schemas/Pet".
	Ref string
	// IsCircular is set when Ref leads back into its own expansion without
	// passing through a schema.
	IsCircular bool
	Message    string
	Cause      error
}

func (e *ReferenceError) Error() string {
	var b strings.Builder
	if e.IsCircular {
		b.WriteString("circular reference")
	} else {
		b.WriteString("reference error")
	}
	appendDetails(&b, e.Ref, e.Message, causeText(e.Cause))
	return b.String()
}

func (e *ReferenceError) Unwrap() error { return e.Cause }

// Is matches ErrReference, and ErrCircularReference for circular
// references.
func (e *ReferenceError) Is(target error) bool {
	return target == ErrReference || (target == ErrCircularReference && e.IsCircular)
}

// ResourceLimitError reports document processing that hit a hard limit,
// such as the $ref expansion depth.
type ResourceLimitError struct {
	ResourceType string // e.g. "ref_depth"
	Limit        int64
	Actual       int64 // 0 when unknown
	Message      string
}

func (e *ResourceLimitError) Error() string {
	var b strings.Builder
	b.WriteString("resource limit exceeded")
	appendDetails(&b, e.ResourceType)
	if e.Limit > 0 {
		fmt.Fprintf(&b, " (limit: %d", e.Limit)
		if e.Actual > 0 {
			fmt.Fprintf(&b, ", actual: %d", e.Actual)
		}
		b.WriteString(")")
	}
	appendDetails(&b, e.Message)
	return b.String()
}

// Is matches ErrResourceLimit.
func (e *ResourceLimitError) Is(target error) bool { return target == ErrResourceLimit }

// ConfigError reports a validator that cannot be built: a missing document,
// an unknown option name, or an option value of the wrong kind.
type ConfigError struct {
	Option  string
	Value   any // nil when not applicable
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.Option != "" {
		b.WriteString(" for " + e.Option)
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " (value: %v)", e.Value)
	}
	appendDetails(&b, e.Message, causeText(e.Cause))
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// Is matches ErrConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrConfig }

// appendDetails writes ": part" for every non-empty part.
func appendDetails(b *strings.Builder, parts ...string) {
	for _, p := range parts {
		if p != "" {
			b.WriteString(": " + p)
		}
	}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// PathNotFoundError reports a request whose method and target are not
// described by the OpenAPI document.
type PathNotFoundError struct {
	// Method is the upper-cased HTTP method
	Method string
	// Path is the request target
	Path string
}

// Error returns a human-readable error message.
func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not defined in OpenAPI document", strings.ToUpper(e.Method), e.Path)
}

// Is reports whether target matches this error type.
func (e *PathNotFoundError) Is(target error) bool {
	return target == ErrPathNotFound
}

// MissingFormatError reports a (type, format) pair that has neither a
// registered validator nor a synthesizable rule.
type MissingFormatError struct {
	// Type is the JSON type the format applies to
	Type string
	// Format is the declared format name
	Format string
	// Cause is the rule lookup failure, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *MissingFormatError) Error() string {
	msg := fmt.Sprintf("missing validator for type=%s, format=%s", e.Type, e.Format)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *MissingFormatError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *MissingFormatError) Is(target error) bool {
	return target == ErrMissingFormat
}

// BeforeHandlerError reports a before-handler hook that returned no
// rewritten request.
type BeforeHandlerError struct {
	// Cause is the error returned by the hook, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *BeforeHandlerError) Error() string {
	msg := "before handler must return a non-nil request"
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *BeforeHandlerError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *BeforeHandlerError) Is(target error) bool {
	return target == ErrBeforeHandler
}
