// Package oaserrors provides structured error types for the oasguard library.
//
// Import path: github.com/erraggy/oasguard/oaserrors
//
// Only fatal conditions are reported as Go errors. Request and response
// validation failures are returned as values by the httpvalidator package
// and never surface here.
//
// # Error Types
//
//   - [ParseError]: YAML/JSON decoding failures of the OpenAPI document
//   - [ReferenceError]: $ref resolution failures and circular references
//   - [ResourceLimitError]: resource exhaustion while loading a document
//   - [ConfigError]: unknown option names, missing documents
//   - [PathNotFoundError]: unmatched routes when path-not-found is fatal
//   - [MissingFormatError]: formats with no validator when missing formats are fatal
//   - [BeforeHandlerError]: a before-handler hook that returned no request
//
// # Sentinel Errors
//
// Each error type has a corresponding sentinel error for use with errors.Is():
//
//   - [ErrParse], [ErrReference], [ErrCircularReference], [ErrResourceLimit]
//   - [ErrConfig], [ErrPathNotFound], [ErrMissingFormat], [ErrBeforeHandler]
//
// # Usage Examples
//
//	v, err := httpvalidator.NewFromFile("openapi.yaml", httpvalidator.WithOptionMap(m))
//	if errors.Is(err, oaserrors.ErrConfig) {
//	    var cfgErr *oaserrors.ConfigError
//	    if errors.As(err, &cfgErr) {
//	        log.Fatalf("bad option %q", cfgErr.Option)
//	    }
//	}
//
// # Error Chaining
//
// Error types carrying a Cause field support Unwrap(), so the root cause
// stays reachable:
//
//	var parseErr *oaserrors.ParseError
//	if errors.As(err, &parseErr) && errors.Is(parseErr.Cause, os.ErrNotExist) {
//	    // the document file does not exist
//	}
package oaserrors
