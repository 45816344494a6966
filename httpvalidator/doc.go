// Package httpvalidator validates HTTP exchanges against an OpenAPI 3.x
// document at runtime.
//
// A Validator sits in front of an http.Handler. For every request it
// resolves the operation, validates parameters and body, dispatches the
// handler at most once and validates the handler's response body and
// headers. Failures become JSON error responses:
//
//	{
//	  "message": "Request validation failed",
//	  "errors": [
//	    {"name": "foo", "code": "error_required", "location": "query"}
//	  ]
//	}
//
// Request failures answer 400, response failures answer 500.
//
// # Basic Usage
//
//	v, err := httpvalidator.NewFromFile("openapi.yaml",
//	    httpvalidator.WithStripResponse(true),
//	    httpvalidator.WithLogger(httpvalidator.NewSlogAdapter(slog.Default())),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", v.Middleware(mux))
//
// Process is the lower-level surface. It returns the response to send, or
// an error for the conditions configured as fatal (unmatched routes,
// formats without a validator, a BeforeHandler returning no request).
//
// # Parameters
//
// Path, query, header and cookie parameters are deserialized per their
// style and explode settings (simple, label, matrix, form, spaceDelimited,
// pipeDelimited, deepObject) and coerced to their schema type before
// validation. Single-digit integers and boolean spellings (0, 1, true,
// false) are accepted leniently at these locations. Undeclared path and
// query parameters are reported unless WithAdditionalParameters is set.
//
// # Bodies
//
// JSON bodies are validated against the media type schema with the
// configured engine (santhosh-tekuri/jsonschema or xeipuuv/gojsonschema).
// Form bodies (urlencoded and multipart) are validated per property, with
// file parts checked against the declared encoding content types. Error
// order is deterministic: missing required properties first, then
// properties in document order.
//
// With WithStripResponse, undeclared fields and null-valued type failures
// are removed from the response body instead of being reported.
//
// # Formats
//
// Custom string and number formats are registered with WithFormat or
// Validator.AddFormat. A schema naming a format nobody registered fails
// with *oaserrors.MissingFormatError unless WithMissingFormatFatal(false)
// is set, in which case the format is ignored.
package httpvalidator
