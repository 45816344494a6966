// Package openapi reads OpenAPI 3.x documents for runtime validation.
//
// A [Document] is loaded from JSON or YAML with [Load] or [Parse]. Local
// "$ref" pointers are inlined while loading, so every schema handed out by
// this package is self-contained. A reference that points back into its own
// expansion is replaced by an empty schema.
//
// [Document.Match] resolves a method and request target to an [Operation]
// and its path parameter values:
//
//	doc, err := openapi.Load("api.yaml")
//	if err != nil {
//		return err
//	}
//	op, params, ok := doc.Match("GET", "/path/100/path/200?x=1")
//
// Operations expose their merged parameter list, request body, and responses.
// Response lookup follows the usual precedence of exact status code, then
// status class ("2XX"), then "default".
package openapi
