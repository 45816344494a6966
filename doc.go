// Package oasguard validates live HTTP traffic against OpenAPI 3.x documents.
//
// oasguard checks every request an API receives and every response it
// sends against the operation the OpenAPI document declares for them. It
// is used as net/http middleware or as a standalone validating reverse
// proxy.
//
// # Packages
//
//   - httpvalidator: the middleware. Request and response validation,
//     parameter deserialization, strip mode and example responses.
//   - openapi: document loading (JSON or YAML), local $ref inlining, route
//     matching and typed operation views.
//   - engine: JSON Schema engine adapters (santhosh-tekuri/jsonschema and
//     xeipuuv/gojsonschema) behind one failure tree.
//   - transcode: OpenAPI schema to JSON Schema conversion.
//   - formats: the custom format registry and named rules such as
//     "between(10,20)" or "country-code".
//   - oaserrors: typed errors with sentinels for errors.Is.
//
// # Quick Start
//
//	v, err := httpvalidator.NewFromFile("openapi.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(http.ListenAndServe(":8080", v.Middleware(mux)))
//
// Requests that fail validation are answered with 400 and a JSON body
// listing every failure; handler responses that do not match the document
// are replaced with a 500.
//
// # Command Line
//
// The oasguard command runs the same validator in front of an upstream
// service:
//
//	oasguard proxy -spec openapi.yaml -upstream http://localhost:9000 -listen :8080
//	oasguard check openapi.yaml
package oasguard
