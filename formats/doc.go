// Package formats holds the format validators used for the "format" schema
// keyword.
//
// A [Registry] maps a (type, format) pair to a [Validator]. It starts with
// the OpenAPI formats (int32, int64, float, double, byte, binary, password)
// and learns the rest in one of two ways: callers register their own with
// [Registry.Add], or [Registry.Ensure] synthesizes one from a rule
// expression. Rule expressions name a check and its arguments:
//
//	phone
//	country-code
//	between(10, 20)
//	startsWith('+358')
//
// Rules are evaluated by github.com/go-playground/validator. A name with no
// mapping is tried as a validator tag directly, so "uuid" or "semver" work
// as formats too. Anything else is reported as
// *oaserrors.MissingFormatError.
//
// Schema engines call [Registry.Check], which picks the entry matching the
// instance's JSON type and lets values of other types pass.
package formats
