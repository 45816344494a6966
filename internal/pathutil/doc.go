// Package pathutil addresses values inside decoded JSON documents.
//
// Error records name the offending value with a dotted path such as
// "person.email" or "filter.ids.1". [PathBuilder] assembles those names
// incrementally, [Lookup] and [Delete] read and remove values by path, and
// [KeyOrder] remembers the order in which object keys appeared in the raw
// document so that errors can be reported in document order even though Go
// maps are unordered.
//
// # Names
//
// [Join] builds a name with a pooled [PathBuilder], skipping empty parts:
//
//	name := pathutil.Join("", "filter", "ids", "1") // "filter.ids.1"
//
// # JSON Pointers
//
// [SplitPointer] turns a local RFC 6901 pointer (as used by $ref) into
// path tokens:
//
//	tokens, err := pathutil.SplitPointer("#/components/schemas/Pet")
//	// tokens == []string{"components", "schemas", "Pet"}
package pathutil
