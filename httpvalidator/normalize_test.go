package httpvalidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erraggy/oasguard/engine"
	"github.com/erraggy/oasguard/internal/pathutil"
)

func leaf(keyword string, path []string, value any, args map[string]any) *engine.Node {
	return &engine.Node{Keyword: keyword, Path: path, Value: value, Args: args}
}

func TestNormalize_Order(t *testing.T) {
	raw := []byte(`{"zeta":1,"alpha":"x","list":[{"b":1,"a":2}],"person":{"email":"e","extra":1}}`)
	tree := &engine.Node{Keyword: engine.KeywordGroup, Causes: []*engine.Node{
		leaf(engine.KeywordAdditionalProperties, []string{"person"}, map[string]any{"email": "e", "extra": 1},
			map[string]any{engine.ArgProperties: []string{"extra"}}),
		leaf(engine.KeywordType, []string{"alpha"}, "x", map[string]any{engine.ArgExpected: "integer", engine.ArgUsed: "string"}),
		leaf(engine.KeywordFormat, []string{"person", "email"}, "e", map[string]any{engine.ArgFormat: "email"}),
		leaf(engine.KeywordType, []string{"list", "0", "a"}, 2, map[string]any{engine.ArgExpected: "string", engine.ArgUsed: "integer"}),
		leaf(engine.KeywordType, []string{"list", "0", "b"}, 1, map[string]any{engine.ArgExpected: "string", engine.ArgUsed: "integer"}),
		leaf(engine.KeywordRequired, []string{"person"}, nil, map[string]any{engine.ArgMissing: []string{"name"}}),
		leaf(engine.KeywordType, []string{"zeta"}, 1, map[string]any{engine.ArgExpected: "string", engine.ArgUsed: "integer"}),
		leaf(engine.KeywordRequired, nil, nil, map[string]any{engine.ArgMissing: []any{"id"}}),
	}}

	errs := normalize(tree, "", LocationBody, pathutil.NewKeyOrder(raw))
	names := make([]string, len(errs))
	for i, e := range errs {
		names[i] = e.Name
	}
	assert.Equal(t, []string{
		"id",
		"zeta",
		"alpha",
		"list.0.b",
		"list.0.a",
		"person.name",
		"person.email",
		"person.extra",
	}, names)

	byName := map[string]ValidationError{}
	for _, e := range errs {
		byName[e.Name] = e
	}
	assert.Equal(t, CodeRequired, byName["person.name"].Code)
	assert.False(t, byName["person.name"].HasValue)
	assert.Equal(t, CodeAdditional, byName["person.extra"].Code)
	assert.Equal(t, 1, byName["person.extra"].Value)
	assert.Equal(t, "error_format", byName["person.email"].Code)
	assert.Equal(t, "email", byName["person.email"].Arg("format"))
}

func TestNormalize_WithoutOrder(t *testing.T) {
	tree := &engine.Node{Keyword: engine.KeywordGroup, Causes: []*engine.Node{
		leaf(engine.KeywordEnum, []string{"2"}, "c", map[string]any{engine.ArgExpected: []any{"a", "b"}}),
		leaf(engine.KeywordEnum, []string{"10"}, "d", map[string]any{engine.ArgExpected: []any{"a", "b"}}),
		leaf(engine.KeywordMinLength, []string{"0"}, "", map[string]any{engine.ArgMin: 1}),
	}}
	errs := normalize(tree, "list", LocationQuery, nil)
	require.Len(t, errs, 3)
	assert.Equal(t, "list.0", errs[0].Name)
	assert.Equal(t, "error_minLength", errs[0].Code)
	assert.Equal(t, "list.2", errs[1].Name)
	assert.Equal(t, "list.10", errs[2].Name)
	for _, e := range errs {
		assert.Equal(t, LocationQuery, e.Location)
	}
}

func TestNormalize_SingleLeaf(t *testing.T) {
	errs := normalize(leaf(engine.KeywordFalse, []string{"x"}, true, nil), "obj", LocationBody, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "obj.x", errs[0].Name)
	assert.Equal(t, CodeAdditional, errs[0].Code)

	assert.Nil(t, normalize(nil, "obj", LocationBody, nil))
}
