package httpvalidator

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stripSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"foo":  map[string]any{"type": "string"},
		"note": map[string]any{"type": "string"},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":       "object",
				"properties": map[string]any{"id": map[string]any{"type": "integer"}},
			},
		},
	},
}

func checkBody(t *testing.T, v *Validator, schema map[string]any, raw string, strip bool) ([]ValidationError, any) {
	t.Helper()
	data, err := decodeJSON([]byte(raw))
	require.NoError(t, err)
	errs, body, err := v.validateBody(bodyCheck{name: NameResponseBody, schema: schema, data: data, raw: []byte(raw), strip: strip})
	require.NoError(t, err)
	return errs, body
}

func TestValidateBody_Strip(t *testing.T) {
	v := mustValidator(t)
	raw := `{"foo":"a","junk":1,"items":[{"id":1,"x":1},{"id":2,"y":2,"z":3}],"note":null}`
	want := `{"foo":"a","items":[{"id":1},{"id":2}]}`

	errs, body := checkBody(t, v, stripSchema, raw, true)
	assert.Empty(t, errs)
	out, err := encodeJSON(body)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(out))

	// stripping a stripped body changes nothing
	errs, again := checkBody(t, v, stripSchema, string(out), true)
	assert.Empty(t, errs)
	out2, err := encodeJSON(again)
	require.NoError(t, err)
	assert.JSONEq(t, want, string(out2))

	t.Run("reported without strip", func(t *testing.T) {
		errs, body := checkBody(t, v, stripSchema, raw, false)
		require.Len(t, errs, 1)
		assert.Equal(t, "note", errs[0].Name)
		assert.Equal(t, CodeType, errs[0].Code)
		out, err := encodeJSON(body)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
	})

	t.Run("other failures survive", func(t *testing.T) {
		errs, body := checkBody(t, v, stripSchema, `{"foo":1,"junk":true}`, true)
		require.Len(t, errs, 1)
		assert.Equal(t, "foo", errs[0].Name)
		out, err := encodeJSON(body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"foo":1}`, string(out))
	})
}

func TestValidateBody_EmptyArrayAmbiguity(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"meta": map[string]any{"type": "object"},
		},
	}
	raw := `{"meta":[]}`

	errs, _ := checkBody(t, mustValidator(t), schema, raw, false)
	assert.Empty(t, errs)

	errs, _ = checkBody(t, mustValidator(t, WithStrictEmptyArrayValidation(true)), schema, raw, false)
	require.Len(t, errs, 1)
	assert.Equal(t, "meta", errs[0].Name)
	assert.Equal(t, "array", errs[0].Arg("used"))

	errs, _ = checkBody(t, mustValidator(t), schema, `{"meta":[1]}`, false)
	assert.Len(t, errs, 1)
}

func TestValidateBody_Root(t *testing.T) {
	v := mustValidator(t)

	errs, _ := checkBody(t, v, map[string]any{"type": "object"}, `[1,2]`, false)
	require.Len(t, errs, 1)
	assert.Equal(t, NameResponseBody, errs[0].Name)
	assert.Equal(t, CodeType, errs[0].Code)

	errs, body, err := v.validateBody(bodyCheck{name: NameRequestBody, schema: map[string]any{"type": "object"}})
	require.NoError(t, err)
	assert.Nil(t, body)
	require.Len(t, errs, 1)
	assert.Equal(t, NameRequestBody, errs[0].Name)
	assert.Equal(t, CodeRequired, errs[0].Code)
}

func TestValidateBody_Valid(t *testing.T) {
	v := mustValidator(t)
	schema := map[string]any{"type": "object", "properties": map[string]any{"foo": map[string]any{"type": "string"}}}
	data := map[string]any{"foo": "a"}

	for _, strip := range []bool{false, true} {
		errs, body, err := v.validateBody(bodyCheck{name: NameRequestBody, schema: schema, data: data, strip: strip})
		require.NoError(t, err)
		assert.Empty(t, errs)
		assert.Equal(t, data, body)
	}
}

func TestValidateBody_OneOfAmbiguous(t *testing.T) {
	schema := map[string]any{"oneOf": []any{
		map[string]any{"type": "integer"},
		map[string]any{"type": "number"},
	}}
	for _, name := range []string{"jsonschema", "gojsonschema"} {
		t.Run(name, func(t *testing.T) {
			v := mustValidator(t, WithEngine(name))
			errs, _ := checkBody(t, v, schema, `5`, false)
			require.Len(t, errs, 1)
			assert.Equal(t, NameResponseBody, errs[0].Name)
			assert.Equal(t, "error_oneOf", errs[0].Code)
			assert.True(t, errs[0].HasValue)
		})
	}
}

func TestReadBody(t *testing.T) {
	data, err := readBody(strings.NewReader("hello"), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	data, err = readBody(strings.NewReader("hello world"), 5)
	assert.True(t, errors.Is(err, errBodyTooLarge))
	assert.Equal(t, []byte("hello"), data)

	data, err = readBody(nil, 5)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDecodeJSON(t *testing.T) {
	v, err := decodeJSON([]byte("  "))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = decodeJSON([]byte(`{"n":12345678901234567890}`))
	require.NoError(t, err)
	assert.Equal(t, "12345678901234567890", v.(map[string]any)["n"].(interface{ String() string }).String())

	_, err = decodeJSON([]byte(`{} {}`))
	assert.Error(t, err)

	_, err = decodeJSON([]byte(`{`))
	assert.Error(t, err)
}

func TestEncodeJSON(t *testing.T) {
	out, err := encodeJSON(map[string]any{"html": "<b>&</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<b>&</b>"}`, string(out))
	assert.False(t, bytes.HasSuffix(out, []byte("\n")))
}
