package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"foo": "bar",
		"person": map[string]any{
			"name":  "Ada",
			"extra": "x",
		},
		"list": []any{
			map[string]any{"id": 1, "junk": true},
			map[string]any{"id": 2},
		},
	}
}

func TestLookup(t *testing.T) {
	doc := sampleDoc()

	tests := []struct {
		name   string
		path   []string
		want   any
		wantOK bool
	}{
		{"root", nil, doc, true},
		{"top level", []string{"foo"}, "bar", true},
		{"nested", []string{"person", "name"}, "Ada", true},
		{"array element", []string{"list", "1", "id"}, 2, true},
		{"missing key", []string{"nope"}, nil, false},
		{"bad index", []string{"list", "x"}, nil, false},
		{"out of range", []string{"list", "9"}, nil, false},
		{"through scalar", []string{"foo", "x"}, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(doc, tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	t.Run("removes nested key without touching the input", func(t *testing.T) {
		doc := sampleDoc()
		out := Delete(doc, []string{"person", "extra"})

		person := out.(map[string]any)["person"].(map[string]any)
		assert.NotContains(t, person, "extra")
		assert.Equal(t, "Ada", person["name"])

		// original untouched
		assert.Contains(t, doc["person"].(map[string]any), "extra")
	})

	t.Run("removes key inside array element", func(t *testing.T) {
		out := Delete(sampleDoc(), []string{"list", "0", "junk"})
		first := out.(map[string]any)["list"].([]any)[0].(map[string]any)
		assert.Equal(t, map[string]any{"id": 1}, first)
	})

	t.Run("removes array element", func(t *testing.T) {
		out := Delete([]any{"a", "b", "c"}, []string{"1"})
		assert.Equal(t, []any{"a", "c"}, out)
	})

	t.Run("missing path is a no-op", func(t *testing.T) {
		doc := sampleDoc()
		out := Delete(doc, []string{"person", "missing", "deeper"})
		assert.Equal(t, doc, out)
	})

	t.Run("empty path returns input", func(t *testing.T) {
		assert.Equal(t, "x", Delete("x", nil))
	})
}

func TestClone(t *testing.T) {
	doc := sampleDoc()
	cp := Clone(doc).(map[string]any)
	cp["person"].(map[string]any)["name"] = "Grace"
	assert.Equal(t, "Ada", doc["person"].(map[string]any)["name"])
}

func TestSplitPointer(t *testing.T) {
	tests := []struct {
		ref     string
		want    []string
		wantErr bool
	}{
		{"#", nil, false},
		{"#/components/schemas/Pet", []string{"components", "schemas", "Pet"}, false},
		{"#/paths/~1pets~1{id}/get", []string{"paths", "/pets/{id}", "get"}, false},
		{"#/a~0b", []string{"a~b"}, false},
		{"other.yaml#/x", nil, true},
		{"#x", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := SplitPointer(tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
