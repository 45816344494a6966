package pathutil

import (
	"strconv"
	"strings"

	"go.yaml.in/yaml/v4"
)

// KeyOrder records the position of every object key in a raw JSON or YAML
// document. The zero value and a nil *KeyOrder know no positions.
type KeyOrder struct {
	keys map[string]map[string]int
}

// NewKeyOrder indexes the key order of raw. Documents that cannot be parsed
// produce an empty index rather than an error.
func NewKeyOrder(raw []byte) *KeyOrder {
	ko := &KeyOrder{keys: make(map[string]map[string]int)}
	if len(raw) == 0 {
		return ko
	}
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return ko
	}
	ko.index(&root, nil)
	return ko
}

func (ko *KeyOrder) index(node *yaml.Node, path []string) {
	switch node.Kind {
	case yaml.DocumentNode:
		for _, child := range node.Content {
			ko.index(child, path)
		}
	case yaml.MappingNode:
		positions := make(map[string]int, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			if _, dup := positions[key]; !dup {
				positions[key] = i / 2
			}
			ko.index(node.Content[i+1], append(path, key))
		}
		ko.keys[pathKey(path)] = positions
	case yaml.SequenceNode:
		for i, child := range node.Content {
			ko.index(child, append(path, strconv.Itoa(i)))
		}
	}
}

// Position reports where key appeared inside the object at parent.
func (ko *KeyOrder) Position(parent []string, key string) (int, bool) {
	if ko == nil || ko.keys == nil {
		return 0, false
	}
	positions, ok := ko.keys[pathKey(parent)]
	if !ok {
		return 0, false
	}
	pos, ok := positions[key]
	return pos, ok
}

func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}
