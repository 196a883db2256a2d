package parse

import (
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// expansionBudget caps the number of values a single block may produce once
// anchors and aliases are expanded, so an alias bomb inside an otherwise
// small block cannot blow up memory.
const expansionBudget = 1 << 20

// decodeBlock parses one metadata block's raw text into a field map.
// Whitespace-only content yields an empty map. baseLine is the document
// line of the block's first content line.
func decodeBlock(raw string, baseLine int) (map[string]Value, error) {
	if len(raw) > MaxYAMLSize {
		return nil, errf(KindYamlBlockTooLarge, baseLine,
			"metadata block exceeds %d bytes", MaxYAMLSize)
	}
	if strings.TrimSpace(raw) == "" {
		return map[string]Value{}, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &root); err != nil {
		return nil, yamlError(err, baseLine)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return map[string]Value{}, nil
	}

	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, errf(KindYamlSyntax, nodeLine(top, baseLine),
			"metadata block must be a YAML mapping")
	}

	conv := &converter{baseLine: baseLine, budget: expansionBudget, visiting: map[*yaml.Node]bool{}}
	v, err := conv.value(top, 1)
	if err != nil {
		return nil, err
	}
	m, _ := v.Map()
	return m, nil
}

// converter turns a yaml.Node tree into Values with an explicit depth
// counter, so nesting depth is bounded by MaxYAMLDepth rather than by the
// stack, and custom tags are stripped along the way.
type converter struct {
	baseLine int
	budget   int
	visiting map[*yaml.Node]bool
}

func (c *converter) value(n *yaml.Node, depth int) (Value, error) {
	c.budget--
	if c.budget < 0 {
		return Null, errf(KindYamlBlockTooLarge, nodeLine(n, c.baseLine),
			"metadata block expands past supported size")
	}

	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias == nil {
			return Null, nil
		}
		if c.visiting[n.Alias] {
			return Null, errf(KindYamlSyntax, nodeLine(n, c.baseLine),
				"recursive YAML alias %q", n.Value)
		}
		c.visiting[n.Alias] = true
		v, err := c.value(n.Alias, depth)
		delete(c.visiting, n.Alias)
		return v, err

	case yaml.ScalarNode:
		return c.scalar(n)

	case yaml.SequenceNode:
		if depth > MaxYAMLDepth {
			return Null, depthError(n, c.baseLine)
		}
		out := make([]Value, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := c.value(item, depth+1)
			if err != nil {
				return Null, err
			}
			out = append(out, v)
		}
		return Seq(out), nil

	case yaml.MappingNode:
		if depth > MaxYAMLDepth {
			return Null, depthError(n, c.baseLine)
		}
		out := make(map[string]Value, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind == yaml.AliasNode && key.Alias != nil {
				key = key.Alias
			}
			if key.Kind != yaml.ScalarNode {
				return Null, errf(KindYamlSyntax, nodeLine(key, c.baseLine),
					"mapping keys must be scalars")
			}
			v, err := c.value(n.Content[i+1], depth+1)
			if err != nil {
				return Null, err
			}
			out[key.Value] = v
		}
		return Map(out), nil

	default:
		return Null, nil
	}
}

// scalar resolves one scalar node. Standard YAML tags decode to their
// JSON-equivalent type; custom tags (for example !fill) are dropped and the
// underlying text kept as a string.
func (c *converter) scalar(n *yaml.Node) (Value, error) {
	if customTag(n.Tag) {
		return String(n.Value), nil
	}

	var decoded any
	if err := n.Decode(&decoded); err != nil {
		return Null, yamlError(err, c.baseLine)
	}

	switch t := decoded.(type) {
	case nil:
		return Null, nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t)), nil
		}
		return Int(int64(t)), nil
	case float64:
		return Float(t), nil
	case time.Time:
		return String(n.Value), nil
	default:
		return String(n.Value), nil
	}
}

// customTag reports whether tag is an application-specific YAML tag rather
// than a standard !!-prefixed one.
func customTag(tag string) bool {
	return tag != "" && strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

func depthError(n *yaml.Node, baseLine int) *Error {
	return errf(KindYamlDepthExceeded, nodeLine(n, baseLine),
		"YAML nesting exceeds %d levels", MaxYAMLDepth)
}

// nodeLine maps a node's block-relative line onto the document.
func nodeLine(n *yaml.Node, baseLine int) int {
	if n == nil || n.Line <= 0 {
		return 0
	}
	return baseLine + n.Line - 1
}
