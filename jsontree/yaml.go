package jsontree

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// ToYAML projects n onto a yaml.v3 node, keeping member order.
func ToYAML(n *Node) *yaml.Node {
	switch KindOf(n) {
	case Object:
		y := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if len(n.Fields) == 0 {
			y.Style = yaml.FlowStyle
		}
		for _, f := range n.Fields {
			y.Content = append(y.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Name},
				ToYAML(f.Value))
		}
		return y
	case Array:
		y := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if len(n.Items) == 0 {
			y.Style = yaml.FlowStyle
		}
		for _, it := range n.Items {
			y.Content = append(y.Content, ToYAML(it))
		}
		return y
	case Scalar:
		switch n.Type {
		case Number:
			tag := "!!int"
			if strings.ContainsAny(n.Value, ".eE") {
				tag = "!!float"
			}
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: n.Value}
		case Bool:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: n.Value}
		default:
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: n.Value}
		}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

// MarshalYAML implements yaml.Marshaler.
func (n *Node) MarshalYAML() (any, error) {
	return ToYAML(n), nil
}
