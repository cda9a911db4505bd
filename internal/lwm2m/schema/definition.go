package schema

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// YAML tags produced by the yaml.v3 resolver for plain scalars.
const (
	tagInt   = "!!int"
	tagFloat = "!!float"
	tagBool  = "!!bool"
)

// Parse builds a Schema from a definition document.
//
// The document is a mapping of resource name to descriptor:
//
//	sensorValue:
//	  id: 5700
//	  type: Float
//	  required: true
//	  range: {min: -40, max: 125}
//	samples:
//	  id: 5701
//	  type: [Integer]
//
// JSON is valid YAML, so JSON definitions are accepted as well. Declaration
// order is preserved.
func Parse(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Err: ErrInvalidDefinition, Detail: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &ValidationError{Err: ErrInvalidDefinition, Detail: "empty document"}
	}
	return schemaFromNode(doc.Content[0])
}

// schemaFromNode converts a name → descriptor mapping node.
func schemaFromNode(node *yaml.Node) (*Schema, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &ValidationError{Err: ErrInvalidDefinition, Detail: fmt.Sprintf("line %d: expected a mapping of resources", node.Line)}
	}

	resources := make([]Resource, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		res, err := resourceFromNode(node.Content[i].Value, node.Content[i+1])
		if err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return New(resources...)
}

func resourceFromNode(name string, node *yaml.Node) (Resource, error) {
	res := Resource{Name: name}
	if node.Kind != yaml.MappingNode {
		return res, invalidDefinition(name, "line %d: descriptor must be a mapping", node.Line)
	}

	var haveID, haveType bool
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i].Value, node.Content[i+1]
		var err error
		switch key {
		case "id":
			res.ID, err = intNode(val)
			haveID = true
		case "type":
			res.Type, err = typeNode(val)
			haveType = true
		case "required":
			res.Required, err = boolNode(val)
		case "enum":
			res.Enum, err = enumNode(val)
		case "range":
			res.Range, err = rangeNode(val)
		case "schema":
			res.Schema, err = schemaFromNode(val)
			if err != nil {
				return res, nestedError(name, err)
			}
		}
		if err != nil {
			return res, invalidDefinition(name, "line %d: %s: %v", val.Line, key, err)
		}
	}

	if !haveID {
		return res, invalidDefinition(name, "missing id")
	}
	if !haveType {
		return res, invalidDefinition(name, "missing type")
	}
	return res, nil
}

// nestedError prefixes the resource path of an error from a nested schema.
func nestedError(parent string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		out := *ve
		if out.Resource == "" {
			out.Resource = parent
		} else {
			out.Resource = parent + "." + out.Resource
		}
		return &out
	}
	return err
}

func intNode(n *yaml.Node) (int, error) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != tagInt {
		return 0, fmt.Errorf("%q is not an integer", n.Value)
	}
	v, err := strconv.ParseInt(n.Value, 0, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > maxResourceID {
		return 0, fmt.Errorf("%d out of range 0-%d", v, maxResourceID)
	}
	return int(v), nil
}

func boolNode(n *yaml.Node) (bool, error) {
	if n.Kind != yaml.ScalarNode || n.ShortTag() != tagBool {
		return false, fmt.Errorf("%q is not a boolean", n.Value)
	}
	var b bool
	err := n.Decode(&b)
	return b, err
}

func floatNode(n *yaml.Node) (float64, error) {
	if n.Kind != yaml.ScalarNode || (n.ShortTag() != tagInt && n.ShortTag() != tagFloat) {
		return 0, fmt.Errorf("%q is not a number", n.Value)
	}
	var f float64
	err := n.Decode(&f)
	return f, err
}

// typeNode accepts "Kind" or a one-element sequence "[Kind]". The string
// form "[Kind]" is accepted too, since JSON definitions may quote it.
func typeNode(n *yaml.Node) (Type, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		v := n.Value
		if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
			k, err := ParseKind(strings.TrimSpace(v[1 : len(v)-1]))
			return ArrayOf(k), err
		}
		k, err := ParseKind(v)
		return Scalar(k), err
	case yaml.SequenceNode:
		if len(n.Content) != 1 || n.Content[0].Kind != yaml.ScalarNode {
			return Type{}, fmt.Errorf("array type must name exactly one kind")
		}
		k, err := ParseKind(n.Content[0].Value)
		return ArrayOf(k), err
	default:
		return Type{}, fmt.Errorf("unsupported type declaration")
	}
}

func enumNode(n *yaml.Node) ([]any, error) {
	if n.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("enum must be a list")
	}
	out := make([]any, 0, len(n.Content))
	for _, item := range n.Content {
		var v any
		if err := item.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func rangeNode(n *yaml.Node) (*Range, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("range must be a mapping with min and max")
	}
	var r Range
	var haveMin, haveMax bool
	for i := 0; i+1 < len(n.Content); i += 2 {
		var err error
		switch n.Content[i].Value {
		case "min":
			r.Min, err = floatNode(n.Content[i+1])
			haveMin = true
		case "max":
			r.Max, err = floatNode(n.Content[i+1])
			haveMax = true
		}
		if err != nil {
			return nil, err
		}
	}
	if !haveMin || !haveMax {
		return nil, fmt.Errorf("range needs both min and max")
	}
	return &r, nil
}
