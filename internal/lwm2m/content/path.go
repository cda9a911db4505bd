package content

import (
	"fmt"
	"strconv"
	"strings"
)

// Path addresses an object, an object instance or a resource.
type Path struct {
	Object   uint16
	Instance uint16
	Resource uint16

	// Depth is the number of IDs present: 1 object, 2 instance, 3 resource.
	Depth int
}

// ObjectPath returns the path of an object.
func ObjectPath(object uint16) Path {
	return Path{Object: object, Depth: 1}
}

// InstancePath returns the path of an object instance.
func InstancePath(object, instance uint16) Path {
	return Path{Object: object, Instance: instance, Depth: 2}
}

// ResourcePath returns the path of a resource.
func ResourcePath(object, instance, resource uint16) Path {
	return Path{Object: object, Instance: instance, Resource: resource, Depth: 3}
}

// ParsePath parses "/3", "/3/0" or "/3/0/5". The leading slash is optional.
func ParsePath(s string) (Path, error) {
	trimmed := strings.Trim(s, "/")
	if trimmed == "" {
		return Path{}, fmt.Errorf("%w: %q", ErrInvalidPath, s)
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) > 3 {
		return Path{}, fmt.Errorf("%w: %q has more than three segments", ErrInvalidPath, s)
	}

	var ids [3]uint16
	for i, part := range parts {
		n, err := strconv.ParseUint(part, 10, 16)
		if err != nil {
			return Path{}, fmt.Errorf("%w: %q: segment %q", ErrInvalidPath, s, part)
		}
		ids[i] = uint16(n)
	}
	return Path{Object: ids[0], Instance: ids[1], Resource: ids[2], Depth: len(parts)}, nil
}

// IsObject reports whether p addresses a whole object.
func (p Path) IsObject() bool { return p.Depth == 1 }

// IsInstance reports whether p addresses an object instance.
func (p Path) IsInstance() bool { return p.Depth == 2 }

// IsResource reports whether p addresses a single resource.
func (p Path) IsResource() bool { return p.Depth == 3 }

// String renders p as "/object[/instance[/resource]]".
func (p Path) String() string {
	var b strings.Builder
	ids := []uint16{p.Object, p.Instance, p.Resource}
	for i := 0; i < p.Depth && i < len(ids); i++ {
		b.WriteByte('/')
		b.WriteString(strconv.Itoa(int(ids[i])))
	}
	return b.String()
}

// BaseName returns the SenML base name for records below the instance,
// e.g. "/3/0/". Object paths have no instance and return "".
func (p Path) BaseName() string {
	if p.Depth < 2 {
		return ""
	}
	return fmt.Sprintf("/%d/%d/", p.Object, p.Instance)
}
