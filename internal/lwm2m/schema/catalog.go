package schema

import (
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// ObjectDefinition binds a Schema to an LWM2M object ID.
type ObjectDefinition struct {
	ID       uint16  `json:"id"`
	Name     string  `json:"name"`
	Multiple bool    `json:"multiple"`
	Schema   *Schema `json:"-"`
}

// Catalog maps object IDs to their schemas.
//
// Catalogs are built at startup and injected into codecs and routers; there
// is no package-level catalog. Registering an ID again replaces the earlier
// definition, so site-specific files can override the built-in objects.
type Catalog struct {
	mu      sync.RWMutex
	objects map[uint16]ObjectDefinition
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{objects: make(map[uint16]ObjectDefinition)}
}

// Register adds or replaces the definition for an object ID.
func (c *Catalog) Register(id uint16, name string, s *Schema) error {
	return c.RegisterDefinition(ObjectDefinition{ID: id, Name: name, Schema: s})
}

// RegisterDefinition adds or replaces a full object definition.
func (c *Catalog) RegisterDefinition(def ObjectDefinition) error {
	if def.Schema == nil {
		return fmt.Errorf("%w: object %d has no schema", ErrInvalidDefinition, def.ID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[def.ID] = def
	return nil
}

// Lookup returns the schema registered for an object ID.
func (c *Catalog) Lookup(id uint16) (*Schema, error) {
	def, err := c.Definition(id)
	if err != nil {
		return nil, err
	}
	return def.Schema, nil
}

// Definition returns the full definition registered for an object ID.
func (c *Catalog) Definition(id uint16) (ObjectDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.objects[id]
	if !ok {
		return ObjectDefinition{}, fmt.Errorf("%w: %d", ErrObjectNotFound, id)
	}
	return def, nil
}

// Objects returns all definitions ordered by object ID.
func (c *Catalog) Objects() []ObjectDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ObjectDefinition, 0, len(c.objects))
	for _, def := range c.objects {
		out = append(out, def)
	}
	slices.SortFunc(out, func(a, b ObjectDefinition) int { return int(a.ID) - int(b.ID) })
	return out
}

// Len returns the number of registered objects.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.objects)
}

// LoadFS registers every *.yaml, *.yml and *.json object definition in the
// root of fsys, in lexical file order. It returns the number of objects
// loaded.
func (c *Catalog) LoadFS(fsys fs.FS) (int, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return 0, fmt.Errorf("reading object definitions: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch path.Ext(entry.Name()) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}

		data, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return loaded, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		def, err := ParseObjectDefinition(data)
		if err != nil {
			return loaded, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		if err := c.RegisterDefinition(def); err != nil {
			return loaded, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		loaded++
	}
	return loaded, nil
}

// ParseObjectDefinition parses an object definition file:
//
//	id: 3303
//	name: Temperature
//	multiple: true
//	resources:
//	  sensorValue: {id: 5700, type: Float, required: true}
func ParseObjectDefinition(data []byte) (ObjectDefinition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return ObjectDefinition{}, &ValidationError{Err: ErrInvalidDefinition, Detail: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return ObjectDefinition{}, &ValidationError{Err: ErrInvalidDefinition, Detail: "object definition must be a mapping"}
	}

	var def ObjectDefinition
	var haveID bool
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "id":
			id, err := intNode(val)
			if err != nil {
				return def, &ValidationError{Err: ErrInvalidDefinition, Detail: "object id: " + err.Error()}
			}
			def.ID = uint16(id) //nolint:gosec // bounded by intNode
			haveID = true
		case "name":
			def.Name = val.Value
		case "multiple":
			m, err := boolNode(val)
			if err != nil {
				return def, &ValidationError{Err: ErrInvalidDefinition, Detail: "multiple: " + err.Error()}
			}
			def.Multiple = m
		case "resources":
			s, err := schemaFromNode(val)
			if err != nil {
				return def, err
			}
			def.Schema = s
		}
	}

	if !haveID {
		return def, &ValidationError{Err: ErrInvalidDefinition, Detail: "object definition without id"}
	}
	if def.Schema == nil {
		return def, &ValidationError{Err: ErrInvalidDefinition, Detail: fmt.Sprintf("object %d without resources", def.ID)}
	}
	return def, nil
}
