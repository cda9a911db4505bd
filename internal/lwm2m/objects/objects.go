// Package objects embeds definitions of the standard OMA objects.
//
// The definitions are compiled into the binary so the daemon can decode
// Server, Device, Connectivity Monitoring, Location, Temperature and Light
// Control payloads without any files on disk. Site-specific objects are
// loaded on top with schema.Catalog.LoadFS.
package objects

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nerrad567/gray-logic-lwm2m/internal/lwm2m/schema"
)

// Standard object IDs.
const (
	Server                 uint16 = 1
	Device                 uint16 = 3
	ConnectivityMonitoring uint16 = 4
	Location               uint16 = 6
	Temperature            uint16 = 3303
	LightControl           uint16 = 3311
)

//go:embed definitions/*.yaml
var definitionsFS embed.FS

// FS returns the embedded definition files.
func FS() fs.FS {
	sub, err := fs.Sub(definitionsFS, "definitions")
	if err != nil {
		// Only fails if the embed pattern above is changed.
		panic(err)
	}
	return sub
}

// Load registers every embedded definition in c.
func Load(c *schema.Catalog) error {
	if _, err := c.LoadFS(FS()); err != nil {
		return fmt.Errorf("loading standard objects: %w", err)
	}
	return nil
}

// NewCatalog returns a catalog containing the standard objects.
func NewCatalog() (*schema.Catalog, error) {
	c := schema.NewCatalog()
	if err := Load(c); err != nil {
		return nil, err
	}
	return c, nil
}
