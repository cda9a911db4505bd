// Package migrations embeds the SQL migration files into the binary.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the migration files, at the root of the filesystem.
func FS() fs.FS {
	return files
}
