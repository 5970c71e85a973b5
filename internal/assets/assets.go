// Package assets bundles the default templates and language files of the
// app shell. They seed the resource cache when no assets directory or
// network source has them.
package assets

import (
	"embed"
	"io/fs"
)

//go:embed lang all:template launcher
var files embed.FS

// FS returns the bundled resources, addressed like cache paths without the
// leading slash.
func FS() fs.FS {
	return files
}
