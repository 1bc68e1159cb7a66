// Package gamedata embeds the default storage and resource folders and
// copies them into place on first run.
package gamedata

import "embed"

// Bundle names under the embedded defaults directory.
const (
	BundleStorage   = "storage"
	BundleResources = "resources"
)

// dataFS embeds the default asset tree at build time.
//
//go:embed defaults
var dataFS embed.FS
