package resources

import (
	"embed"
)

// Embedded configuration objects, retrievable with a resource://<name> location.
// The Gy dictionary and the default server configuration live here, so that the
// module is usable without any external configuration directory.

//go:embed *
var Fs embed.FS
