package resources

import "embed"

//go:embed migrations messages
var FS embed.FS
