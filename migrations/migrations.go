// Package migrations embeds the schema migrations for every SQL backend.
// Each driver has its own directory: postgres/ and sqlite/.
package migrations

import "embed"

//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
