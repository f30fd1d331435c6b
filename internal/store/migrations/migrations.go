// Package migrations embeds the goose SQL migrations for the Stride database.
package migrations

import "embed"

// FS holds every migration file, applied in version order by goose.
//
//go:embed *.sql
var FS embed.FS
