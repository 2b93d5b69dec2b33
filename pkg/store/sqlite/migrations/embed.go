package migrations

import "embed"

// FS contains embedded SQLite migrations for roll and preset storage.
//
//go:embed *.sql
var FS embed.FS
