// Package migrations embeds the goose migration scripts for the on-device
// SQLite database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
