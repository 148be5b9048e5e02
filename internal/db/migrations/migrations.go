// Package migrations embeds the SQL applied after the ORM schema migration.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
