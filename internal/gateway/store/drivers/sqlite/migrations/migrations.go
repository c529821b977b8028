// Package migrations holds the SQL migration files compiled into the
// binary.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
