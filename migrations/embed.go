// Package migrations holds the versioned postgres schema applied by golang-migrate.
package migrations

import "embed"

// FS contains every *.sql migration in this directory.
//
//go:embed *.sql
var FS embed.FS
