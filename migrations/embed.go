// Package migrations embeds the SQL schema so binaries and tests can migrate
// without a checkout.
package migrations

import "embed"

// FS holds every *.sql migration.
//
//go:embed *.sql
var FS embed.FS
