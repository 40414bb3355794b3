// Package migrations embeds SQL migration files.
package migrations

import "embed"

// FS contains the sqlite migrations, applied in lexical order at open time.
//
//go:embed *.sql
var FS embed.FS
