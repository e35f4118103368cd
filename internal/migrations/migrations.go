// Package migrations embeds the SQL schema files executed by the migrator
// at startup. Files run in filename order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
