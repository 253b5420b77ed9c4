// Package migrations embeds the catalog schema for each supported dialect.
package migrations

import "embed"

// FS holds one directory of ordered .sql files per dialect.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
