// Package migrations embeds the SQL schema for the telemetry state database.
package migrations

import "embed"

// FS holds every *.sql migration at its root.
//
//go:embed *.sql
var FS embed.FS
