// Package migrations embeds the goose migration set applied at startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
