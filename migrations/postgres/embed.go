// Package postgres embeds the PostgreSQL schema migrations.
package postgres

import "embed"

//go:embed *.sql
var Files embed.FS
