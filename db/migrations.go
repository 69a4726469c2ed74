// Package db содержит SQL-миграции журнала загрузок и outbox.
package db

import "embed"

//go:embed migrations/*.sql
var Migrations embed.FS
