// Package migrations embeds the local SQLite schema into the binary.
package migrations

import (
	"embed"

	"github.com/kelotduongvidainhat/ams/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
