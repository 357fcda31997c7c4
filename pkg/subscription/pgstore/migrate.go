package pgstore

import (
	"context"
	"embed"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/slotbook/billing/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the embedded migration files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migrate applies the embedded billing schema through pg.MigrateFS.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg pg.Config, log pg.Logger) error {
	return pg.MigrateFS(ctx, pool, Migrations(), cfg, log)
}
