// Package pg bootstraps PostgreSQL for the billing service on pgx/v5:
// a retrying pool constructor, goose migrations from disk or an embedded
// filesystem, a readiness probe and helpers that classify pgx errors.
//
// Usage:
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, pgstore.Migrations(), cfg, log); err != nil {
//	    return err
//	}
//
// Error helpers such as IsNotFoundError and IsDuplicateKeyError unwrap
// *pgconn.PgError so callers never compare SQLSTATE codes themselves.
package pg
