// Package database provides the SQLite connection used to persist
// registrations.
//
// It opens the database with WAL mode and a busy timeout, limits the pool to
// a single writer connection, and applies versioned SQL migrations read from
// an fs.FS (normally the embedded migrations package).
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS()); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each migration runs in its own transaction
// and is recorded in schema_migrations.
package database
