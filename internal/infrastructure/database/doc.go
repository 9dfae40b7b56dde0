// Package database provides SQLite connectivity for Gray Logic Telemetry.
//
// The database is small: it holds the persisted backlog so that unsent
// lines survive a restart. It is optional; with no database.path the
// backlog lives in memory only.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Applying versioned migrations from an fs.FS
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Tables use STRICT mode and every query is parameterised.
package database
