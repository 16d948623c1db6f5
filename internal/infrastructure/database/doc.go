// Package database provides the SQLite store behind the bridge's command
// and state history.
//
// This package manages:
//   - Opening the database with WAL mode and a busy timeout
//   - Forward schema migrations embedded in the binary
//   - Health checks for the API health endpoint
//
// The database file is created with 0600 permissions. All queries in the
// bridge use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
