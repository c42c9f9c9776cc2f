// Package migration opens SQLite connections and applies the embedded schema.
//
// Migration files live in sql/ and follow golang-migrate naming:
// {version}_{description}.up.sql / .down.sql. Applied versions are tracked in
// the schema_migrations table maintained by golang-migrate.
//
// Example usage:
//
//	db, err := migration.NewConnectionManager(migration.DefaultSQLiteConfig("scheduler.db")).GetConnection()
//	if err != nil {
//		return err
//	}
//	if err := migration.NewRunner(db, logger).Up(ctx); err != nil {
//		return err
//	}
package migration
