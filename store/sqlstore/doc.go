// Package sqlstore keeps accounts in a relational database through
// database/sql. SQLite (modernc.org/sqlite, pure Go) and PostgreSQL
// (pgx stdlib driver) share one schema, applied with embedded goose
// migrations on Open.
//
// Handle and address uniqueness are unique constraints; Update is a
// conditional UPDATE on the version column. Timestamps are stored as Unix
// milliseconds.
package sqlstore
