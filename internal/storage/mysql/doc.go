// Package mysql opens the MySQL connection pool used by the proving job store
// and applies the schema migrations embedded from deploy/migrations.
package mysql
