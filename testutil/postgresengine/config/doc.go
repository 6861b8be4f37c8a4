// Package config provides database connection configurations for document store
// integration tests and benchmarks, covering all three supported database
// libraries: pgxpool.Pool, sql.DB, and sqlx.DB.
package config
