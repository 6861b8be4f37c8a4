// Package config provides database configuration helpers for the example
// applications: DSNs and tuned pgx pool configurations for the demo database.
package config
