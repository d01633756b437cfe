// Package postgres provides PostgreSQL-backed implementations of the
// application's store interfaces: evaluation results, job rows, and the
// shared rate-limit counters, plus the embedded goose migrations that
// create their schema.
package postgres
