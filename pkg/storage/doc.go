// Package storage provides the relational persistence layer for accounts,
// whiskey records and the audit trail.
//
// # Backends
//
// Two SQL dialects share one set of stores:
//
//   - postgres (github.com/lib/pq) for multi-instance deployments
//   - sqlite (github.com/mattn/go-sqlite3) for single-node installs and development
//
// Queries are written with ? placeholders and rebound per dialect.
// Schema changes live in embedded goose migrations, one directory per dialect.
//
// # Usage
//
//	db, err := storage.Open(ctx, cfg)
//	if err := storage.Migrate(ctx, db, cfg.Dialect); err != nil { ... }
//	accounts := storage.NewAccountStore(db, cfg.Dialect)
//
// Package memory holds in-process implementations of the same interfaces for
// tests and throwaway environments.
package storage
