// Package storage persists and restores maps: finished (and current)
// submaps with their TSDF layers and trajectories, and the pose graph's
// nodes and constraints, implementing spec.md §6's save_map/load_map
// service operations.
//
// It is grounded on the teacher's internal/db package: a DB struct
// wrapping *sql.DB opened against modernc.org/sqlite, WAL-mode PRAGMAs
// applied on every open (db.go's applyPragmas), and schema migrations
// run through github.com/golang-migrate/migrate/v4 with an iofs source
// driver over an embedded migrations/*.sql tree (migrate.go's
// newMigrate). The teacher's legacy-database detection/baselining
// machinery (DetectSchemaVersion, BaselineAtVersion, schema.sql
// drift-checking) is not carried over: this is a fresh schema with no
// pre-migration deployments to reconcile, so Open always measures
// against migration version zero. See DESIGN.md for the full
// justification.
package storage
