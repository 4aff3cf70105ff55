// Package store provides durable run history for workflow executions.
//
// Backed by SQLite in WAL mode with an embedded schema and
// PRAGMA user_version migrations. The engine writes a run row when
// execution starts, one row per job instance, and one row per executed
// step; the history and trace commands read them back ordered by the
// engine's logical clock sequence.
package store
