// Package recording persists uploaded recordings and their diarized speaker
// tracks in SQLite.
//
// The Store manages database connections, schema initialization, stats
// queries, and the status transitions that mirror the pipeline enum. A
// recording row carries every produced artifact path plus transcript and
// summary text so stages can coordinate without additional state.
//
// The database is the single source of truth for pipeline progress. Schema
// changes bump the version in schema.go; users delete the database to adopt
// the new layout.
package recording
