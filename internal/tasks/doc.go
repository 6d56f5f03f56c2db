// Package tasks runs photo library migrations with real-time progress reporting.
//
// # Core Operations
//
// The [Engine] interface defines the migration lifecycle:
//
//  1. [Engine.CreateMigration] : Records a pending migration once both services are connected
//
//  2. [Engine.Run] : Transfers the library page by page
//     - Resolves tokens and verifies source and sink
//     - Counts the library, or estimates the total when the count is unknown
//     - Creates (or reuses) a destination folder
//     - Downloads, types and uploads every item, counting failures
//     - Returns an [Outcome]: completed, interrupted, cancelled or failed
//
//  3. [Engine.Pause], [Engine.Resume], [Engine.Cancel] : Lifecycle commands applied to the stored record
//
// # Checkpoints
//
// Runs never hold the record exclusively. Before every page and every item the run re-reads the
// stored status; counters and the resume cursor are written with conditional updates that only succeed
// while the record is still in_progress. A pause or cancel issued from another process therefore stops
// the run within one item.
//
// A done context is a soft deadline: the run saves its cursor and returns an interrupted outcome with
// [ReasonYielded] so the dispatcher can schedule the next slice.
//
// # Progress Reporting
//
// # Runs use non-blocking channels for progress updates
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data.
// Updates use select with default to prevent blocking.
//
// # Item Logging
//
// The optional [ItemLogger] interface records every processed item (repositories.MigrationLogRepository).
// Log failures are reported and otherwise ignored.
//
// # Implementation
//
// [MigrationEngine] implements [Engine] with dependencies on:
//   - [MigrationStore] : repositories.MigrationRepository
//   - [TokenStore] : secrets.Store
//   - [services.SourceFactory] and [services.SinkFactory] : adapters, wrapped for token refresh
package tasks
