// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// All repositories support soft deletes via deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [UserRepository] : User accounts with email-based lookups
//   - [CredentialRepository] : One token bundle per user and service
//   - [MigrationRepository] : Migration records with conditional (status-guarded) writes
//   - [MigrationLogRepository] : Per-item transfer log
//
// Every write is a single statement, so readers never observe a partially updated record.
// [MigrationRepository.UpdateIf] only writes when the stored status is one of the expected values,
// which lets a running transfer persist counters without overwriting a concurrent pause or cancel.
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
