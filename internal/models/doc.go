// Package models defines domain entities and persistence interfaces for the photo migration service.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs exchanged with source and sink services
//   - [TransferItem] : One photo or video moving from the source to the sink
//   - [Progress] : Read-only snapshot of a migration's counters
//
// 2. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Owner of credentials and migrations
//   - [Credential] : Opaque token bundle per user and service
//   - [Migration] : One transfer request, its status machine and counters
//   - [MigrationLog] : Durable record of a processed [TransferItem]
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
