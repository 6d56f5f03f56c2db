package models

import (
	"fmt"

	"github.com/tiagowl/ImgMigrator/internal/shared"
)

// ItemStatus tracks a [TransferItem] through download and upload.
type ItemStatus string

const (
	ItemPending     ItemStatus = "pending"
	ItemDownloading ItemStatus = "downloading"
	ItemUploading   ItemStatus = "uploading"
	ItemCompleted   ItemStatus = "completed"
	ItemFailed      ItemStatus = "failed"
)

// TransferItem is one photo or video listed by a source.
type TransferItem struct {
	SourceID     string     `json:"id"`
	DisplayName  string     `json:"filename"`
	SizeBytes    int64      `json:"size"`
	MimeType     string     `json:"mime_type,omitempty"`
	Status       ItemStatus `json:"status,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
	RemoteID     string     `json:"remote_id,omitempty"`
}

// Merge fills fields of t that are empty from other, used when metadata lookups are partial.
func (t TransferItem) Merge(other *TransferItem) TransferItem {
	if other == nil {
		return t
	}
	if other.DisplayName != "" {
		t.DisplayName = other.DisplayName
	}
	if other.SizeBytes > 0 {
		t.SizeBytes = other.SizeBytes
	}
	if other.MimeType != "" {
		t.MimeType = other.MimeType
	}
	return t
}

// MigrationLog is the durable record of a processed [TransferItem].
type MigrationLog struct {
	entity
	migrationID string
	item        TransferItem
}

// NewMigrationLog records item for migrationID.
func NewMigrationLog(sequence int, migrationID string, item TransferItem) *MigrationLog {
	return &MigrationLog{
		entity:      newEntity(sequence),
		migrationID: migrationID,
		item:        item,
	}
}

func (l *MigrationLog) MigrationID() string { return l.migrationID }
func (l *MigrationLog) Item() TransferItem  { return l.item }

func (l *MigrationLog) SetItem(item TransferItem) { l.item = item }

// Validate checks that the log refers to a migration and an item.
func (l *MigrationLog) Validate() error {
	if l.migrationID == "" {
		return fmt.Errorf("%w: migration id is required", shared.ErrInvalidInput)
	}
	if l.item.SourceID == "" {
		return fmt.Errorf("%w: source id is required", shared.ErrInvalidInput)
	}
	switch l.item.Status {
	case ItemPending, ItemDownloading, ItemUploading, ItemCompleted, ItemFailed:
		return nil
	default:
		return fmt.Errorf("%w: unknown item status %q", shared.ErrInvalidInput, l.item.Status)
	}
}
