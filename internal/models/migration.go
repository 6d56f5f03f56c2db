package models

import (
	"fmt"
	"time"

	"github.com/tiagowl/ImgMigrator/internal/shared"
)

// Status is the lifecycle state of a [Migration].
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CancelledMessage is the error message recorded when a user cancels a migration.
const CancelledMessage = "Cancelled by user"

// NonTerminalStatuses lists every status a migration can still leave.
var NonTerminalStatuses = []Status{StatusPending, StatusInProgress, StatusPaused}

// ParseStatus converts s into a [Status], rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, s)
	}
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) String() string { return string(s) }

// Migration is one photo library transfer requested by a user.
//
// Status changes go through the transition methods ([Migration.Start], [Migration.Pause], ...),
// which keep completedAt set exactly when the status is terminal.
type Migration struct {
	entity
	userID           string
	sourceService    string
	sinkService      string
	status           Status
	totalItems       int
	transferredItems int
	failedItems      int
	totalEstimated   bool
	nextOffset       int
	containerID      string
	errorMessage     string
	startedAt        *time.Time
	completedAt      *time.Time
}

// NewMigration creates a pending migration for userID.
func NewMigration(sequence int, userID, sourceService, sinkService string) *Migration {
	return &Migration{
		entity:        newEntity(sequence),
		userID:        userID,
		sourceService: sourceService,
		sinkService:   sinkService,
		status:        StatusPending,
	}
}

func (m *Migration) UserID() string             { return m.userID }
func (m *Migration) SourceService() string      { return m.sourceService }
func (m *Migration) SinkService() string        { return m.sinkService }
func (m *Migration) Status() Status             { return m.status }
func (m *Migration) TotalItems() int            { return m.totalItems }
func (m *Migration) TransferredItems() int      { return m.transferredItems }
func (m *Migration) FailedItems() int           { return m.failedItems }
func (m *Migration) TotalEstimated() bool       { return m.totalEstimated }
func (m *Migration) NextOffset() int            { return m.nextOffset }
func (m *Migration) ContainerID() string        { return m.containerID }
func (m *Migration) ErrorMessage() string       { return m.errorMessage }
func (m *Migration) StartedAt() *time.Time      { return m.startedAt }
func (m *Migration) CompletedAt() *time.Time    { return m.completedAt }
func (m *Migration) ProcessedItems() int        { return m.transferredItems + m.failedItems }
func (m *Migration) IsTerminal() bool           { return m.status.IsTerminal() }
func (m *Migration) OwnedBy(userID string) bool { return m.userID == userID }

// Setters are used by repositories when hydrating rows; the engine uses the transition methods.

func (m *Migration) SetStatus(s Status)          { m.status = s }
func (m *Migration) SetTotalItems(n int)         { m.totalItems = n }
func (m *Migration) SetTransferredItems(n int)   { m.transferredItems = n }
func (m *Migration) SetFailedItems(n int)        { m.failedItems = n }
func (m *Migration) SetTotalEstimated(b bool)    { m.totalEstimated = b }
func (m *Migration) SetNextOffset(n int)         { m.nextOffset = n }
func (m *Migration) SetContainerID(id string)    { m.containerID = id }
func (m *Migration) SetErrorMessage(msg string)  { m.errorMessage = msg }
func (m *Migration) SetStartedAt(t *time.Time)   { m.startedAt = t }
func (m *Migration) SetCompletedAt(t *time.Time) { m.completedAt = t }

// Start moves a pending (or crash-recovered in_progress) migration to in_progress.
// startedAt is only set on the first run.
func (m *Migration) Start(now time.Time) error {
	if m.status != StatusPending && m.status != StatusInProgress {
		return m.transitionErr(StatusInProgress)
	}
	m.status = StatusInProgress
	if m.startedAt == nil {
		m.startedAt = &now
	}
	return nil
}

// Pause is only allowed while in_progress.
func (m *Migration) Pause() error {
	if m.status != StatusInProgress {
		return m.transitionErr(StatusPaused)
	}
	m.status = StatusPaused
	return nil
}

// Resume re-arms a paused migration for another run. Counters are kept.
func (m *Migration) Resume() error {
	if m.status != StatusPaused {
		return m.transitionErr(StatusPending)
	}
	m.status = StatusPending
	return nil
}

// Cancel fails any non-terminal migration with [CancelledMessage].
func (m *Migration) Cancel(now time.Time) error {
	return m.Fail(CancelledMessage, now)
}

// Fail moves a non-terminal migration to failed with msg.
func (m *Migration) Fail(msg string, now time.Time) error {
	if m.IsTerminal() {
		return m.transitionErr(StatusFailed)
	}
	if msg == "" {
		msg = "migration failed"
	}
	m.status = StatusFailed
	m.errorMessage = msg
	m.completedAt = &now
	return nil
}

// Complete finishes an in_progress migration.
//
// A total that was never reliably known is finalized to the number of processed items.
func (m *Migration) Complete(now time.Time) error {
	if m.status != StatusInProgress {
		return m.transitionErr(StatusCompleted)
	}
	if m.totalEstimated {
		m.totalItems = m.ProcessedItems()
		m.totalEstimated = false
	}
	m.status = StatusCompleted
	m.completedAt = &now
	return nil
}

// RecordTransferred counts a successful item.
func (m *Migration) RecordTransferred() {
	m.transferredItems++
	m.ensureTotalCovers()
}

// RecordFailed counts an item that could not be transferred.
func (m *Migration) RecordFailed() {
	m.failedItems++
	m.ensureTotalCovers()
}

// ReviseTotal raises the total to n. The total never shrinks.
func (m *Migration) ReviseTotal(n int, estimated bool) {
	if n > m.totalItems {
		m.totalItems = n
	}
	m.totalEstimated = estimated
	m.ensureTotalCovers()
}

// SetCountedTotal installs a total counted by the source. A provisional total is replaced
// outright; a known one still never shrinks.
func (m *Migration) SetCountedTotal(count int) {
	if m.totalEstimated {
		m.totalItems = count
		m.totalEstimated = false
	}
	m.ReviseTotal(count, false)
}

func (m *Migration) ensureTotalCovers() {
	if p := m.ProcessedItems(); p > m.totalItems {
		m.totalItems = p
	}
}

// ContainerName derives the sink container name from the creation time.
func (m *Migration) ContainerName(prefix string) string {
	if prefix == "" {
		prefix = "Photo Migration"
	}
	return fmt.Sprintf("%s %s", prefix, m.createdAt.Format("2006-01-02 15:04"))
}

// Progress returns a snapshot of the counters.
func (m *Migration) Progress() *Progress {
	p := &Progress{
		MigrationID:      m.id,
		Status:           m.status,
		TotalItems:       m.totalItems,
		TransferredItems: m.transferredItems,
		FailedItems:      m.failedItems,
		Estimated:        m.totalEstimated,
		ErrorMessage:     m.errorMessage,
	}
	if m.totalItems > 0 {
		p.ProgressPercent = 100 * float64(m.transferredItems) / float64(m.totalItems)
	}
	return p
}

// Validate checks required fields and the status invariants.
func (m *Migration) Validate() error {
	if m.userID == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrInvalidInput)
	}
	if m.sourceService == "" || m.sinkService == "" {
		return fmt.Errorf("%w: source and sink services are required", shared.ErrInvalidInput)
	}
	if _, err := ParseStatus(string(m.status)); err != nil {
		return err
	}
	if m.totalItems < 0 || m.transferredItems < 0 || m.failedItems < 0 || m.nextOffset < 0 {
		return fmt.Errorf("%w: counters must be non-negative", shared.ErrInvalidInput)
	}
	if !m.totalEstimated && m.ProcessedItems() > m.totalItems {
		return fmt.Errorf("%w: %d processed items exceed total %d", shared.ErrInvalidInput, m.ProcessedItems(), m.totalItems)
	}
	if m.IsTerminal() != (m.completedAt != nil) {
		return fmt.Errorf("%w: completed_at must be set exactly for terminal statuses", shared.ErrInvalidInput)
	}
	if m.errorMessage != "" && m.status != StatusFailed {
		return fmt.Errorf("%w: error message is only allowed on failed migrations", shared.ErrInvalidInput)
	}
	return nil
}

func (m *Migration) transitionErr(to Status) error {
	return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, m.status, to)
}

// Progress is the read model served to status queries.
type Progress struct {
	MigrationID      string  `json:"migration_id"`
	Status           Status  `json:"status"`
	TotalItems       int     `json:"total_items"`
	TransferredItems int     `json:"transferred_items"`
	FailedItems      int     `json:"failed_items"`
	ProgressPercent  float64 `json:"progress_percent"`
	Estimated        bool    `json:"estimated"`
	ErrorMessage     string  `json:"error_message,omitempty"`
}

// MigrationView is the JSON representation of a [Migration].
type MigrationView struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	SourceService    string     `json:"source_service"`
	SinkService      string     `json:"sink_service"`
	Status           Status     `json:"status"`
	TotalItems       int        `json:"total_items"`
	TransferredItems int        `json:"transferred_items"`
	FailedItems      int        `json:"failed_items"`
	ProgressPercent  float64    `json:"progress_percent"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// View converts m into its JSON representation.
func (m *Migration) View() MigrationView {
	return MigrationView{
		ID:               m.id,
		UserID:           m.userID,
		SourceService:    m.sourceService,
		SinkService:      m.sinkService,
		Status:           m.status,
		TotalItems:       m.totalItems,
		TransferredItems: m.transferredItems,
		FailedItems:      m.failedItems,
		ProgressPercent:  m.Progress().ProgressPercent,
		ErrorMessage:     m.errorMessage,
		StartedAt:        m.startedAt,
		CompletedAt:      m.completedAt,
		CreatedAt:        m.createdAt,
		UpdatedAt:        m.updatedAt,
	}
}
