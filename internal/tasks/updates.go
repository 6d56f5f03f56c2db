package tasks

import (
	"fmt"

	"github.com/tiagowl/ImgMigrator/internal/models"
)

// ProgressUpdate represents a progress event during a migration run.
//
// Used to send real-time updates to the CLI or API layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data (a [models.TransferItem] or [models.Progress])
}

// Operation phase enumeration
type Phase int

const (
	Connect Phase = iota
	CountItems
	CreateContainer
	TransferItems
	Finish
)

func (p Phase) String() string {
	switch p {
	case Connect:
		return "connect"
	case CountItems:
		return "count_items"
	case CreateContainer:
		return "create_container"
	case TransferItems:
		return "transfer_items"
	case Finish:
		return "finish"
	default:
		return ""
	}
}

func connectUpdate(source, sink string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Connect,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Connecting to %s and %s...", source, sink),
	}
}

func countUpdate(total int, estimated bool) ProgressUpdate {
	msg := fmt.Sprintf("Found %d items", total)
	if estimated {
		msg = "Library size unknown, counting as we go"
	}
	return ProgressUpdate{
		Phase:   CountItems,
		Step:    1,
		Total:   1,
		Message: msg,
	}
}

func containerUpdate(name string, reused bool) ProgressUpdate {
	msg := fmt.Sprintf("Created folder %q", name)
	if reused {
		msg = "Reusing folder from previous run"
	}
	return ProgressUpdate{
		Phase:   CreateContainer,
		Step:    1,
		Total:   1,
		Message: msg,
	}
}

func itemUpdate(m *models.Migration, item models.TransferItem) ProgressUpdate {
	step, total := m.ProcessedItems(), m.TotalItems()
	mark := "✓"
	if item.Status == models.ItemFailed {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   TransferItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, item.DisplayName),
		Data:    item,
	}
}

func finishUpdate(m *models.Migration, outcome *Outcome) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Finish,
		Step:    m.ProcessedItems(),
		Total:   m.TotalItems(),
		Message: outcome.String(),
		Data:    m.Progress(),
	}
}
