package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChecklistProgress is one user's completion state for one checklist item.
type ChecklistProgress struct {
	UserID      uuid.UUID
	ChecklistID string
	ItemID      string
	Done        bool
	UpdatedAt   time.Time
}

// ProgressStore persists interview-prep checklist progress. Writes are
// last-write-wins per (user, checklist, item).
type ProgressStore interface {
	// UpsertProgress records the completion state for a checklist item.
	UpsertProgress(ctx context.Context, progress *ChecklistProgress) error

	// GetChecklistProgress returns all recorded items for a user's checklist.
	GetChecklistProgress(ctx context.Context, userID uuid.UUID, checklistID string) ([]ChecklistProgress, error)
}
