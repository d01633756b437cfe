package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mockmate/eval-api/internal/store"
)

// ProgressStore implements store.ProgressStore using PostgreSQL.
type ProgressStore struct {
	db store.DBTX
}

// NewProgressStore creates a new ProgressStore.
func NewProgressStore(db store.DBTX) *ProgressStore {
	return &ProgressStore{db: db}
}

var _ store.ProgressStore = (*ProgressStore)(nil)

// UpsertProgress records the completion state for a checklist item,
// overwriting any previous state for the same (user, checklist, item).
func (s *ProgressStore) UpsertProgress(ctx context.Context, progress *store.ChecklistProgress) error {
	query := `
		INSERT INTO checklist_progress (user_id, checklist_id, item_id, done, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, checklist_id, item_id)
		DO UPDATE SET done = EXCLUDED.done, updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		progress.UserID,
		progress.ChecklistID,
		progress.ItemID,
		progress.Done,
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert checklist progress: %w", err)
	}

	return nil
}

// GetChecklistProgress returns all recorded items for a user's checklist.
func (s *ProgressStore) GetChecklistProgress(
	ctx context.Context,
	userID uuid.UUID,
	checklistID string,
) ([]store.ChecklistProgress, error) {
	query := `
		SELECT user_id, checklist_id, item_id, done, updated_at
		FROM checklist_progress
		WHERE user_id = $1 AND checklist_id = $2
		ORDER BY item_id
	`

	rows, err := s.db.QueryContext(ctx, query, userID, checklistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklist progress: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []store.ChecklistProgress
	for rows.Next() {
		var item store.ChecklistProgress
		if err := rows.Scan(&item.UserID, &item.ChecklistID, &item.ItemID, &item.Done, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checklist progress row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checklist progress rows: %w", err)
	}

	return items, nil
}
