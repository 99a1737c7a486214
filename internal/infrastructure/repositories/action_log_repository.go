package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/courier-service/courier_service/internal/domain/entities"
)

// ActionLogRepository persists the append-only action log of each attempt
type ActionLogRepository struct {
	db *sqlx.DB
}

// NewActionLogRepository creates a new action log repository
func NewActionLogRepository(db *sqlx.DB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

func (r *ActionLogRepository) Append(ctx context.Context, event *entities.ActionLogEvent) error {
	query := `
		INSERT INTO action_log_events (attempt_id, message, status, link, timestamp)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	return r.db.QueryRowContext(ctx, query,
		event.AttemptID, event.Message, event.Status, event.Link, event.Timestamp,
	).Scan(&event.ID)
}

func (r *ActionLogRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) ([]*entities.ActionLogEvent, error) {
	var events []*entities.ActionLogEvent
	query := `SELECT * FROM action_log_events WHERE attempt_id = $1 ORDER BY id ASC`
	err := r.db.SelectContext(ctx, &events, query, attemptID)
	return events, err
}
