package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"alfred/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertEventRepository 报警审计记录仓库
type AlertEventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventRepository 创建报警审计记录仓库
func NewAlertEventRepository(db *sql.DB, logger *zap.Logger) *AlertEventRepository {
	return &AlertEventRepository{
		db:     db,
		logger: logger,
	}
}

// Record 保存一次报警会话结果
func (r *AlertEventRepository) Record(ctx context.Context, userID string, trigger models.AlertTrigger, outcome models.AlertOutcome, triggeredAt, finishedAt time.Time) (*models.AlertEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	failed := outcome.Failed
	if failed == nil {
		failed = []models.FailedContact{}
	}
	failedJSON, err := json.Marshal(failed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal failed contacts: %w", err)
	}

	event := &models.AlertEvent{
		EventID:     uuid.New().String(),
		UserID:      userID,
		Trigger:     trigger,
		Outcome:     outcome.Kind,
		Successes:   outcome.Successes,
		Total:       outcome.Total,
		FailedData:  string(failedJSON),
		TriggeredAt: triggeredAt,
		FinishedAt:  finishedAt,
	}

	query := `
		INSERT INTO alert_events (
			event_id, user_id, trigger, outcome, successes, total,
			failed_data, triggered_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if _, err := r.db.ExecContext(ctx, query,
		event.EventID, event.UserID, string(event.Trigger), string(event.Outcome),
		event.Successes, event.Total, event.FailedData, event.TriggeredAt, event.FinishedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to insert alert_events: %w", err)
	}

	return event, nil
}

// ListRecent 最近的报警记录
func (r *AlertEventRepository) ListRecent(ctx context.Context, userID string, limit int) ([]models.AlertEvent, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := `
		SELECT event_id, user_id, trigger, outcome, successes, total,
		       failed_data, triggered_at, finished_at
		FROM alert_events
		WHERE user_id = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert_events: %w", err)
	}
	defer rows.Close()

	events := []models.AlertEvent{}
	for rows.Next() {
		var e models.AlertEvent
		var trigger, outcome string
		if err := rows.Scan(&e.EventID, &e.UserID, &trigger, &outcome, &e.Successes, &e.Total,
			&e.FailedData, &e.TriggeredAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert_events: %w", err)
		}
		e.Trigger = models.AlertTrigger(trigger)
		e.Outcome = models.OutcomeKind(outcome)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert_events: %w", err)
	}
	return events, nil
}
