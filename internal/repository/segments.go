package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"alfred/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrSegmentNotOpen 片段不存在或已结束（结束时间一经设置不再修改）
var ErrSegmentNotOpen = errors.New("segment not found or already closed")

// SegmentRepository 活动片段仓库
type SegmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSegmentRepository 创建活动片段仓库
func NewSegmentRepository(db *sql.DB, logger *zap.Logger) *SegmentRepository {
	return &SegmentRepository{
		db:     db,
		logger: logger,
	}
}

// Insert 创建打开的片段，返回带 ID 的片段
func (r *SegmentRepository) Insert(ctx context.Context, userID string, kind models.ActivityCode, startedAt time.Time) (*models.ActivitySegment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !kind.IsPosture() {
		return nil, fmt.Errorf("invalid segment kind: %d", kind)
	}

	seg := &models.ActivitySegment{
		SegmentID: uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		StartedAt: startedAt,
	}

	query := `
		INSERT INTO movement_data (segment_id, user_id, kind, started_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query, seg.SegmentID, seg.UserID, int(seg.Kind), seg.StartedAt); err != nil {
		return nil, fmt.Errorf("failed to insert movement_data: %w", err)
	}

	return seg, nil
}

// SetEndTime 结束打开的片段
func (r *SegmentRepository) SetEndTime(ctx context.Context, segmentID string, endedAt time.Time) error {
	if segmentID == "" {
		return fmt.Errorf("segment_id is required")
	}

	query := `
		UPDATE movement_data
		SET ended_at = $2
		WHERE segment_id = $1
		  AND ended_at IS NULL
		  AND started_at <= $2
	`
	result, err := r.db.ExecContext(ctx, query, segmentID, endedAt)
	if err != nil {
		return fmt.Errorf("failed to update movement_data: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSegmentNotOpen, segmentID)
	}
	return nil
}

// QueryRange 查询与 [start, end) 相交的片段（包含仍打开的片段），按开始时间排序
// kind 为 0 时不过滤类型
func (r *SegmentRepository) QueryRange(ctx context.Context, userID string, start, end time.Time, kind models.ActivityCode) ([]models.ActivitySegment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("end must be after start")
	}

	query := `
		SELECT segment_id, user_id, kind, started_at, ended_at
		FROM movement_data
		WHERE user_id = $1
		  AND started_at < $3
		  AND (ended_at IS NULL OR ended_at > $2)
		  AND ($4 = 0 OR kind = $4)
		ORDER BY started_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID, start, end, int(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query movement_data: %w", err)
	}
	defer rows.Close()

	var segments []models.ActivitySegment
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, *seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate movement_data: %w", err)
	}
	return segments, nil
}

// FindOpen 查询用户当前打开的片段，不存在时返回 nil
func (r *SegmentRepository) FindOpen(ctx context.Context, userID string) (*models.ActivitySegment, error) {
	query := `
		SELECT segment_id, user_id, kind, started_at, ended_at
		FROM movement_data
		WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	seg, err := scanSegment(r.db.QueryRowContext(ctx, query, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return seg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSegment(row rowScanner) (*models.ActivitySegment, error) {
	var seg models.ActivitySegment
	var kind int
	var endedAt sql.NullTime
	if err := row.Scan(&seg.SegmentID, &seg.UserID, &kind, &seg.StartedAt, &endedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan movement_data: %w", err)
	}
	seg.Kind = models.ActivityCode(kind)
	if endedAt.Valid {
		t := endedAt.Time
		seg.EndedAt = &t
	}
	return &seg, nil
}
