package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

// CalculationHistory defines the interface for calculation history storage
type CalculationHistory interface {
	// Store stores a calculation record
	Store(ctx context.Context, record *model.CalculationRecord) error

	// List retrieves records, newest first, optionally for one project
	List(ctx context.Context, projectName string, offset, limit int) ([]*model.CalculationRecord, error)

	// Count returns the number of records, optionally for one project
	Count(ctx context.Context, projectName string) (int, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// SQLCalculationHistory implements CalculationHistory on top of DB
type SQLCalculationHistory struct {
	*DB
}

// NewCalculationHistory creates a calculation history backed by db
func NewCalculationHistory(db *DB) *SQLCalculationHistory {
	return &SQLCalculationHistory{DB: db}
}

// Store implements CalculationHistory.Store
func (s *SQLCalculationHistory) Store(ctx context.Context, r *model.CalculationRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO calculation_history (
			id, project_name, mode, task_count, total_duration_days,
			overall_risk_level, high_risk_task_count, error, started_at, duration
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		r.ID,
		r.ProjectName,
		string(r.Mode),
		r.TaskCount,
		r.TotalDurationDays,
		sql.NullString{String: r.OverallRiskLevel, Valid: r.OverallRiskLevel != ""},
		r.HighRiskTaskCount,
		sql.NullString{String: r.Error, Valid: r.Error != ""},
		r.StartedAt.UTC(),
		int64(r.Duration),
	)
	if err != nil {
		return fmt.Errorf("failed to store calculation record: %w", err)
	}
	return nil
}

// List implements CalculationHistory.List
func (s *SQLCalculationHistory) List(ctx context.Context, projectName string, offset, limit int) ([]*model.CalculationRecord, error) {
	query := `SELECT id, project_name, mode, task_count, total_duration_days,
		overall_risk_level, high_risk_task_count, error, started_at, duration
		FROM calculation_history`
	args := make([]interface{}, 0, 3)

	if projectName != "" {
		query += " WHERE project_name = ?"
		args = append(args, projectName)
	}
	query += " ORDER BY started_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list calculation history: %w", err)
	}
	defer rows.Close()

	var records []*model.CalculationRecord
	for rows.Next() {
		r := &model.CalculationRecord{}
		var (
			mode          string
			riskLevel     sql.NullString
			errorStr      sql.NullString
			durationNanos int64
		)

		err := rows.Scan(
			&r.ID,
			&r.ProjectName,
			&mode,
			&r.TaskCount,
			&r.TotalDurationDays,
			&riskLevel,
			&r.HighRiskTaskCount,
			&errorStr,
			&r.StartedAt,
			&durationNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan calculation record: %w", err)
		}

		r.Mode = model.AnalysisMode(mode)
		if riskLevel.Valid {
			r.OverallRiskLevel = riskLevel.String
		}
		if errorStr.Valid {
			r.Error = errorStr.String
		}
		r.StartedAt = r.StartedAt.UTC()
		r.Duration = time.Duration(durationNanos)

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// Count implements CalculationHistory.Count
func (s *SQLCalculationHistory) Count(ctx context.Context, projectName string) (int, error) {
	query := "SELECT COUNT(*) FROM calculation_history"
	var args []interface{}
	if projectName != "" {
		query += " WHERE project_name = ?"
		args = append(args, projectName)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count calculation history: %w", err)
	}
	return count, nil
}

// DeleteBefore implements CalculationHistory.DeleteBefore
func (s *SQLCalculationHistory) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM calculation_history WHERE started_at < ?"), before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete calculation history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old calculation records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return affected, nil
}

var _ CalculationHistory = (*SQLCalculationHistory)(nil)
