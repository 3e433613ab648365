package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/t77yq/pulse/internal/model"
)

// ProjectStore defines the interface for project persistence
type ProjectStore interface {
	// Save inserts or replaces a project
	Save(ctx context.Context, project *model.Project) error

	// Get retrieves a project by ID
	Get(ctx context.Context, id string) (*model.Project, error)

	// List returns up to limit projects, most recently modified first
	List(ctx context.Context, limit int) ([]*model.Project, error)

	// Delete removes a project
	Delete(ctx context.Context, id string) error
}

// SQLProjectStore implements ProjectStore on top of DB
type SQLProjectStore struct {
	*DB
}

// NewProjectStore creates a project store backed by db
func NewProjectStore(db *DB) *SQLProjectStore {
	return &SQLProjectStore{DB: db}
}

// Save implements ProjectStore.Save
func (s *SQLProjectStore) Save(ctx context.Context, project *model.Project) error {
	tasks, err := json.Marshal(project.Tasks)
	if err != nil {
		return fmt.Errorf("failed to marshal project tasks: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO projects (
			id, name, start_date, tasks, foundation_results, last_modified
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			start_date = excluded.start_date,
			tasks = excluded.tasks,
			foundation_results = excluded.foundation_results,
			last_modified = excluded.last_modified`),
		project.ID,
		project.Name,
		sql.NullString{String: project.StartDate, Valid: project.StartDate != ""},
		string(tasks),
		sql.NullString{String: string(project.FoundationResults), Valid: len(project.FoundationResults) > 0},
		project.LastModified.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	s.logger.Debug("Project saved",
		zap.String("project_id", project.ID),
		zap.Int("tasks", len(project.Tasks)))
	return nil
}

// Get implements ProjectStore.Get
func (s *SQLProjectStore) Get(ctx context.Context, id string) (*model.Project, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, name, start_date, tasks, foundation_results, last_modified
		FROM projects
		WHERE id = ?`), id)

	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

// List implements ProjectStore.List
func (s *SQLProjectStore) List(ctx context.Context, limit int) ([]*model.Project, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, start_date, tasks, foundation_results, last_modified
		FROM projects
		ORDER BY last_modified DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return projects, nil
}

// Delete implements ProjectStore.Delete
func (s *SQLProjectStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, s.rebind("DELETE FROM projects WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrProjectNotFound
	}

	s.logger.Info("Project deleted", zap.String("project_id", id))
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*model.Project, error) {
	var (
		project           model.Project
		startDate         sql.NullString
		tasks             string
		foundationResults sql.NullString
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&startDate,
		&tasks,
		&foundationResults,
		&project.LastModified,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	if startDate.Valid {
		project.StartDate = startDate.String
	}
	if err := json.Unmarshal([]byte(tasks), &project.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks of project %s: %w", project.ID, err)
	}
	if foundationResults.Valid && foundationResults.String != "" {
		project.FoundationResults = json.RawMessage(foundationResults.String)
	}
	project.LastModified = project.LastModified.UTC()

	return &project, nil
}

var _ ProjectStore = (*SQLProjectStore)(nil)
