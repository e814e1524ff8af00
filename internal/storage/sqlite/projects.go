package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scrumboard/internal/models"
	"scrumboard/internal/roles"
)

const projectColumns = `id, name, description, status, progress, created_by, created_at, updated_at`

func scanProject(row rowScanner) (models.Project, error) {
	var p models.Project
	var status string
	var progress sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &status, &progress, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Project{}, err
	}
	p.Status = models.ProjectStatus(status)
	if progress.Valid {
		v := int(progress.Int64)
		p.Progress = &v
	}
	return p, nil
}

func (s *Store) queryProjects(ctx context.Context, query string, args ...any) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// ListProjects retrieves all projects ordered by creation date.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	return s.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at ASC`)
}

// ListProjectsForUser retrieves the projects userID is a member of.
func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]models.Project, error) {
	return s.queryProjects(ctx, `SELECT p.id, p.name, p.description, p.status, p.progress, p.created_by, p.created_at, p.updated_at
        FROM projects p JOIN project_members m ON m.project_id = p.id
        WHERE m.user_id = ? ORDER BY p.created_at ASC`, userID)
}

// CreateProject persists a new project and makes its creator the owner.
func (s *Store) CreateProject(ctx context.Context, name, description, createdBy string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, fmt.Errorf("%w: project name must not be empty", ErrInvalid)
	}

	id := uuid.NewString()
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id, name, description, status, created_by, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			id, name, strings.TrimSpace(description), string(models.ProjectActive), createdBy, now, now); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
		if createdBy == "" {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO project_members(project_id, user_id, project_role, created_at) VALUES(?, ?, ?, ?)`,
			id, createdBy, string(roles.Owner), now); err != nil {
			return fmt.Errorf("insert owner membership: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateProject renames a project and optionally changes its description or status.
func (s *Store) UpdateProject(ctx context.Context, id, name, description string, status models.ProjectStatus) (models.Project, error) {
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if v := strings.TrimSpace(name); v != "" {
		current.Name = v
	}
	if description != "" {
		current.Description = strings.TrimSpace(description)
	}
	if status != "" {
		if _, ok := models.ValidProjectStatuses[status]; !ok {
			return models.Project{}, fmt.Errorf("%w: unknown project status %q", ErrInvalid, status)
		}
		current.Status = status
	}

	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name = ?, description = ?, status = ?, updated_at = ? WHERE id = ?`,
		current.Name, current.Description, string(current.Status), s.now(), id)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := affectedOne(res, "project "+id); err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, id)
}

// SetProjectProgress stores a recomputed completion percentage. A nil
// progress clears it.
func (s *Store) SetProjectProgress(ctx context.Context, id string, progress *int) error {
	var value sql.NullInt64
	if progress != nil {
		value = sql.NullInt64{Int64: int64(*progress), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET progress = ?, updated_at = ? WHERE id = ?`, value, s.now(), id)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return affectedOne(res, "project "+id)
}

// DeleteProject removes a project along with its memberships, sprints and tasks.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return affectedOne(res, "project "+id)
}
