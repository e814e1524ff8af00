package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"scrumboard/internal/models"
)

const sprintColumns = `id, project_id, name, goal, start_date, duration_days, status, created_at`

// sprintTransitions lists the allowed lifecycle moves.
var sprintTransitions = map[models.SprintStatus]models.SprintStatus{
	models.SprintPlanned: models.SprintActive,
	models.SprintActive:  models.SprintCompleted,
}

func scanSprint(row rowScanner) (models.Sprint, error) {
	var sp models.Sprint
	var status string
	if err := row.Scan(&sp.ID, &sp.ProjectID, &sp.Name, &sp.Goal, &sp.StartDate, &sp.DurationDays, &status, &sp.CreatedAt); err != nil {
		return models.Sprint{}, err
	}
	sp.StartDate = sp.StartDate.UTC()
	sp.Status = models.SprintStatus(status)
	return sp, nil
}

// CreateSprint plans a new sprint for a project.
func (s *Store) CreateSprint(ctx context.Context, sp models.Sprint) (models.Sprint, error) {
	sp.Name = strings.TrimSpace(sp.Name)
	if sp.Name == "" {
		return models.Sprint{}, fmt.Errorf("%w: sprint name must not be empty", ErrInvalid)
	}
	if sp.DurationDays < 0 || sp.DurationDays > models.MaxSprintDays {
		return models.Sprint{}, fmt.Errorf("%w: sprint duration must be between 0 and %d days", ErrInvalid, models.MaxSprintDays)
	}
	if sp.StartDate.IsZero() {
		return models.Sprint{}, fmt.Errorf("%w: sprint start date is required", ErrInvalid)
	}
	if _, err := s.GetProject(ctx, sp.ProjectID); err != nil {
		return models.Sprint{}, err
	}

	sp.ID = uuid.NewString()
	sp.Status = models.SprintPlanned
	sp.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `INSERT INTO sprints(`+sprintColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		sp.ID, sp.ProjectID, sp.Name, strings.TrimSpace(sp.Goal), sp.StartDate.UTC(), sp.DurationDays, string(sp.Status), sp.CreatedAt)
	if err != nil {
		return models.Sprint{}, fmt.Errorf("insert sprint: %w", err)
	}
	return s.GetSprint(ctx, sp.ProjectID, sp.ID)
}

// GetSprint fetches a sprint of a project by id.
func (s *Store) GetSprint(ctx context.Context, projectID, id string) (models.Sprint, error) {
	sp, err := scanSprint(s.db.QueryRowContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE id = ? AND project_id = ?`, id, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Sprint{}, fmt.Errorf("sprint %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Sprint{}, fmt.Errorf("get sprint: %w", err)
	}
	return sp, nil
}

// ListSprints returns the sprints of a project ordered by start date.
func (s *Store) ListSprints(ctx context.Context, projectID string) ([]models.Sprint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sprintColumns+` FROM sprints WHERE project_id = ? ORDER BY start_date, created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list sprints: %w", err)
	}
	defer rows.Close()

	sprints := []models.Sprint{}
	for rows.Next() {
		sp, err := scanSprint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sprint: %w", err)
		}
		sprints = append(sprints, sp)
	}
	return sprints, rows.Err()
}

// TransitionSprint moves a sprint to the next lifecycle status.
func (s *Store) TransitionSprint(ctx context.Context, projectID, id string, to models.SprintStatus) (models.Sprint, error) {
	sp, err := s.GetSprint(ctx, projectID, id)
	if err != nil {
		return models.Sprint{}, err
	}
	if next, ok := sprintTransitions[sp.Status]; !ok || next != to {
		return models.Sprint{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sp.Status, to)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE sprints SET status = ? WHERE id = ? AND project_id = ? AND status = ?`,
		string(to), id, projectID, string(sp.Status))
	if err != nil {
		return models.Sprint{}, fmt.Errorf("update sprint: %w", err)
	}
	if err := affectedOne(res, "sprint "+id); err != nil {
		return models.Sprint{}, err
	}
	sp.Status = to
	return sp, nil
}
