package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"scrumboard/internal/models"
	"scrumboard/internal/roles"
)

// FindMembership returns the membership of userID in projectID. A missing
// record reports found == false without an error.
func (s *Store) FindMembership(ctx context.Context, projectID, userID string) (models.ProjectMembership, bool, error) {
	var m models.ProjectMembership
	var role string
	err := s.db.QueryRowContext(ctx, `SELECT project_id, user_id, project_role, created_at FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID).Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProjectMembership{}, false, nil
	}
	if err != nil {
		return models.ProjectMembership{}, false, fmt.Errorf("get membership: %w", err)
	}
	m.ProjectRole = roles.ProjectRole(role)
	return m, true, nil
}

// ListMembers returns the memberships of a project.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]models.ProjectMembership, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT project_id, user_id, project_role, created_at FROM project_members WHERE project_id = ? ORDER BY created_at, user_id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []models.ProjectMembership{}
	for rows.Next() {
		var m models.ProjectMembership
		var role string
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.ProjectRole = roles.ProjectRole(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

// AddMember adds userID to a project. Each user can hold one membership
// per project.
func (s *Store) AddMember(ctx context.Context, projectID, userID string, role roles.ProjectRole) (models.ProjectMembership, error) {
	if !role.Valid() {
		return models.ProjectMembership{}, fmt.Errorf("%w: unknown project role %q", ErrInvalid, role)
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return models.ProjectMembership{}, err
	}
	if _, err := s.GetUser(ctx, userID); err != nil {
		return models.ProjectMembership{}, err
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO project_members(project_id, user_id, project_role, created_at) VALUES(?, ?, ?, ?)`,
		projectID, userID, string(role), s.now())
	if isUniqueViolation(err) {
		return models.ProjectMembership{}, ErrDuplicateMembership
	}
	if err != nil {
		return models.ProjectMembership{}, fmt.Errorf("insert membership: %w", err)
	}
	m, _, err := s.FindMembership(ctx, projectID, userID)
	return m, err
}

// UpdateMemberRole changes the project role of an existing member.
func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role roles.ProjectRole) (models.ProjectMembership, error) {
	if !role.Valid() {
		return models.ProjectMembership{}, fmt.Errorf("%w: unknown project role %q", ErrInvalid, role)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE project_members SET project_role = ? WHERE project_id = ? AND user_id = ?`, string(role), projectID, userID)
	if err != nil {
		return models.ProjectMembership{}, fmt.Errorf("update membership: %w", err)
	}
	if err := affectedOne(res, "membership"); err != nil {
		return models.ProjectMembership{}, err
	}
	m, _, err := s.FindMembership(ctx, projectID, userID)
	return m, err
}

// RemoveMember deletes a membership.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return affectedOne(res, "membership")
}
