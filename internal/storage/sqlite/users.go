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

const userColumns = `id, email, display_name, global_role, created_at`

func scanUser(row rowScanner) (models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.CreatedAt); err != nil {
		return models.User{}, err
	}
	u.GlobalRole = roles.GlobalRole(role)
	return u, nil
}

// CreateUser registers an account. An empty id gets a generated one.
func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if u.Email == "" {
		return models.User{}, fmt.Errorf("%w: email must not be empty", ErrInvalid)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = s.now()

	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id, email, display_name, global_role, created_at) VALUES(?, ?, ?, ?, ?)`,
		u.ID, u.Email, strings.TrimSpace(u.DisplayName), string(u.GlobalRole), u.CreatedAt)
	if isUniqueViolation(err) {
		return models.User{}, fmt.Errorf("%w: user already exists", ErrInvalid)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

// GetUser fetches a single user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// SetUserRole changes the global role of a user.
func (s *Store) SetUserRole(ctx context.Context, id string, role roles.GlobalRole) (models.User, error) {
	if !role.Valid() {
		return models.User{}, fmt.Errorf("%w: unknown global role %q", ErrInvalid, role)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE users SET global_role = ? WHERE id = ?`, string(role), id)
	if err != nil {
		return models.User{}, fmt.Errorf("update user role: %w", err)
	}
	if err := affectedOne(res, "user "+id); err != nil {
		return models.User{}, err
	}
	return s.GetUser(ctx, id)
}
