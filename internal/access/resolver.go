package access

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"scrumboard/internal/models"
	"scrumboard/internal/roles"
)

// MembershipSource looks up the membership of a user in a project. A
// missing record is reported with found == false and a nil error.
type MembershipSource interface {
	FindMembership(ctx context.Context, projectID, userID string) (m models.ProjectMembership, found bool, err error)
}

// Status is the lifecycle of a permission resolution.
type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusResolved:
		return "resolved"
	case StatusError:
		return "error"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Resolution is the effective project role of a user and the permissions
// it carries. Only a resolved resolution ever grants anything.
type Resolution struct {
	ProjectID     string
	EffectiveRole roles.ProjectRole
	Permissions   roles.PermissionSet
	Status        Status
	Err           error
}

// Pending returns the resolution reported before the lookup completes.
func Pending(projectID string) Resolution {
	return Resolution{ProjectID: projectID, Status: StatusPending}
}

// Has reports whether permission is granted. Pending and failed
// resolutions grant nothing.
func (r Resolution) Has(permission roles.Permission) bool {
	return r.Status == StatusResolved && r.Permissions.Has(permission)
}

// HasRole reports whether the resolution settled on one of the given roles.
func (r Resolution) HasRole(allowed ...roles.ProjectRole) bool {
	if r.Status != StatusResolved || r.EffectiveRole == "" {
		return false
	}
	for _, role := range allowed {
		if role == r.EffectiveRole {
			return true
		}
	}
	return false
}

// MarshalJSON exposes the resolution together with the affordance flags
// views use to show or hide controls.
func (r Resolution) MarshalJSON() ([]byte, error) {
	var role *roles.ProjectRole
	if r.Status == StatusResolved && r.EffectiveRole != "" {
		role = &r.EffectiveRole
	}
	perms := []roles.Permission{}
	if r.Status == StatusResolved {
		perms = r.Permissions.Sorted()
	}
	return json.Marshal(struct {
		ProjectID        string             `json:"project_id"`
		EffectiveRole    *roles.ProjectRole `json:"effective_role"`
		Permissions      []roles.Permission `json:"permissions"`
		Status           Status             `json:"status"`
		CanManageProject bool               `json:"can_manage_project"`
		CanManageMembers bool               `json:"can_manage_members"`
		CanManageTasks   bool               `json:"can_manage_tasks"`
		CanCreateTasks   bool               `json:"can_create_tasks"`
	}{
		ProjectID:        r.ProjectID,
		EffectiveRole:    role,
		Permissions:      perms,
		Status:           r.Status,
		CanManageProject: r.Has(roles.ManageProject),
		CanManageMembers: r.Has(roles.ManageMembers),
		CanManageTasks:   r.Has(roles.ManageTasks),
		CanCreateTasks:   r.Has(roles.CreateTasks),
	})
}

// Resolver computes effective project roles. A project_manager is the
// owner of every project; everyone else gets the role of their membership
// record, or nothing.
type Resolver struct {
	source  MembershipSource
	timeout time.Duration
	logger  *slog.Logger
}

// NewResolver builds a resolver over source. A positive timeout bounds each
// membership lookup; when it expires the resolution fails closed.
func NewResolver(source MembershipSource, timeout time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, timeout: timeout, logger: logger}
}

// Resolve blocks until the effective role of session in projectID is known.
// The returned resolution is never pending. Lookup failures are not retried.
func (r *Resolver) Resolve(ctx context.Context, session Session, projectID string) Resolution {
	if session.GlobalRole == roles.ProjectManager {
		return resolved(projectID, roles.Owner)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	m, found, err := r.source.FindMembership(ctx, projectID, session.UserID)
	if err != nil {
		r.logger.Warn("membership lookup failed",
			slog.String("user", session.UserID),
			slog.String("project", projectID),
			slog.String("error", err.Error()))
		return Resolution{
			ProjectID:   projectID,
			Permissions: roles.PermissionSet{},
			Status:      StatusError,
			Err:         fmt.Errorf("%w: %v", ErrResolution, err),
		}
	}
	if !found {
		return resolved(projectID, "")
	}
	return resolved(projectID, m.ProjectRole)
}

func resolved(projectID string, role roles.ProjectRole) Resolution {
	return Resolution{
		ProjectID:     projectID,
		EffectiveRole: role,
		Permissions:   roles.ProjectPermissions(role),
		Status:        StatusResolved,
	}
}
