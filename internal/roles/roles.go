// Package roles holds the static role and permission tables consulted by
// every access decision. All lookups are pure and fail closed: an unknown
// role or permission is never granted anything.
package roles

// GlobalRole is the account-wide role of a user.
type GlobalRole string

const (
	Admin          GlobalRole = "admin"
	ProjectManager GlobalRole = "project_manager"
	Developer      GlobalRole = "developer"
	Stakeholder    GlobalRole = "stakeholder"
)

// ProjectRole is the role a user holds inside a single project.
// The zero value means "no role".
type ProjectRole string

const (
	Owner   ProjectRole = "owner"
	Manager ProjectRole = "manager"
	Member  ProjectRole = "member"
	Viewer  ProjectRole = "viewer"
)

// Permission names a capability granted by a role.
type Permission string

// Global permissions.
const (
	ManageUsers    Permission = "manage_users"
	ManageProjects Permission = "manage_projects"
	ViewProjects   Permission = "view_projects"
)

// Project permissions. ManageTasks, UpdateTasks and ViewAnalytics are also
// granted by global roles.
const (
	ManageProject Permission = "manage_project"
	ManageMembers Permission = "manage_members"
	ManageTasks   Permission = "manage_tasks"
	CreateTasks   Permission = "create_tasks"
	UpdateTasks   Permission = "update_tasks"
	DeleteTasks   Permission = "delete_tasks"
	ViewTasks     Permission = "view_tasks"
	ViewAnalytics Permission = "view_analytics"
)

// GlobalRoles lists every global role from highest to lowest level.
func GlobalRoles() []GlobalRole {
	return []GlobalRole{Admin, ProjectManager, Developer, Stakeholder}
}

// ProjectRoles lists every project role from most to least privileged.
func ProjectRoles() []ProjectRole {
	return []ProjectRole{Owner, Manager, Member, Viewer}
}

// Valid reports whether r is one of the known global roles.
func (r GlobalRole) Valid() bool {
	_, ok := globalLevel(r)
	return ok
}

// Valid reports whether r is one of the known project roles.
func (r ProjectRole) Valid() bool {
	return projectPermissions(r) != nil
}

func globalLevel(r GlobalRole) (int, bool) {
	switch r {
	case Admin:
		return 3, true
	case ProjectManager:
		return 2, true
	case Developer:
		return 1, true
	case Stakeholder:
		return 0, true
	}
	return 0, false
}

func globalPermissions(r GlobalRole) PermissionSet {
	switch r {
	case Admin:
		return newSet(ManageUsers, ManageProjects, ManageTasks, ViewAnalytics)
	case ProjectManager:
		return newSet(ManageProjects, ManageTasks, ViewAnalytics)
	case Developer:
		return newSet(UpdateTasks, ViewProjects)
	case Stakeholder:
		return newSet(ViewProjects, ViewAnalytics)
	}
	return nil
}

func projectPermissions(r ProjectRole) PermissionSet {
	switch r {
	case Owner:
		return newSet(ManageProject, ManageMembers, ManageTasks, CreateTasks, UpdateTasks, DeleteTasks, ViewAnalytics)
	case Manager:
		return newSet(ManageTasks, CreateTasks, UpdateTasks, DeleteTasks, ViewAnalytics)
	case Member:
		return newSet(CreateTasks, UpdateTasks, ViewTasks)
	case Viewer:
		return newSet(ViewTasks)
	}
	return nil
}

// HasGlobalPermission reports whether the global role grants permission.
func HasGlobalPermission(role GlobalRole, permission Permission) bool {
	return globalPermissions(role).Has(permission)
}

// IsAtLeast reports whether role sits at or above minRole in the global
// hierarchy. Either role being unknown yields false.
func IsAtLeast(role, minRole GlobalRole) bool {
	level, ok := globalLevel(role)
	if !ok {
		return false
	}
	floor, ok := globalLevel(minRole)
	if !ok {
		return false
	}
	return level >= floor
}

// HasProjectPermission reports whether the project role grants permission.
func HasProjectPermission(role ProjectRole, permission Permission) bool {
	return projectPermissions(role).Has(permission)
}

// GlobalPermissions returns the permissions of a global role. Unknown roles
// yield an empty set.
func GlobalPermissions(role GlobalRole) PermissionSet {
	if set := globalPermissions(role); set != nil {
		return set
	}
	return PermissionSet{}
}

// ProjectPermissions returns the permissions of a project role. The zero
// role and unknown roles yield an empty set.
func ProjectPermissions(role ProjectRole) PermissionSet {
	if set := projectPermissions(role); set != nil {
		return set
	}
	return PermissionSet{}
}
