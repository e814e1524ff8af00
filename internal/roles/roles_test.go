package roles

import "testing"

var allPermissions = []Permission{
	ManageUsers, ManageProjects, ViewProjects,
	ManageProject, ManageMembers, ManageTasks, CreateTasks,
	UpdateTasks, DeleteTasks, ViewTasks, ViewAnalytics,
}

func TestHasProjectPermission_ReferenceTable(t *testing.T) {
	reference := map[ProjectRole][]Permission{
		Owner:   {ManageProject, ManageMembers, ManageTasks, CreateTasks, UpdateTasks, DeleteTasks, ViewAnalytics},
		Manager: {ManageTasks, CreateTasks, UpdateTasks, DeleteTasks, ViewAnalytics},
		Member:  {CreateTasks, UpdateTasks, ViewTasks},
		Viewer:  {ViewTasks},
	}

	for _, role := range append(ProjectRoles(), "", "superuser") {
		granted := map[Permission]bool{}
		for _, p := range reference[role] {
			granted[p] = true
		}
		for _, p := range append(allPermissions, "unknown_permission") {
			if got := HasProjectPermission(role, p); got != granted[p] {
				t.Errorf("HasProjectPermission(%q, %q) = %v, want %v", role, p, got, granted[p])
			}
		}
	}
}

func TestHasGlobalPermission_ReferenceTable(t *testing.T) {
	reference := map[GlobalRole][]Permission{
		Admin:          {ManageUsers, ManageProjects, ManageTasks, ViewAnalytics},
		ProjectManager: {ManageProjects, ManageTasks, ViewAnalytics},
		Developer:      {UpdateTasks, ViewProjects},
		Stakeholder:    {ViewProjects, ViewAnalytics},
	}

	for _, role := range append(GlobalRoles(), "", "root") {
		granted := map[Permission]bool{}
		for _, p := range reference[role] {
			granted[p] = true
		}
		for _, p := range allPermissions {
			if got := HasGlobalPermission(role, p); got != granted[p] {
				t.Errorf("HasGlobalPermission(%q, %q) = %v, want %v", role, p, got, granted[p])
			}
		}
	}
}

func TestIsAtLeast(t *testing.T) {
	tests := []struct {
		role, min GlobalRole
		want      bool
	}{
		{Admin, Admin, true},
		{Admin, Stakeholder, true},
		{ProjectManager, Developer, true},
		{Developer, ProjectManager, false},
		{Stakeholder, Developer, false},
		{Stakeholder, Stakeholder, true},
		{"ghost", Stakeholder, false},
		{Admin, "ghost", false},
	}
	for _, tt := range tests {
		if got := IsAtLeast(tt.role, tt.min); got != tt.want {
			t.Errorf("IsAtLeast(%q, %q) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	for _, r := range GlobalRoles() {
		if !r.Valid() {
			t.Errorf("global role %q should be valid", r)
		}
	}
	for _, r := range ProjectRoles() {
		if !r.Valid() {
			t.Errorf("project role %q should be valid", r)
		}
	}
	if GlobalRole("owner").Valid() {
		t.Error("project role name accepted as global role")
	}
	if ProjectRole("").Valid() {
		t.Error("empty project role accepted")
	}
}

func TestProjectPermissions_UnknownRoleIsEmpty(t *testing.T) {
	if n := len(ProjectPermissions("")); n != 0 {
		t.Fatalf("empty role: got %d permissions", n)
	}
	if n := len(ProjectPermissions("admin")); n != 0 {
		t.Fatalf("unknown role: got %d permissions", n)
	}
	got := ProjectPermissions(Viewer).Sorted()
	if len(got) != 1 || got[0] != ViewTasks {
		t.Fatalf("viewer permissions = %v", got)
	}
}
