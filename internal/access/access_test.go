package access

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scrumboard/internal/models"
	"scrumboard/internal/roles"
)

// fakeSource serves memberships from memory. Lookups for a project listed
// in blocked wait until that channel is closed or the context ends.
type fakeSource struct {
	memberships map[string]roles.ProjectRole
	blocked     map[string]chan struct{}
	err         error
	calls       atomic.Int32
}

func (f *fakeSource) FindMembership(ctx context.Context, projectID, userID string) (models.ProjectMembership, bool, error) {
	f.calls.Add(1)
	if ch, ok := f.blocked[projectID]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return models.ProjectMembership{}, false, ctx.Err()
		}
	}
	if f.err != nil {
		return models.ProjectMembership{}, false, f.err
	}
	role, ok := f.memberships[projectID+"/"+userID]
	if !ok {
		return models.ProjectMembership{}, false, nil
	}
	return models.ProjectMembership{ProjectID: projectID, UserID: userID, ProjectRole: role}, true, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGuard(t *testing.T, src *fakeSource, timeout time.Duration) *Guard {
	t.Helper()
	return NewGuard(NewResolver(src, timeout, discardLogger()), DefaultPaths(), discardLogger())
}

func TestResolve_ProjectManagerIsAlwaysOwner(t *testing.T) {
	for _, role := range append(roles.ProjectRoles(), "") {
		src := &fakeSource{memberships: map[string]roles.ProjectRole{}}
		if role != "" {
			src.memberships["p1/u1"] = role
		}
		r := NewResolver(src, 0, discardLogger())

		got := r.Resolve(context.Background(), Session{UserID: "u1", GlobalRole: roles.ProjectManager}, "p1")

		if got.Status != StatusResolved || got.EffectiveRole != roles.Owner {
			t.Errorf("membership %q: got %v/%q, want resolved/owner", role, got.Status, got.EffectiveRole)
		}
		if !got.Has(roles.ManageMembers) {
			t.Errorf("membership %q: owner permissions missing", role)
		}
		if n := src.calls.Load(); n != 0 {
			t.Errorf("membership %q: store consulted %d times", role, n)
		}
	}
}

func TestResolve_Membership(t *testing.T) {
	src := &fakeSource{memberships: map[string]roles.ProjectRole{
		"p1/dev":   roles.Member,
		"p1/odd":   "superuser",
		"p1/admin": roles.Viewer,
	}}
	r := NewResolver(src, 0, discardLogger())
	ctx := context.Background()

	member := r.Resolve(ctx, Session{UserID: "dev", GlobalRole: roles.Developer}, "p1")
	if member.EffectiveRole != roles.Member || !member.Has(roles.CreateTasks) || member.Has(roles.DeleteTasks) {
		t.Fatalf("member resolution = %+v", member)
	}

	// Admins get no override; the membership decides.
	admin := r.Resolve(ctx, Session{UserID: "admin", GlobalRole: roles.Admin}, "p1")
	if admin.EffectiveRole != roles.Viewer || admin.Has(roles.ManageProject) {
		t.Fatalf("admin resolution = %+v", admin)
	}

	absent := r.Resolve(ctx, Session{UserID: "dev", GlobalRole: roles.Developer}, "p2")
	if absent.Status != StatusResolved || absent.EffectiveRole != "" || len(absent.Permissions) != 0 {
		t.Fatalf("absent resolution = %+v", absent)
	}

	unknown := r.Resolve(ctx, Session{UserID: "odd", GlobalRole: roles.Developer}, "p1")
	if len(unknown.Permissions) != 0 || unknown.Has(roles.ViewTasks) {
		t.Fatalf("unknown role granted %v", unknown.Permissions.Sorted())
	}
}

func TestResolve_StoreErrorFailsClosed(t *testing.T) {
	src := &fakeSource{err: errors.New("store unreachable")}
	r := NewResolver(src, 0, discardLogger())

	got := r.Resolve(context.Background(), Session{UserID: "u1", GlobalRole: roles.Developer}, "p1")

	if got.Status != StatusError || !errors.Is(got.Err, ErrResolution) {
		t.Fatalf("got %v / %v, want error status wrapping ErrResolution", got.Status, got.Err)
	}
	if got.EffectiveRole != "" || got.Has(roles.ViewTasks) {
		t.Fatalf("failed resolution grants access: %+v", got)
	}
}

func TestResolve_TimeoutFailsClosed(t *testing.T) {
	src := &fakeSource{blocked: map[string]chan struct{}{"p1": make(chan struct{})}}
	r := NewResolver(src, 20*time.Millisecond, discardLogger())

	got := r.Resolve(context.Background(), Session{UserID: "u1", GlobalRole: roles.Developer}, "p1")

	if got.Status != StatusError || !errors.Is(got.Err, ErrResolution) {
		t.Fatalf("got %v / %v, want timeout to surface as resolution error", got.Status, got.Err)
	}
}

func TestEvaluate_CheckOrder(t *testing.T) {
	src := &fakeSource{memberships: map[string]roles.ProjectRole{"p1/mem": roles.Member}}
	g := newTestGuard(t, src, 0)
	ctx := context.Background()

	tests := []struct {
		name     string
		session  *Session
		route    Route
		state    State
		reason   error
		redirect string
	}{
		{
			name:     "unauthenticated keeps location",
			route:    Route{Location: "/projects/p1?tab=tasks", RequiredPermission: roles.ManageProject, ProjectID: "p1"},
			state:    Denied,
			reason:   ErrUnauthenticated,
			redirect: "/login?from=%2Fprojects%2Fp1%3Ftab%3Dtasks",
		},
		{
			name:     "missing global role",
			session:  &Session{UserID: "u1"},
			route:    Route{AllowedRoles: []roles.GlobalRole{roles.Developer}},
			state:    Denied,
			reason:   ErrMissingRole,
			redirect: "/unauthorized",
		},
		{
			name:     "unknown global role counts as missing",
			session:  &Session{UserID: "u1", GlobalRole: "superuser"},
			route:    Route{},
			state:    Denied,
			reason:   ErrMissingRole,
			redirect: "/unauthorized",
		},
		{
			name:     "global role not allowed",
			session:  &Session{UserID: "u1", GlobalRole: roles.Stakeholder},
			route:    Route{AllowedRoles: []roles.GlobalRole{roles.Admin, roles.ProjectManager}},
			state:    Denied,
			reason:   ErrInsufficientPermission,
			redirect: "/unauthorized",
		},
		{
			name:    "global role allowed",
			session: &Session{UserID: "u1", GlobalRole: roles.Admin},
			route:   Route{AllowedRoles: []roles.GlobalRole{roles.Admin}},
			state:   Allowed,
		},
		{
			name:     "developer without membership",
			session:  &Session{UserID: "dev", GlobalRole: roles.Developer},
			route:    Route{ProjectID: "p1", RequiredPermission: roles.ManageProject},
			state:    Denied,
			reason:   ErrInsufficientPermission,
			redirect: "/unauthorized",
		},
		{
			name:    "member may create tasks",
			session: &Session{UserID: "mem", GlobalRole: roles.Developer},
			route:   Route{ProjectID: "p1", RequiredPermission: roles.CreateTasks},
			state:   Allowed,
		},
		{
			name:     "member lacks analytics",
			session:  &Session{UserID: "mem", GlobalRole: roles.Developer},
			route:    Route{ProjectID: "p1", RequiredPermission: roles.ViewAnalytics},
			state:    Denied,
			reason:   ErrInsufficientPermission,
			redirect: "/unauthorized",
		},
		{
			name:    "project manager override",
			session: &Session{UserID: "pm", GlobalRole: roles.ProjectManager},
			route:   Route{ProjectID: "p1", RequiredPermission: roles.ManageMembers},
			state:   Allowed,
		},
		{
			name:    "allowed project roles",
			session: &Session{UserID: "mem", GlobalRole: roles.Developer},
			route:   Route{ProjectID: "p1", AllowedProjectRoles: roles.ProjectRoles()},
			state:   Allowed,
		},
		{
			name:     "no role in project",
			session:  &Session{UserID: "dev", GlobalRole: roles.Developer},
			route:    Route{ProjectID: "p1", AllowedProjectRoles: roles.ProjectRoles()},
			state:    Denied,
			reason:   ErrInsufficientPermission,
			redirect: "/unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := g.Evaluate(ctx, tt.session, tt.route)
			if v.State != tt.state {
				t.Fatalf("state = %v, want %v (reason %v)", v.State, tt.state, v.Reason)
			}
			if tt.reason != nil && !errors.Is(v.Reason, tt.reason) {
				t.Fatalf("reason = %v, want %v", v.Reason, tt.reason)
			}
			if tt.reason != ErrUnauthenticated && errors.Is(v.Reason, ErrUnauthenticated) {
				t.Fatalf("authenticated session denied as unauthenticated")
			}
			if v.RedirectTo != tt.redirect {
				t.Fatalf("redirect = %q, want %q", v.RedirectTo, tt.redirect)
			}
		})
	}
}

func TestEvaluate_ResolutionErrorDenies(t *testing.T) {
	src := &fakeSource{err: errors.New("offline")}
	g := newTestGuard(t, src, 0)

	v := g.Evaluate(context.Background(), &Session{UserID: "u", GlobalRole: roles.Developer},
		Route{ProjectID: "p1", RequiredPermission: roles.ViewTasks})

	if v.State != Denied || !errors.Is(v.Reason, ErrResolution) {
		t.Fatalf("verdict = %v / %v, want denied with resolution error", v.State, v.Reason)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("lookup attempted %d times, want exactly one", n)
	}
}

func TestDecide_PendingIsLoading(t *testing.T) {
	g := newTestGuard(t, &fakeSource{}, 0)
	session := &Session{UserID: "pm", GlobalRole: roles.Developer}
	route := Route{ProjectID: "p1", RequiredPermission: roles.ViewTasks}

	v := g.Decide(session, route, Pending("p1"))
	if v.State != Loading {
		t.Fatalf("pending resolution: state = %v, want loading", v.State)
	}

	// Precheck failures win even while the lookup is pending.
	v = g.Decide(nil, route, Pending("p1"))
	if v.State != Denied || !errors.Is(v.Reason, ErrUnauthenticated) {
		t.Fatalf("unauthenticated pending: %v / %v", v.State, v.Reason)
	}
}

func TestStart_LoadingUntilResolved(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{
		memberships: map[string]roles.ProjectRole{"p1/u1": roles.Owner},
		blocked:     map[string]chan struct{}{"p1": release},
	}
	g := newTestGuard(t, src, 0)

	e := g.Start(context.Background(), &Session{UserID: "u1", GlobalRole: roles.Developer},
		Route{ProjectID: "p1", RequiredPermission: roles.ManageProject})

	if got := e.Verdict().State; got != Loading {
		t.Fatalf("before resolution: state = %v, want loading", got)
	}

	close(release)
	v, err := e.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if v.State != Allowed {
		t.Fatalf("after resolution: state = %v (%v), want allowed", v.State, v.Reason)
	}
}

func TestStart_PrecheckSettlesImmediately(t *testing.T) {
	g := newTestGuard(t, &fakeSource{}, 0)
	e := g.Start(context.Background(), nil, Route{Location: "/x"})

	select {
	case <-e.Done():
	default:
		t.Fatal("unauthenticated evaluation did not settle synchronously")
	}
	if v := e.Verdict(); v.State != Denied || v.RedirectTo != "/login?from=%2Fx" {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestEvaluation_CancelDiscardsLateGrant(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{
		memberships: map[string]roles.ProjectRole{"p1/u1": roles.Owner},
		blocked:     map[string]chan struct{}{"p1": release},
	}
	g := newTestGuard(t, src, 0)

	e := g.Start(context.Background(), &Session{UserID: "u1", GlobalRole: roles.Developer},
		Route{ProjectID: "p1", RequiredPermission: roles.ManageProject})
	e.Cancel()
	close(release)

	v, err := e.Wait(context.Background())
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("Wait err = %v, want ErrCanceled", err)
	}
	if v.State != Loading {
		t.Fatalf("canceled evaluation reports %v", v.State)
	}
	time.Sleep(10 * time.Millisecond)
	if got := e.Verdict().State; got != Loading {
		t.Fatalf("late result leaked into canceled evaluation: %v", got)
	}
}

func TestWait_RequestContextEnds(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	src := &fakeSource{
		memberships: map[string]roles.ProjectRole{"p1/u1": roles.Owner},
		blocked:     map[string]chan struct{}{"p1": release},
	}
	g := newTestGuard(t, src, 0)

	ctx, cancel := context.WithCancel(context.Background())
	e := g.Start(ctx, &Session{UserID: "u1", GlobalRole: roles.Developer},
		Route{ProjectID: "p1", RequiredPermission: roles.ManageProject})
	cancel()

	v, err := e.Wait(ctx)
	if !errors.Is(err, context.Canceled) && !errors.Is(err, ErrCanceled) {
		t.Fatalf("Wait err = %v, want cancellation", err)
	}
	if v.State == Allowed {
		t.Fatal("abandoned evaluation reported allowed")
	}

	// A verdict that settled before the context ended is still returned.
	settled := g.Start(ctx, nil, Route{Location: "/x"})
	if v, err := settled.Wait(ctx); err != nil || v.State != Denied {
		t.Fatalf("settled Wait = %+v, %v", v, err)
	}
}

func TestGate_SupersededEvaluationCannotOverwrite(t *testing.T) {
	slow := make(chan struct{})
	src := &fakeSource{
		memberships: map[string]roles.ProjectRole{"p1/u1": roles.Owner},
		blocked:     map[string]chan struct{}{"p1": slow},
	}
	g := newTestGuard(t, src, 0)

	var mu sync.Mutex
	var delivered []Verdict
	settled := make(chan struct{}, 4)
	gate := NewGate(g, func(v Verdict) {
		mu.Lock()
		delivered = append(delivered, v)
		mu.Unlock()
		settled <- struct{}{}
	})

	session := &Session{UserID: "u1", GlobalRole: roles.Developer}
	first := gate.Navigate(context.Background(), session, Route{ProjectID: "p1", RequiredPermission: roles.ManageProject})
	if gate.Verdict().State != Loading {
		t.Fatal("gate should be loading while p1 resolves")
	}

	second := gate.Navigate(context.Background(), session, Route{ProjectID: "p2", RequiredPermission: roles.ManageProject})
	if _, err := second.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	<-settled

	close(slow)
	if _, err := first.Wait(context.Background()); !errors.Is(err, ErrCanceled) {
		t.Fatalf("first Wait err = %v, want ErrCanceled", err)
	}
	time.Sleep(10 * time.Millisecond)

	if v := gate.Verdict(); v.State != Denied || v.Resolution.ProjectID != "p2" {
		t.Fatalf("gate verdict = %v for %q, want denied for p2", v.State, v.Resolution.ProjectID)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0].State != Denied {
		t.Fatalf("delivered verdicts = %+v, want only the p2 denial", delivered)
	}
}

func TestGate_CloseDiscardsPending(t *testing.T) {
	slow := make(chan struct{})
	src := &fakeSource{
		memberships: map[string]roles.ProjectRole{"p1/u1": roles.Owner},
		blocked:     map[string]chan struct{}{"p1": slow},
	}
	called := make(chan Verdict, 1)
	gate := NewGate(newTestGuard(t, src, 0), func(v Verdict) { called <- v })

	e := gate.Navigate(context.Background(), &Session{UserID: "u1", GlobalRole: roles.Developer},
		Route{ProjectID: "p1", RequiredPermission: roles.ManageProject})
	gate.Close()
	close(slow)
	<-e.Done()

	select {
	case v := <-called:
		t.Fatalf("closed gate delivered %v", v.State)
	case <-time.After(20 * time.Millisecond):
	}
	if gate.Verdict().State != Loading {
		t.Fatal("closed gate should report loading")
	}
}

func TestResolution_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Pending("p1"))
	if err != nil {
		t.Fatal(err)
	}
	var pending map[string]any
	if err := json.Unmarshal(data, &pending); err != nil {
		t.Fatal(err)
	}
	if pending["status"] != "pending" || pending["effective_role"] != nil || pending["can_create_tasks"] != false {
		t.Fatalf("pending payload = %s", data)
	}

	data, err = json.Marshal(resolved("p1", roles.Manager))
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["effective_role"] != "manager" || got["can_manage_tasks"] != true || got["can_manage_members"] != false {
		t.Fatalf("manager payload = %s", data)
	}
}
