package access

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"scrumboard/internal/roles"
)

// State is the outcome of a guard evaluation. Loading is the only
// non-terminal state.
type State int

const (
	Loading State = iota
	Allowed
	Denied
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Route describes what a protected location demands.
type Route struct {
	// Location is the originally requested location, carried through the
	// sign-in redirect.
	Location string

	// AllowedRoles restricts the route to these global roles when non-empty.
	AllowedRoles []roles.GlobalRole

	// ProjectID scopes the project checks below.
	ProjectID string

	// RequiredPermission must be granted by the effective project role.
	RequiredPermission roles.Permission

	// AllowedProjectRoles restricts the route to these effective project
	// roles when non-empty.
	AllowedProjectRoles []roles.ProjectRole
}

func (r Route) needsProject() bool {
	return r.RequiredPermission != "" || len(r.AllowedProjectRoles) > 0
}

// Verdict is the guard's decision for one (session, route) pair.
type Verdict struct {
	State      State      `json:"state"`
	RedirectTo string     `json:"redirect,omitempty"`
	Reason     error      `json:"-"`
	Resolution Resolution `json:"-"`
}

// Paths are the redirect targets used by denied verdicts.
type Paths struct {
	SignIn       string
	Unauthorized string
}

// DefaultPaths returns the conventional sign-in and unauthorized pages.
func DefaultPaths() Paths {
	return Paths{SignIn: "/login", Unauthorized: "/unauthorized"}
}

// Guard decides whether a session may enter a route. Checks run in a
// fixed order and stop at the first failure: authentication, presence of
// a global role, allowed global roles, then project permission.
type Guard struct {
	resolver *Resolver
	paths    Paths
	logger   *slog.Logger
}

// NewGuard builds a guard that resolves project permissions with resolver.
func NewGuard(resolver *Resolver, paths Paths, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultPaths()
	if paths.SignIn == "" {
		paths.SignIn = defaults.SignIn
	}
	if paths.Unauthorized == "" {
		paths.Unauthorized = defaults.Unauthorized
	}
	return &Guard{resolver: resolver, paths: paths, logger: logger}
}

// Evaluate runs every check, blocking on the membership lookup when the
// route needs one. The returned verdict is always terminal.
func (g *Guard) Evaluate(ctx context.Context, session *Session, route Route) Verdict {
	if v, done := g.precheck(session, route); done {
		return v
	}
	res := g.resolver.Resolve(ctx, *session, route.ProjectID)
	return g.decideProject(session, route, res)
}

// Decide evaluates the route against a snapshot of the project resolution.
// A pending resolution yields Loading; it is never treated as access.
func (g *Guard) Decide(session *Session, route Route, res Resolution) Verdict {
	if v, done := g.precheck(session, route); done {
		return v
	}
	return g.decideProject(session, route, res)
}

func (g *Guard) decideProject(session *Session, route Route, res Resolution) Verdict {
	switch res.Status {
	case StatusPending:
		return Verdict{State: Loading, Resolution: res}
	case StatusError:
		reason := res.Err
		if reason == nil {
			reason = ErrResolution
		}
		return g.deny(session, route, reason, res)
	}

	if route.RequiredPermission != "" && !res.Has(route.RequiredPermission) {
		return g.deny(session, route, fmt.Errorf("%w: %s", ErrInsufficientPermission, route.RequiredPermission), res)
	}
	if len(route.AllowedProjectRoles) > 0 && !res.HasRole(route.AllowedProjectRoles...) {
		return g.deny(session, route, fmt.Errorf("%w: project role %q", ErrInsufficientPermission, res.EffectiveRole), res)
	}
	return Verdict{State: Allowed, Resolution: res}
}

// precheck runs the checks that need no lookup. done is true when the
// verdict is final without consulting project permissions.
func (g *Guard) precheck(session *Session, route Route) (v Verdict, done bool) {
	if session == nil {
		return Verdict{State: Denied, Reason: ErrUnauthenticated, RedirectTo: g.signInRedirect(route.Location)}, true
	}
	if !session.GlobalRole.Valid() {
		return g.deny(session, route, ErrMissingRole, Resolution{}), true
	}
	if len(route.AllowedRoles) > 0 && !allowsGlobal(route.AllowedRoles, session.GlobalRole) {
		return g.deny(session, route, fmt.Errorf("%w: global role %q", ErrInsufficientPermission, session.GlobalRole), Resolution{}), true
	}
	if !route.needsProject() {
		return Verdict{State: Allowed}, true
	}
	return Verdict{}, false
}

func (g *Guard) deny(session *Session, route Route, reason error, res Resolution) Verdict {
	g.logger.Warn("access denied",
		slog.String("user", session.UserID),
		slog.String("project", route.ProjectID),
		slog.String("location", route.Location),
		slog.String("reason", reason.Error()))
	return Verdict{State: Denied, Reason: reason, RedirectTo: g.paths.Unauthorized, Resolution: res}
}

func (g *Guard) signInRedirect(location string) string {
	if location == "" {
		return g.paths.SignIn
	}
	return g.paths.SignIn + "?from=" + url.QueryEscape(location)
}

func allowsGlobal(allowed []roles.GlobalRole, role roles.GlobalRole) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
