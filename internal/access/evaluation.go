package access

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Evaluation is an in-flight guard decision. It reports Loading until the
// membership lookup settles and stays Loading forever once canceled, so a
// late lookup result can never grant access.
type Evaluation struct {
	ID      string
	Session *Session
	Route   Route

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	verdict  Verdict
	settled  bool
	canceled bool
}

// Start begins evaluating route for session without blocking. Checks that
// need no lookup settle immediately.
func (g *Guard) Start(ctx context.Context, session *Session, route Route) *Evaluation {
	ctx, cancel := context.WithCancel(ctx)
	e := &Evaluation{
		ID:      uuid.NewString(),
		Session: session,
		Route:   route,
		cancel:  cancel,
		done:    make(chan struct{}),
		verdict: Verdict{State: Loading, Resolution: Pending(route.ProjectID)},
	}

	if v, done := g.precheck(session, route); done {
		e.settle(v)
		return e
	}

	go func() {
		res := g.resolver.Resolve(ctx, *session, route.ProjectID)
		if ctx.Err() != nil {
			// Abandoned by the caller; whatever came back is discarded.
			e.Cancel()
			return
		}
		e.settle(g.decideProject(session, route, res))
	}()
	return e
}

func (e *Evaluation) settle(v Verdict) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled || e.canceled {
		return
	}
	e.verdict = v
	e.settled = true
	e.cancel()
	close(e.done)
}

// Cancel abandons the evaluation. It is a no-op once the evaluation has
// settled.
func (e *Evaluation) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.settled || e.canceled {
		return
	}
	e.canceled = true
	e.cancel()
	close(e.done)
}

// Verdict returns the current verdict without blocking.
func (e *Evaluation) Verdict() Verdict {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verdict
}

// Done is closed once the evaluation settles or is canceled.
func (e *Evaluation) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the evaluation settles. It returns ErrCanceled when the
// evaluation was abandoned, and ctx.Err() when ctx ends first. A verdict
// that has already settled is returned even if ctx is done.
func (e *Evaluation) Wait(ctx context.Context) (Verdict, error) {
	select {
	case <-e.done:
	default:
		select {
		case <-e.done:
		case <-ctx.Done():
			return e.Verdict(), ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.canceled {
		return e.verdict, ErrCanceled
	}
	return e.verdict, nil
}

// Gate holds the evaluation for a single consumer, such as one mounted
// view. Each Navigate restarts from Loading and supersedes the previous
// evaluation; verdicts are never reused across (session, route) pairs.
type Gate struct {
	guard    *Guard
	onSettle func(Verdict)

	mu         sync.Mutex
	generation uint64
	current    *Evaluation
}

// NewGate builds a gate. onSettle, if set, receives each verdict that
// settles while its evaluation is still the current one. It runs with the
// gate locked and must not call back into the gate.
func NewGate(guard *Guard, onSettle func(Verdict)) *Gate {
	return &Gate{guard: guard, onSettle: onSettle}
}

// Navigate cancels the current evaluation and starts a new one.
func (g *Gate) Navigate(ctx context.Context, session *Session, route Route) *Evaluation {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current != nil {
		g.current.Cancel()
	}
	g.generation++
	gen := g.generation
	e := g.guard.Start(ctx, session, route)
	g.current = e

	go func() {
		<-e.Done()
		g.mu.Lock()
		defer g.mu.Unlock()
		if gen != g.generation {
			return
		}
		v, err := e.Wait(context.Background())
		if err != nil || g.onSettle == nil {
			return
		}
		g.onSettle(v)
	}()
	return e
}

// Verdict reports the verdict of the current evaluation, or Loading when
// nothing has been evaluated yet.
func (g *Gate) Verdict() Verdict {
	g.mu.Lock()
	e := g.current
	g.mu.Unlock()
	if e == nil {
		return Verdict{State: Loading}
	}
	return e.Verdict()
}

// Close cancels any pending evaluation, for example when the consuming
// view unmounts. Later results are discarded.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.generation++
	if g.current != nil {
		g.current.Cancel()
		g.current = nil
	}
}
