package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Directory resolves the approver pools. Pools are role-qualified principal
// IDs; a phase advances only when every member of its pool has voted the
// same way.
type Directory interface {
	// SupervisorPool returns the principal IDs qualified to supervise the
	// given category.
	SupervisorPool(c Category) []string
	// ResponsiblePool returns the principal IDs qualified for the
	// responsible-party phase. The responsible pool is shared by both
	// categories.
	ResponsiblePool() []string
}

// Applier materializes an approved request's payload against the entity
// store. Apply is invoked exactly once per request, when the responsible
// phase reaches full approval. Rejected requests are never applied.
type Applier interface {
	Apply(ctx context.Context, req *Request) error
}

// RequestStore persists requests. Implementations must assign IDs on Create.
type RequestStore interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	Update(ctx context.Context, req *Request) error
	// List returns requests, optionally filtered by status (empty means all).
	List(ctx context.Context, status Status) ([]*Request, error)
}

// Engine drives the two-phase approval workflow. All vote recording is
// serialized through a single mutex so duplicate deliveries of the same vote
// cannot double-count or fire a transition twice.
type Engine struct {
	mu        sync.Mutex
	store     RequestStore
	directory Directory
	applier   Applier
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures the Engine.
type Option func(*Engine)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the structured logger for workflow events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger.With("component", "approval") }
}

// NewEngine creates an approval engine over the given store, directory and
// applier.
func NewEngine(store RequestStore, directory Directory, applier Applier, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		directory: directory,
		applier:   applier,
		now:       time.Now,
		logger:    slog.Default().With("component", "approval"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Requester identifies who submitted a request.
type Requester struct {
	ID   string
	Name string
}

// Submit creates a new request in the supervisor phase with empty vote sets.
func (e *Engine) Submit(ctx context.Context, t Type, payload json.RawMessage, by Requester) (*Request, error) {
	if _, ok := CategoryOf(t); !ok {
		return nil, fmt.Errorf("unknown request type %q: %w", t, ErrValidation)
	}
	if by.ID == "" {
		return nil, fmt.Errorf("missing requester: %w", ErrValidation)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("missing payload: %w", ErrValidation)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid JSON: %w", ErrValidation)
	}

	req := &Request{
		RequesterID:   by.ID,
		RequesterName: by.Name,
		Type:          t,
		CreatedAt:     e.now().UTC(),
		Status:        StatusAwaitingSupervisor,
		Payload:       append(json.RawMessage(nil), payload...),
	}
	if err := e.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting request: %w", err)
	}

	e.logger.Info("request submitted",
		"request_id", req.ID,
		"type", string(t),
		"requester_id", by.ID,
	)
	return req.clone(), nil
}

// Approve records an approval vote from actorID. When the approval set covers
// the phase's full pool the request advances: supervisor phase to the
// responsible phase, responsible phase to Approved with the payload applied.
// A repeated vote from the same actor in the same phase is a no-op.
func (e *Engine) Approve(ctx context.Context, requestID, actorID string) (*Request, error) {
	return e.vote(ctx, requestID, actorID, true)
}

// Reject records a rejection vote from actorID. When the rejection set covers
// the phase's full pool the request becomes Rejected with no side effects.
// A repeated vote from the same actor in the same phase is a no-op.
func (e *Engine) Reject(ctx context.Context, requestID, actorID string) (*Request, error) {
	return e.vote(ctx, requestID, actorID, false)
}

func (e *Engine) vote(ctx context.Context, requestID, actorID string, approve bool) (*Request, error) {
	if actorID == "" {
		return nil, fmt.Errorf("missing actor: %w", ErrValidation)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	req, err := e.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	phase, ok := req.Phase()
	if !ok {
		return nil, fmt.Errorf("request %s is %s: %w", req.ID, req.Status, ErrTerminalStatus)
	}

	pool := e.poolFor(req, phase)
	if len(pool) == 0 {
		return nil, fmt.Errorf("request %s, phase %s: %w", req.ID, phase, ErrNoApprovers)
	}
	if !contains(pool, actorID) {
		return nil, fmt.Errorf("actor %s, request %s: %w", actorID, req.ID, ErrPermissionDenied)
	}

	approved, rejected := req.votes(phase)
	if approved.Has(actorID) || rejected.Has(actorID) {
		// Already voted this phase; repeated deliveries are idempotent.
		return req.clone(), nil
	}

	votes := approved
	if !approve {
		votes = rejected
	}
	votes.Add(actorID)

	transitioned := len(*votes) >= len(pool)
	if transitioned {
		if approve {
			if err := e.advance(ctx, req, phase); err != nil {
				return nil, err
			}
		} else {
			req.Status = StatusRejected
		}
	}

	if err := e.store.Update(ctx, req); err != nil {
		return nil, fmt.Errorf("persisting vote: %w", err)
	}

	e.logger.Info("vote recorded",
		"request_id", req.ID,
		"actor_id", actorID,
		"phase", string(phase),
		"approve", approve,
		"status", string(req.Status),
	)
	return req.clone(), nil
}

// advance moves an all-approved request out of the given phase. The payload
// is applied before the Approved status is persisted, so a failed apply
// leaves the request awaiting the responsible pool and the final vote
// unrecorded.
func (e *Engine) advance(ctx context.Context, req *Request, phase Phase) error {
	if phase == PhaseSupervisor {
		req.Status = StatusAwaitingResponsible
		return nil
	}
	if err := e.applier.Apply(ctx, req); err != nil {
		return fmt.Errorf("applying request %s: %w", req.ID, err)
	}
	req.Status = StatusApproved
	return nil
}

func (e *Engine) poolFor(req *Request, phase Phase) []string {
	if phase == PhaseSupervisor {
		return e.directory.SupervisorPool(req.Category())
	}
	return e.directory.ResponsiblePool()
}

// Get returns a request by ID.
func (e *Engine) Get(ctx context.Context, id string) (*Request, error) {
	req, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return req.clone(), nil
}

// List returns requests, optionally filtered by status.
func (e *Engine) List(ctx context.Context, status Status) ([]*Request, error) {
	reqs, err := e.store.List(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]*Request, len(reqs))
	for i, r := range reqs {
		out[i] = r.clone()
	}
	return out, nil
}

func contains(pool []string, id string) bool {
	for _, p := range pool {
		if p == id {
			return true
		}
	}
	return false
}
