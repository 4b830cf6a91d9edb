// Package reauth implements the identity-reconfirmation handshake used to
// exit read-only mode or recover an expired action session. A handshake
// opens an out-of-band verification flow and waits on two resolution
// channels at once: a cross-context message delivered by the flow itself,
// and a poll of the auth gateway's reauthentication status. Whichever
// channel resolves first wins; everything after is discarded.
package reauth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultPollInterval is how often the gateway status is polled while a
	// handshake is in flight.
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultTimeout bounds the whole attempt.
	DefaultTimeout = 30 * time.Second
)

// Message kinds delivered by the out-of-band flow.
const (
	MessageSuccess = "REAUTH_SUCCESS"
	MessageFailed  = "REAUTH_FAILED"
)

// Message is a cross-context resolution signal.
type Message struct {
	Kind      string    `json:"type"`
	MessageID string    `json:"messageId"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Reason classifies a failed handshake.
type Reason string

const (
	ReasonVerificationFailed Reason = "verification_failed"
	ReasonTimeout            Reason = "timeout"
	ReasonUserCancelled      Reason = "user_cancelled"
	ReasonPopupBlocked       Reason = "popup_blocked"
)

// Opener starts and tears down the out-of-band verification flow, typically
// a browser popup pointed at the re-auth login URL. Open returns an error
// when the flow cannot start at all.
type Opener interface {
	Open(ctx context.Context, principalID string) error
	Close()
}

// Status is the gateway's view of the most recent re-authentication.
type Status struct {
	Authenticated     bool      `json:"authenticated"`
	PrincipalID       string    `json:"principalId,omitempty"`
	ReauthenticatedAt time.Time `json:"reauthenticatedAt,omitzero"`
}

// StatusClient reads and resets the gateway's reauthentication status.
// Reset is one-shot: a consumed status must not resolve a later handshake.
type StatusClient interface {
	Status(ctx context.Context) (Status, error)
	Reset(ctx context.Context) error
}

// Callbacks receive the handshake outcome. Exactly one of the two fires per
// Begin, on a background goroutine.
type Callbacks struct {
	OnSuccess func()
	OnFailure func(Reason)
}

// Handshake coordinates a single re-authentication attempt at a time.
type Handshake struct {
	mu           sync.Mutex
	opener       Opener
	status       StatusClient
	pollInterval time.Duration
	timeout      time.Duration
	logger       *slog.Logger

	inFlight    bool
	resolved    bool
	expectedID  string
	startedAt   time.Time
	processed   map[string]struct{}
	callbacks   Callbacks
	stopPolling context.CancelFunc
}

// Option configures a Handshake.
type Option func(*Handshake)

// WithPollInterval overrides the status poll cadence, for tests.
func WithPollInterval(d time.Duration) Option {
	return func(h *Handshake) { h.pollInterval = d }
}

// WithTimeout overrides the attempt deadline, for tests.
func WithTimeout(d time.Duration) Option {
	return func(h *Handshake) { h.timeout = d }
}

// WithLogger sets the structured logger for handshake events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handshake) { h.logger = logger.With("component", "reauth") }
}

// New creates a handshake coordinator over the given opener and status
// client.
func New(opener Opener, status StatusClient, opts ...Option) *Handshake {
	h := &Handshake{
		opener:       opener,
		status:       status,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		logger:       slog.Default().With("component", "reauth"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Begin starts a handshake for the given principal. It opens the
// out-of-band flow and polls the gateway status until the attempt resolves
// or times out. A handshake already in flight is an error.
func (h *Handshake) Begin(ctx context.Context, expectedPrincipalID string, cb Callbacks) error {
	h.mu.Lock()
	if h.inFlight && !h.resolved {
		h.mu.Unlock()
		return ErrInFlight
	}

	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
	h.inFlight = true
	h.resolved = false
	h.expectedID = expectedPrincipalID
	h.startedAt = time.Now()
	h.processed = make(map[string]struct{})
	h.callbacks = cb
	h.stopPolling = cancel
	h.mu.Unlock()

	if err := h.opener.Open(ctx, expectedPrincipalID); err != nil {
		h.logger.Warn("verification flow failed to open", "error", err)
		h.resolve(false, ReasonPopupBlocked)
		return nil
	}

	h.logger.Info("handshake started", "principal_id", expectedPrincipalID)
	go h.poll(pollCtx)
	return nil
}

// Deliver feeds a cross-context message into the in-flight handshake.
// Messages with an already-processed ID, or arriving after resolution or
// cancellation, are discarded.
func (h *Handshake) Deliver(msg Message) {
	h.mu.Lock()
	if !h.inFlight || h.resolved {
		h.mu.Unlock()
		return
	}
	if msg.MessageID != "" {
		if _, seen := h.processed[msg.MessageID]; seen {
			h.mu.Unlock()
			return
		}
		h.processed[msg.MessageID] = struct{}{}
	}
	h.mu.Unlock()

	switch msg.Kind {
	case MessageSuccess:
		h.resolve(true, "")
	case MessageFailed:
		h.resolve(false, ReasonVerificationFailed)
	}
}

// Cancel abandons the in-flight handshake. The failure callback fires with
// ReasonUserCancelled, polling stops, and late messages are ignored.
func (h *Handshake) Cancel() {
	h.resolve(false, ReasonUserCancelled)
}

// InFlight reports whether an unresolved handshake exists.
func (h *Handshake) InFlight() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inFlight && !h.resolved
}

func (h *Handshake) poll(ctx context.Context) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.resolve(false, ReasonTimeout)
			return
		case <-ticker.C:
			st, err := h.status.Status(ctx)
			if err != nil {
				continue
			}
			if !st.Authenticated {
				continue
			}
			if st.PrincipalID != "" && st.PrincipalID != h.expected() {
				h.resolve(false, ReasonVerificationFailed)
				return
			}
			h.resolve(true, "")
			return
		}
	}
}

func (h *Handshake) expected() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.expectedID
}

// resolve settles the handshake exactly once. The first caller wins; every
// later signal, poll result or timeout finds resolved set and returns.
func (h *Handshake) resolve(success bool, reason Reason) {
	h.mu.Lock()
	if !h.inFlight || h.resolved {
		h.mu.Unlock()
		return
	}
	h.resolved = true
	cb := h.callbacks
	stop := h.stopPolling
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	h.opener.Close()

	if success {
		// Consume the gateway status so it cannot resolve a later attempt.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.status.Reset(ctx); err != nil {
			h.logger.Warn("failed to reset reauthentication status", "error", err)
		}
		h.logger.Info("handshake succeeded")
		if cb.OnSuccess != nil {
			cb.OnSuccess()
		}
		return
	}

	h.logger.Info("handshake failed", "reason", string(reason))
	if cb.OnFailure != nil {
		cb.OnFailure(reason)
	}
}
