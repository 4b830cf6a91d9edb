package session

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Defaults observed in production: client-facing principals get a longer
// primary inactivity window than internal ones, mutating actions are gated
// by a fixed 20 minute action session, and both windows warn 3 minutes
// before they end.
const (
	DefaultClientFacingTimeout = 15 * time.Minute
	DefaultInternalTimeout     = 10 * time.Minute
	DefaultActionWindow        = 20 * time.Minute
	DefaultWarningLead         = 3 * time.Minute
	DefaultLogoutGrace         = 3 * time.Second
)

// readActionKeywords classifies an action as read-only. Read actions never
// require re-authentication, whatever the session state.
var readActionKeywords = []string{"view", "details", "get", "list", "search"}

// IsReadAction reports whether the action name matches the read-only
// classification, case-insensitively.
func IsReadAction(action string) bool {
	a := strings.ToLower(action)
	for _, kw := range readActionKeywords {
		if strings.Contains(a, kw) {
			return true
		}
	}
	return false
}

// Event is a user-visible session notice.
type Event string

const (
	EventSessionWarning Event = "session_warning"
	EventSessionExpired Event = "session_expired"
	EventActionWarning  Event = "action_session_warning"
	EventActionExpired  Event = "action_session_expired"
)

// Notifier receives session notices. Remaining is the time left on the
// window the notice concerns, zero for expiry events.
type Notifier interface {
	Notify(e Event, remaining time.Duration)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(e Event, remaining time.Duration)

func (f NotifierFunc) Notify(e Event, remaining time.Duration) { f(e, remaining) }

// LogoutFunc performs the forced logout side effect: invalidating the
// server-side session, clearing cookies, whatever the host application
// needs. It runs after the grace delay that follows primary expiry.
type LogoutFunc func(principalID string)

// Config tunes the manager's windows. Zero values take the defaults above.
type Config struct {
	ClientFacingTimeout time.Duration
	InternalTimeout     time.Duration
	ActionWindow        time.Duration
	WarningLead         time.Duration
	LogoutGrace         time.Duration
}

func (c Config) withDefaults() Config {
	if c.ClientFacingTimeout <= 0 {
		c.ClientFacingTimeout = DefaultClientFacingTimeout
	}
	if c.InternalTimeout <= 0 {
		c.InternalTimeout = DefaultInternalTimeout
	}
	if c.ActionWindow <= 0 {
		c.ActionWindow = DefaultActionWindow
	}
	if c.WarningLead <= 0 {
		c.WarningLead = DefaultWarningLead
	}
	if c.LogoutGrace <= 0 {
		c.LogoutGrace = DefaultLogoutGrace
	}
	return c
}

// State is a point-in-time snapshot of the manager.
type State struct {
	Active           bool      `json:"active"`
	PrincipalID      string    `json:"principalId,omitempty"`
	ReadOnly         bool      `json:"readOnly"`
	ActionValid      bool      `json:"actionSessionActive"`
	PrimaryExpiresAt time.Time `json:"primaryExpiresAt,omitzero"`
	ActionExpiresAt  time.Time `json:"actionSessionExpiresAt,omitzero"`
}

// Manager tracks one principal's primary inactivity session and the
// shorter-lived action session gating mutations. It is an explicit state
// machine: all transitions happen under the mutex, and timer callbacks
// re-check state so a stale fire cannot run a transition twice.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	clock    Clock
	sched    Scheduler
	notifier Notifier
	logout   LogoutFunc
	logger   *slog.Logger

	active       bool
	principalID  string
	clientFacing bool
	readOnly     bool
	expiring     bool
	gen          uint64

	primaryExpiresAt time.Time
	actionExpiresAt  time.Time
	actionExpired    bool

	primaryWarn   Timer
	primaryExpire Timer
	grace         Timer
	actionWarn    Timer
	actionExpire  Timer
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(c Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// WithScheduler overrides the timer scheduler, for tests.
func WithScheduler(s Scheduler) ManagerOption {
	return func(m *Manager) { m.sched = s }
}

// WithLogger sets the structured logger for session transitions.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger.With("component", "session") }
}

// NewManager creates a session manager. The notifier receives warnings and
// expiry notices; logout runs after primary expiry's grace delay.
func NewManager(cfg Config, notifier Notifier, logout LogoutFunc, opts ...ManagerOption) *Manager {
	m := &Manager{
		cfg:      cfg.withDefaults(),
		clock:    SystemClock{},
		sched:    SystemScheduler{},
		notifier: notifier,
		logout:   logout,
		logger:   slog.Default().With("component", "session"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the primary and action sessions for a principal. An already
// running session is replaced.
func (m *Manager) Start(principalID string, clientFacing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked()
	m.active = true
	m.principalID = principalID
	m.clientFacing = clientFacing
	m.gen++

	m.armPrimaryLocked()
	m.armActionLocked()

	m.logger.Info("session started",
		"principal_id", principalID,
		"client_facing", clientFacing,
		"primary_expires_at", m.primaryExpiresAt,
		"action_expires_at", m.actionExpiresAt,
	)
}

// Touch records user activity and pushes the primary inactivity deadline
// out. It has no effect once primary expiry has begun.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.expiring {
		return
	}
	m.armPrimaryLocked()
}

// Reset restarts the action session after a successful re-authentication.
// It also leaves read-only mode, since the principal's identity was just
// reconfirmed.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.expiring {
		return
	}
	m.readOnly = false
	m.armActionLocked()
	m.logger.Info("action session reset",
		"principal_id", m.principalID,
		"action_expires_at", m.actionExpiresAt,
	)
}

// EnterReadOnly blocks all mutating actions until re-authentication or an
// explicit ExitReadOnly.
func (m *Manager) EnterReadOnly() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = true
}

// ExitReadOnly lifts the manual read-only override.
func (m *Manager) ExitReadOnly() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = false
}

// End terminates the session voluntarily (explicit logout) and clears all
// state. The logout side effect does not run; the caller is already logging
// out.
func (m *Manager) End() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// RequiresReAuth reports whether the named action needs identity
// reconfirmation before it may run. Read actions never do. Mutating actions
// do while read-only mode is on or once the action session has run out.
func (m *Manager) RequiresReAuth(action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requiresReAuthLocked(action)
}

func (m *Manager) requiresReAuthLocked(action string) bool {
	if IsReadAction(action) {
		return false
	}
	if m.readOnly {
		return true
	}
	if !m.active {
		return true
	}
	return m.actionExpired || !m.clock.Now().Before(m.actionExpiresAt)
}

// Do runs fn only when the session permits the named action. It returns
// ErrNotStarted or ErrSessionExpired when there is no live primary session,
// and ErrReadOnly or ErrActionSessionExpired when the action is gated.
func (m *Manager) Do(action string, fn func() error) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.expiring || !m.clock.Now().Before(m.primaryExpiresAt) {
		m.mu.Unlock()
		return ErrSessionExpired
	}
	if m.requiresReAuthLocked(action) {
		readOnly := m.readOnly
		m.mu.Unlock()
		if readOnly {
			return ErrReadOnly
		}
		return ErrActionSessionExpired
	}
	m.mu.Unlock()
	return fn()
}

// State returns a snapshot of the current session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := State{
		Active:      m.active,
		PrincipalID: m.principalID,
		ReadOnly:    m.readOnly,
	}
	if m.active {
		s.PrimaryExpiresAt = m.primaryExpiresAt
		s.ActionExpiresAt = m.actionExpiresAt
		s.ActionValid = !m.actionExpired && m.clock.Now().Before(m.actionExpiresAt)
	}
	return s
}

func (m *Manager) primaryTimeout() time.Duration {
	if m.clientFacing {
		return m.cfg.ClientFacingTimeout
	}
	return m.cfg.InternalTimeout
}

// armPrimaryLocked (re)schedules the primary warning and expiry timers from
// the current instant.
func (m *Manager) armPrimaryLocked() {
	stopTimer(&m.primaryWarn)
	stopTimer(&m.primaryExpire)

	timeout := m.primaryTimeout()
	m.primaryExpiresAt = m.clock.Now().Add(timeout)
	gen := m.gen

	if lead := m.cfg.WarningLead; lead < timeout {
		m.primaryWarn = m.sched.Schedule(timeout-lead, func() {
			m.onPrimaryWarning(gen)
		})
	}
	m.primaryExpire = m.sched.Schedule(timeout, func() {
		m.onPrimaryExpiry(gen)
	})
}

func (m *Manager) armActionLocked() {
	stopTimer(&m.actionWarn)
	stopTimer(&m.actionExpire)

	window := m.cfg.ActionWindow
	m.actionExpiresAt = m.clock.Now().Add(window)
	m.actionExpired = false
	gen := m.gen

	if lead := m.cfg.WarningLead; lead < window {
		m.actionWarn = m.sched.Schedule(window-lead, func() {
			m.onActionWarning(gen)
		})
	}
	m.actionExpire = m.sched.Schedule(window, func() {
		m.onActionExpiry(gen)
	})
}

func (m *Manager) onPrimaryWarning(gen uint64) {
	m.mu.Lock()
	if !m.active || m.expiring || gen != m.gen {
		m.mu.Unlock()
		return
	}
	remaining := m.primaryExpiresAt.Sub(m.clock.Now())
	m.mu.Unlock()
	m.notifier.Notify(EventSessionWarning, remaining)
}

// onPrimaryExpiry fires the expiry notice and schedules the forced logout
// after the grace delay. The expiring flag makes the transition one-shot: a
// duplicate timer fire, or a Touch racing the fire, cannot restart it.
func (m *Manager) onPrimaryExpiry(gen uint64) {
	m.mu.Lock()
	if !m.active || m.expiring || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.expiring = true
	m.grace = m.sched.Schedule(m.cfg.LogoutGrace, func() {
		m.onForcedLogout(gen)
	})
	principal := m.principalID
	m.mu.Unlock()

	m.logger.Info("session expired", "principal_id", principal)
	m.notifier.Notify(EventSessionExpired, 0)
}

func (m *Manager) onForcedLogout(gen uint64) {
	m.mu.Lock()
	if !m.active || gen != m.gen {
		m.mu.Unlock()
		return
	}
	principal := m.principalID
	m.clearLocked()
	m.mu.Unlock()

	m.logger.Info("forced logout", "principal_id", principal)
	if m.logout != nil {
		m.logout(principal)
	}
}

func (m *Manager) onActionWarning(gen uint64) {
	m.mu.Lock()
	if !m.active || m.expiring || m.actionExpired || gen != m.gen {
		m.mu.Unlock()
		return
	}
	remaining := m.actionExpiresAt.Sub(m.clock.Now())
	m.mu.Unlock()
	m.notifier.Notify(EventActionWarning, remaining)
}

func (m *Manager) onActionExpiry(gen uint64) {
	m.mu.Lock()
	if !m.active || m.expiring || m.actionExpired || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.actionExpired = true
	m.mu.Unlock()
	m.notifier.Notify(EventActionExpired, 0)
}

// clearLocked wipes every piece of session state, primary and action alike.
func (m *Manager) clearLocked() {
	stopTimer(&m.primaryWarn)
	stopTimer(&m.primaryExpire)
	stopTimer(&m.grace)
	stopTimer(&m.actionWarn)
	stopTimer(&m.actionExpire)

	m.active = false
	m.expiring = false
	m.principalID = ""
	m.clientFacing = false
	m.readOnly = false
	m.actionExpired = false
	m.primaryExpiresAt = time.Time{}
	m.actionExpiresAt = time.Time{}
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
