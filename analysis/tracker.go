package analysis

import (
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCompletionDelay is how long a simulated scan runs before its
// report becomes available.
const DefaultCompletionDelay = 10 * time.Second

// commentEditWindow is how long a non-supervisor author may edit their own
// comment.
const commentEditWindow = 3 * time.Minute

// Scheduler runs a function after a delay. The production tracker uses
// time.AfterFunc; tests substitute a synchronous fake.
type Scheduler func(d time.Duration, fn func()) (stop func())

func systemScheduler(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Tracker holds analyses, their reports and their comment threads. Scans
// complete in the background after a fixed delay.
type Tracker struct {
	mu       sync.Mutex
	analyses map[string]*Analysis
	reports  map[string]*Report
	comments map[string]*Comment
	pending  map[string]func()

	delay  time.Duration
	sched  Scheduler
	now    func() time.Time
	rng    *rand.Rand
	logger *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithCompletionDelay overrides the simulated scan duration.
func WithCompletionDelay(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.delay = d }
}

// WithScheduler overrides the timer scheduler, for tests.
func WithScheduler(s Scheduler) TrackerOption {
	return func(t *Tracker) { t.sched = s }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

// WithRand seeds the report generator deterministically.
func WithRand(rng *rand.Rand) TrackerOption {
	return func(t *Tracker) { t.rng = rng }
}

// WithLogger sets the structured logger for tracker events.
func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = logger.With("component", "analysis") }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		analyses: make(map[string]*Analysis),
		reports:  make(map[string]*Report),
		comments: make(map[string]*Comment),
		pending:  make(map[string]func()),
		delay:    DefaultCompletionDelay,
		sched:    systemScheduler,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:   slog.Default().With("component", "analysis"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Create registers a new analysis for the URL and schedules its simulated
// completion.
func (t *Tracker) Create(url, groupID string) *Analysis {
	t.mu.Lock()
	a := &Analysis{
		ID:        uuid.NewString(),
		URL:       url,
		State:     StateInProgress,
		GroupID:   groupID,
		CreatedAt: t.now().UTC(),
	}
	t.analyses[a.ID] = a
	t.pending[a.ID] = t.sched(t.delay, func() { t.complete(a.ID) })
	out := *a
	t.mu.Unlock()

	t.logger.Info("analysis created", "analysis_id", a.ID, "url", url)
	return &out
}

// complete marks the analysis done and generates its report. Already
// completed analyses keep their original report.
func (t *Tracker) complete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.analyses[id]
	if !ok {
		return
	}
	delete(t.pending, id)
	if _, done := t.reports[id]; done {
		return
	}
	a.State = StateCompleted
	t.reports[id] = generateReport(t.rng, id, a.URL)
	t.logger.Info("analysis completed",
		"analysis_id", id,
		"severity", string(t.reports[id].Severity),
		"detections", t.reports[id].TotalDetections,
	)
}

// Get returns an analysis by ID.
func (t *Tracker) Get(id string) (*Analysis, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.analyses[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

// List returns analyses, optionally filtered by group, newest first.
func (t *Tracker) List(groupID string) []*Analysis {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Analysis
	for _, a := range t.analyses {
		if groupID != "" && a.GroupID != groupID {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Report returns the report for a completed analysis.
func (t *Tracker) Report(id string) (*Report, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.analyses[id]; !ok {
		return nil, ErrNotFound
	}
	r, ok := t.reports[id]
	if !ok {
		return nil, ErrReportNotReady
	}
	out := *r
	out.Detections = append([]Detection(nil), r.Detections...)
	return &out, nil
}

// AddComment attaches a comment to an analysis.
func (t *Tracker) AddComment(analysisID, authorID, authorName, content string) (*Comment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.analyses[analysisID]
	if !ok {
		return nil, ErrNotFound
	}
	c := &Comment{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
		CreatedAt:  t.now().UTC(),
	}
	t.comments[c.ID] = c
	a.CommentsCount++
	out := *c
	return &out, nil
}

// Comments returns an analysis's comments, oldest first.
func (t *Tracker) Comments(analysisID string) []*Comment {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Comment
	for _, c := range t.comments {
		if c.AnalysisID != analysisID {
			continue
		}
		cc := *c
		out = append(out, &cc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CanEditComment reports whether the editor may still change the comment.
// Authors get a three minute window; supervisors may edit their own
// comments at any time. Nobody edits someone else's comment.
func (t *Tracker) CanEditComment(commentID, editorID string, supervisor bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.comments[commentID]
	if !ok || c.AuthorID != editorID {
		return false
	}
	if supervisor {
		return true
	}
	return t.now().Sub(c.CreatedAt) < commentEditWindow
}

// EditComment replaces a comment's content under the edit rules.
func (t *Tracker) EditComment(commentID, editorID string, supervisor bool, content string) (*Comment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.comments[commentID]
	if !ok {
		return nil, ErrNotFound
	}
	if c.AuthorID != editorID || (!supervisor && t.now().Sub(c.CreatedAt) >= commentEditWindow) {
		return nil, ErrCommentLocked
	}
	c.Content = content
	c.EditedAt = t.now().UTC()
	out := *c
	return &out, nil
}

// DeleteComment removes a comment under the same rules as editing.
func (t *Tracker) DeleteComment(commentID, editorID string, supervisor bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.comments[commentID]
	if !ok {
		return ErrNotFound
	}
	if c.AuthorID != editorID || (!supervisor && t.now().Sub(c.CreatedAt) >= commentEditWindow) {
		return ErrCommentLocked
	}
	delete(t.comments, commentID)
	if a, ok := t.analyses[c.AnalysisID]; ok && a.CommentsCount > 0 {
		a.CommentsCount--
	}
	return nil
}
