package session

import "time"

// Clock supplies the current time. The real implementation wraps time.Now;
// tests substitute a fake to step through deadlines without sleeping.
type Clock interface {
	Now() time.Time
}

// Scheduler runs a function after a delay. Stop cancels a pending run; a
// timer that already fired is a no-op to stop.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled function.
type Timer interface {
	Stop()
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SystemScheduler schedules on the Go runtime timer.
type SystemScheduler struct{}

func (SystemScheduler) Schedule(d time.Duration, fn func()) Timer {
	return systemTimer{time.AfterFunc(d, fn)}
}

type systemTimer struct{ t *time.Timer }

func (s systemTimer) Stop() { s.t.Stop() }
