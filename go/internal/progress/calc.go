package progress

import (
	"time"

	"github.com/mcdev12/focusd/go/internal/models"
)

// SessionSnapshot describes the in-progress session as one client surface sees
// it. A zero snapshot (Active=false) means no session is running.
type SessionSnapshot struct {
	Active    bool
	Mode      models.TimerMode
	StartedAt time.Time
	Duration  time.Duration // planned length of the session
}

// Breakdown is the single displayed quantity. Every surface that shows a total
// must obtain it from Calculate with the same server baseline and the same
// session-start timestamp.
type Breakdown struct {
	CompletedMinutes int `json:"completed_minutes"`
	ActiveMinutes    int `json:"active_minutes"`
	TotalMinutes     int `json:"total_minutes"`
}

// Calculate turns the durable completed baseline plus a client-held session
// snapshot into the displayed breakdown.
//
// Calculate never fails: negative elapsed time (clock skew), a zero start
// timestamp, or a non-focus mode all degrade to ActiveMinutes=0. Elapsed time
// is capped at the planned session duration so an abandoned timer can never
// report more than one session's worth of active minutes.
func Calculate(completedMinutes int, snap SessionSnapshot, now time.Time) Breakdown {
	if completedMinutes < 0 {
		completedMinutes = 0
	}

	active := 0
	if snap.Active && snap.Mode == models.TimerModeFocus && !snap.StartedAt.IsZero() {
		elapsed := now.Sub(snap.StartedAt)
		if elapsed < 0 {
			elapsed = 0
		}
		if snap.Duration > 0 && elapsed > snap.Duration {
			elapsed = snap.Duration
		}
		active = int(elapsed / time.Minute)
	}

	return Breakdown{
		CompletedMinutes: completedMinutes,
		ActiveMinutes:    active,
		TotalMinutes:     completedMinutes + active,
	}
}

// ActiveMinutesAt is a convenience for callers that only need the active
// portion, e.g. the commit made on pause.
func ActiveMinutesAt(startedAt time.Time, duration time.Duration, now time.Time) int {
	return Calculate(0, SessionSnapshot{
		Active:    true,
		Mode:      models.TimerModeFocus,
		StartedAt: startedAt,
		Duration:  duration,
	}, now).ActiveMinutes
}
