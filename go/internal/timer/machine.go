package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusd/go/internal/devicecache"
	"github.com/mcdev12/focusd/go/internal/focusday"
	"github.com/mcdev12/focusd/go/internal/models"
	"github.com/mcdev12/focusd/go/internal/progress"
)

// State names one phase of the countdown lifecycle on this device.
type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StatePaused    State = "PAUSED"
	StateCompleted State = "COMPLETED"
)

// saveFailureWarnThreshold is how many consecutive failed commits we tolerate
// before surfacing the soft "progress may not be fully synced" warning.
const saveFailureWarnThreshold = 3

// Settings are the user-configurable durations. They are immutable while a
// session is active.
type Settings struct {
	FocusDuration    time.Duration
	BreakDuration    time.Duration
	AutosaveInterval time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		FocusDuration:    25 * time.Minute,
		BreakDuration:    5 * time.Minute,
		AutosaveInterval: 30 * time.Second,
	}
}

// Listener observes machine transitions. Injected explicitly so other surfaces
// can react to completions without a global event bus. All methods are called
// with the machine lock released.
type Listener interface {
	OnTransition(from, to State)
	OnSessionCompleted(result focusday.CompleteSessionResult)
	OnSyncWarning(consecutiveFailures int)
	OnAuthExpired()
}

// Snapshot is the read-only view the host renders every second.
type Snapshot struct {
	State            State
	Mode             models.TimerMode
	RemainingSeconds int
	Breakdown        progress.Breakdown
	Unsynced         bool
	AuthExpired      bool
}

// Machine owns one device's countdown. It is the single owner of its state:
// every mutation goes through a transition method, and all reads go through
// Snapshot. The countdown never waits on network I/O, so periodic saves run
// off the tick goroutine and their failures only bump a counter.
type Machine struct {
	mu sync.Mutex

	userID   string
	settings Settings
	sync     SyncClient
	cache    devicecache.Store
	clock    clockwork.Clock
	listener Listener

	state            State
	mode             models.TimerMode
	remainingSeconds int
	sessionStart     time.Time // zero when no window is open
	baseline         int       // completed minutes as displayed, server total plus local folds
	folded           int       // pause-committed minutes not yet absorbed by a completion
	completionID     string    // idempotency key for the pending completion, reused across retries
	lastAutosave     time.Time
	saveFailures     int
	authExpired      bool

	saves sync.WaitGroup // in-flight background saves, drained in tests and on teardown
}

func NewMachine(userID string, settings Settings, client SyncClient, cache devicecache.Store, clock clockwork.Clock, listener Listener) *Machine {
	return &Machine{
		userID:           userID,
		settings:         settings,
		sync:             client,
		cache:            cache,
		clock:            clock,
		listener:         listener,
		state:            StateIdle,
		mode:             models.TimerModeFocus,
		remainingSeconds: int(settings.FocusDuration / time.Second),
	}
}

// Hydrate pulls the authoritative baseline, then restores any state cached on
// this device, bounding drift by the time elapsed since the cache was last
// written. Call once on mount, before Run.
func (m *Machine) Hydrate(ctx context.Context) error {
	today, err := m.sync.GetTodayProgress(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch today progress: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline = today.CompletedMinutes

	cached, err := m.cache.Load(ctx, m.userID)
	if err == devicecache.ErrNotCached {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load cached state: %w", err)
	}

	m.mode = cached.Mode
	m.settings.FocusDuration = time.Duration(cached.FocusSeconds) * time.Second
	m.settings.BreakDuration = time.Duration(cached.BreakSeconds) * time.Second
	m.remainingSeconds = cached.RemainingSeconds

	if !cached.Active || cached.SessionStart == nil {
		return nil
	}

	// The countdown kept conceptually running while the process was dead.
	drift := int(m.clock.Now().Sub(cached.LastPersisted) / time.Second)
	if drift < 0 {
		drift = 0
	}
	m.remainingSeconds -= drift
	if m.remainingSeconds < 0 {
		m.remainingSeconds = 0
	}
	m.sessionStart = *cached.SessionStart
	m.state = StateRunning
	return nil
}

// Start begins a countdown from Idle or from a finished session.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateIdle && m.state != StateCompleted {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot start timer from state %s", state)
	}
	from := m.state
	m.state = StateRunning
	m.sessionStart = m.clock.Now()
	m.lastAutosave = m.sessionStart
	m.persistLocal(ctx)
	m.mu.Unlock()

	m.notifyTransition(from, StateRunning)
	return nil
}

// Tick advances the countdown by one second. The host calls it from a ticker
// loop; it triggers the completion commit when the countdown reaches zero.
func (m *Machine) Tick(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return nil
	}

	m.remainingSeconds--
	if m.remainingSeconds <= 0 {
		m.remainingSeconds = 0
		m.mu.Unlock()
		return m.Complete(ctx)
	}

	now := m.clock.Now()
	autosaveDue := m.mode == models.TimerModeFocus &&
		!m.authExpired &&
		m.settings.AutosaveInterval > 0 &&
		now.Sub(m.lastAutosave) >= m.settings.AutosaveInterval
	if autosaveDue {
		m.lastAutosave = now
		req := m.activeSnapshotLocked(now)
		m.saves.Add(1)
		go func() {
			defer m.saves.Done()
			m.saveActive(context.WithoutCancel(ctx), req)
		}()
	}
	m.persistLocal(ctx)
	m.mu.Unlock()
	return nil
}

// Pause commits the elapsed active minutes and freezes the countdown. The
// committed minutes are folded into the local baseline and the session window
// is closed, so a later Resume opens a fresh one instead of backdating.
func (m *Machine) Pause(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot pause timer from state %s", state)
	}

	now := m.clock.Now()
	req := m.activeSnapshotLocked(now)
	m.foldActiveLocked(now)
	m.state = StatePaused
	m.persistLocal(ctx)
	m.mu.Unlock()

	// The fold already happened locally; a failed save is repaired by the
	// next autosave or reconciliation pass, never by blocking the pause.
	m.saveActive(ctx, req)
	m.notifyTransition(StateRunning, StatePaused)
	return nil
}

// Resume reopens the countdown with a fresh session window.
func (m *Machine) Resume(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StatePaused {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot resume timer from state %s", state)
	}
	m.state = StateRunning
	m.sessionStart = m.clock.Now()
	m.lastAutosave = m.sessionStart
	m.persistLocal(ctx)
	m.mu.Unlock()

	m.notifyTransition(StatePaused, StateRunning)
	return nil
}

// Complete commits the finished session for the full planned duration. In
// focus mode it talks to the sync service; the idempotency key is minted on
// the first attempt and reused on every retry, so a commit whose response was
// lost is recognized server-side instead of counted again. In break mode it
// just flips back to a focus countdown.
func (m *Machine) Complete(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot complete timer from state %s", state)
	}

	if m.mode == models.TimerModeBreak {
		m.mode = models.TimerModeFocus
		m.state = StateIdle
		m.sessionStart = time.Time{}
		m.remainingSeconds = int(m.settings.FocusDuration / time.Second)
		m.persistLocal(ctx)
		m.mu.Unlock()
		m.notifyTransition(StateRunning, StateIdle)
		return nil
	}

	if m.authExpired {
		m.mu.Unlock()
		return fmt.Errorf("cannot complete session: %w", ErrAuthExpired)
	}
	if m.completionID == "" {
		m.completionID = uuid.New().String()
	}
	req := focusday.CompleteSessionRequest{
		FocusMinutes: int(m.settings.FocusDuration / time.Minute),
		SessionID:    m.completionID,
	}
	m.mu.Unlock()

	result, err := m.sync.CompleteSession(ctx, req)
	if err != nil {
		m.recordSaveFailure(err)
		// Remaining stays at zero; the next tick retries the commit with
		// the same session id.
		return fmt.Errorf("failed to complete session: %w", err)
	}

	m.mu.Lock()
	m.recordSaveSuccessLocked()
	m.baseline = result.CompletedMinutes
	m.folded = 0
	m.completionID = ""
	m.sessionStart = time.Time{}
	m.state = StateCompleted
	m.mode = models.TimerModeBreak
	m.remainingSeconds = int(m.settings.BreakDuration / time.Second)
	m.persistLocal(ctx)
	m.mu.Unlock()

	m.notifyTransition(StateRunning, StateCompleted)
	if m.listener != nil {
		m.listener.OnSessionCompleted(*result)
	}
	return nil
}

// Reset returns the countdown to a full configured duration. An active window
// is committed first, exactly like Pause, so resetting never discards
// progress.
func (m *Machine) Reset(ctx context.Context) error {
	m.mu.Lock()
	from := m.state
	var req *focusday.SaveActiveProgressRequest
	if m.state == StateRunning && m.mode == models.TimerModeFocus {
		now := m.clock.Now()
		r := m.activeSnapshotLocked(now)
		req = &r
		m.foldActiveLocked(now)
	}
	m.state = StateIdle
	m.mode = models.TimerModeFocus
	m.sessionStart = time.Time{}
	m.completionID = "" // a reset abandons any pending completion
	m.remainingSeconds = int(m.settings.FocusDuration / time.Second)
	m.persistLocal(ctx)
	m.mu.Unlock()

	if req != nil {
		m.saveActive(ctx, *req)
	}
	m.notifyTransition(from, StateIdle)
	return nil
}

// AdoptRemote reconciles this device against the authoritative day record.
// The server's completed total always wins; a session window newer than the
// local one is adopted so a session started elsewhere shows up here with the
// right remaining time. Stale windows are ignored. Reports whether anything
// changed.
func (m *Machine) AdoptRemote(p *focusday.TodayProgress) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := false
	adoptWindow := p.SessionStartTime != nil &&
		(m.sessionStart.IsZero() || p.SessionStartTime.After(m.sessionStart))

	if adoptWindow {
		now := m.clock.Now()

		// The saved active snapshot carries minutes the owning device
		// folded on earlier pauses, beyond what the open window itself
		// accounts for. Adopting the excess as a local fold is what makes
		// both devices agree on the total.
		window := progress.ActiveMinutesAt(*p.SessionStartTime, m.settings.FocusDuration, now)
		if fold := p.ActiveMinutes - window; fold > m.folded {
			m.folded = fold
		}

		elapsed := int(now.Sub(*p.SessionStartTime) / time.Second)
		if elapsed < 0 {
			elapsed = 0
		}
		remaining := int(m.settings.FocusDuration/time.Second) - elapsed
		if remaining <= 0 {
			// The remote session already ran out; completion is that
			// device's job, this one just shows an exhausted countdown.
			remaining = 0
		}

		m.sessionStart = *p.SessionStartTime
		m.mode = models.TimerModeFocus
		m.state = StateRunning
		m.remainingSeconds = remaining
		changed = true
	}

	if want := p.CompletedMinutes + m.folded; m.baseline != want {
		m.baseline = want
		changed = true
	}
	return changed
}

// Snapshot returns the view to render. Every displayed total flows through
// progress.Calculate with the shared baseline, so independent surfaces can
// never disagree.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		State:            m.state,
		Mode:             m.mode,
		RemainingSeconds: m.remainingSeconds,
		Breakdown: progress.Calculate(m.baseline, progress.SessionSnapshot{
			Active:    m.state == StateRunning,
			Mode:      m.mode,
			StartedAt: m.sessionStart,
			Duration:  m.settings.FocusDuration,
		}, m.clock.Now()),
		Unsynced:    m.saveFailures >= saveFailureWarnThreshold,
		AuthExpired: m.authExpired,
	}
}

// Run drives the countdown with a one second ticker until the context is
// canceled. On the way out it makes one best-effort final save; losing it is
// tolerated, the damage is bounded by one autosave interval.
func (m *Machine) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Teardown(context.WithoutCancel(ctx))
			return
		case <-ticker.Chan():
			if err := m.Tick(ctx); err != nil {
				log.Warn().Err(err).Msg("timer tick commit failed")
			}
		}
	}
}

// Teardown saves the in-flight window best effort and waits for background
// saves to drain.
func (m *Machine) Teardown(ctx context.Context) {
	m.mu.Lock()
	var req *focusday.SaveActiveProgressRequest
	if m.state == StateRunning && m.mode == models.TimerModeFocus && !m.sessionStart.IsZero() {
		r := m.activeSnapshotLocked(m.clock.Now())
		req = &r
	}
	m.mu.Unlock()

	if req != nil {
		m.saveActive(ctx, *req)
	}
	m.saves.Wait()
}

// SignOut drops everything cached on this device so state never leaks into
// another identity's session.
func (m *Machine) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateIdle
	m.mode = models.TimerModeFocus
	m.sessionStart = time.Time{}
	m.baseline = 0
	m.folded = 0
	m.completionID = ""
	m.authExpired = false
	m.remainingSeconds = int(m.settings.FocusDuration / time.Second)
	m.mu.Unlock()

	if err := m.cache.Clear(ctx, m.userID); err != nil {
		return fmt.Errorf("failed to clear device cache: %w", err)
	}
	return nil
}

// Reauthorize lifts the auth block after the host has refreshed the sync
// client's credentials. Saves and completion retries resume on the next tick.
func (m *Machine) Reauthorize() {
	m.mu.Lock()
	m.authExpired = false
	m.saveFailures = 0
	m.mu.Unlock()
}

// activeSnapshotLocked builds the save request for the current window. The
// saved active minutes include earlier pause folds so a snapshot written after
// a resume can never shrink the server's view of this session chain.
func (m *Machine) activeSnapshotLocked(now time.Time) focusday.SaveActiveProgressRequest {
	active := m.folded
	if !m.sessionStart.IsZero() {
		active += progress.ActiveMinutesAt(m.sessionStart, m.settings.FocusDuration, now)
	}
	start := m.sessionStart
	if start.IsZero() {
		start = now
	}
	return focusday.SaveActiveProgressRequest{
		ActiveMinutes:    active,
		SessionStartTime: start,
	}
}

// foldActiveLocked absorbs the open window's elapsed minutes into the local
// baseline and closes the window.
func (m *Machine) foldActiveLocked(now time.Time) {
	if m.sessionStart.IsZero() {
		return
	}
	minutes := progress.ActiveMinutesAt(m.sessionStart, m.settings.FocusDuration, now)
	m.baseline += minutes
	m.folded += minutes
	m.sessionStart = time.Time{}
}

func (m *Machine) saveActive(ctx context.Context, req focusday.SaveActiveProgressRequest) {
	m.mu.Lock()
	expired := m.authExpired
	m.mu.Unlock()
	if expired {
		return
	}

	if _, err := m.sync.SaveActiveProgress(ctx, req); err != nil {
		m.recordSaveFailure(err)
		return
	}
	m.mu.Lock()
	m.recordSaveSuccessLocked()
	m.mu.Unlock()
}

func (m *Machine) recordSaveFailure(err error) {
	// Rejected credentials are fatal, not a transient sync hiccup. Retrying
	// with the same token cannot succeed, so the cadence stops until the
	// host re-authenticates.
	if errors.Is(err, ErrAuthExpired) {
		m.mu.Lock()
		already := m.authExpired
		m.authExpired = true
		m.mu.Unlock()

		if !already {
			log.Error().Err(err).Msg("credentials rejected, sign in required")
			if m.listener != nil {
				m.listener.OnAuthExpired()
			}
		}
		return
	}

	m.mu.Lock()
	m.saveFailures++
	failures := m.saveFailures
	m.mu.Unlock()

	log.Warn().Err(err).Int("consecutive_failures", failures).Msg("failed to sync focus progress")
	if failures == saveFailureWarnThreshold && m.listener != nil {
		m.listener.OnSyncWarning(failures)
	}
}

func (m *Machine) recordSaveSuccessLocked() {
	m.saveFailures = 0
}

// persistLocal writes the device cache. Called with the lock held; failures
// are logged and otherwise ignored, the remote store stays authoritative.
func (m *Machine) persistLocal(ctx context.Context) {
	now := m.clock.Now()
	state := devicecache.State{
		UserID:           m.userID,
		Mode:             m.mode,
		RemainingSeconds: m.remainingSeconds,
		Active:           m.state == StateRunning,
		LastPersisted:    now,
		FocusSeconds:     int(m.settings.FocusDuration / time.Second),
		BreakSeconds:     int(m.settings.BreakDuration / time.Second),
	}
	if !m.sessionStart.IsZero() {
		start := m.sessionStart
		state.SessionStart = &start
	}
	if err := m.cache.Save(ctx, state); err != nil {
		log.Warn().Err(err).Msg("failed to persist timer state locally")
	}
}

func (m *Machine) notifyTransition(from, to State) {
	if m.listener != nil {
		m.listener.OnTransition(from, to)
	}
}
