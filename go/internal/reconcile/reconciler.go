package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/focusd/go/internal/focusday"
	"github.com/mcdev12/focusd/go/internal/timer"
)

// Config tunes the polling loop. The interval is deliberately independent of
// the autosave cadence; convergence is promised within one interval, not
// sub-second.
type Config struct {
	PollInterval  time.Duration
	WarnThreshold int // consecutive failed polls before a soft warning
}

func DefaultConfig() Config {
	return Config{
		PollInterval:  60 * time.Second,
		WarnThreshold: 3,
	}
}

// Fetcher is the read side of the sync client. timer.SyncClient satisfies it.
type Fetcher interface {
	GetTodayProgress(ctx context.Context) (*focusday.TodayProgress, error)
}

// LocalState is the device state being repaired. timer.Machine satisfies it.
type LocalState interface {
	AdoptRemote(p *focusday.TodayProgress) bool
}

// Reconciler periodically re-pulls the authoritative day record and folds it
// into the local machine. It never pushes: a device only ever asserts an
// active delta, the server's completed total always wins.
type Reconciler struct {
	fetcher Fetcher
	local   LocalState
	config  Config
	clock   clockwork.Clock

	mu       sync.Mutex
	running  bool
	failures int
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReconciler(fetcher Fetcher, local LocalState, cfg Config, clock clockwork.Clock) *Reconciler {
	return &Reconciler{
		fetcher:  fetcher,
		local:    local,
		config:   cfg,
		clock:    clock,
		stopChan: make(chan struct{}),
	}
}

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx)

	log.Info().Dur("poll_interval", r.config.PollInterval).Msg("reconciler started")
	return nil
}

func (r *Reconciler) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler not running")
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	r.wg.Wait()

	log.Info().Msg("reconciler stopped")
	return nil
}

func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	// Reconcile immediately on start
	if halt := r.reconcileOnce(ctx); halt {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.Chan():
			if halt := r.reconcileOnce(ctx); halt {
				return
			}
		}
	}
}

// reconcileOnce performs one poll. It reports true when polling must halt
// because the credentials were rejected; re-polling with the same token
// cannot succeed, the user has to sign in again.
func (r *Reconciler) reconcileOnce(ctx context.Context) bool {
	today, err := r.fetcher.GetTodayProgress(ctx)
	if err != nil {
		if errors.Is(err, timer.ErrAuthExpired) {
			log.Error().Err(err).Msg("credentials rejected, reconciliation halted until sign in")
			return true
		}

		r.mu.Lock()
		r.failures++
		failures := r.failures
		r.mu.Unlock()

		// A single missed poll is routine; the countdown keeps running
		// from local state. Only a streak of failures is worth noise.
		if failures >= r.config.WarnThreshold {
			log.Warn().Err(err).Int("consecutive_failures", failures).Msg("progress may not be fully synced")
		}
		return false
	}

	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()

	if r.local.AdoptRemote(today) {
		log.Debug().
			Int("completed_minutes", today.CompletedMinutes).
			Msg("adopted authoritative progress")
	}
	return false
}
