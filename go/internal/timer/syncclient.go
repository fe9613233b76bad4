package timer

import (
	"context"
	"errors"

	"github.com/mcdev12/focusd/go/internal/focusday"
)

// ErrAuthExpired is returned by a SyncClient when the backing service rejects
// the caller's credentials. The machine surfaces it to the host so the user
// can be redirected to sign in again; it is never silently retried.
var ErrAuthExpired = errors.New("authentication expired")

// SyncClient abstracts the save/fetch calls a client surface makes against the
// durable day record. The HTTP implementation talks to the gateway; tests
// substitute an in-memory fake.
type SyncClient interface {
	GetTodayProgress(ctx context.Context) (*focusday.TodayProgress, error)
	SaveActiveProgress(ctx context.Context, req focusday.SaveActiveProgressRequest) (*focusday.SaveActiveProgressResult, error)
	CompleteSession(ctx context.Context, req focusday.CompleteSessionRequest) (*focusday.CompleteSessionResult, error)
}
