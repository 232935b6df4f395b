// Package oracle provides price feeds for bid quotes: a settable feed for
// local networks and tests, and a guard that rejects stale or invalid rounds.
package oracle

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

// StaticFeed reports whatever round was last set on it.
type StaticFeed struct {
	mu    sync.RWMutex
	round core.Round
	err   error
	clock core.Clock
}

// NewStaticFeed returns a feed answering answer at decimals, timestamped with
// clock's current time on every update. A nil clock means the wall clock.
func NewStaticFeed(answer *big.Int, decimals uint8, clock core.Clock) *StaticFeed {
	if clock == nil {
		clock = core.SystemClock()
	}
	f := &StaticFeed{clock: clock}
	f.round = core.Round{Answer: new(big.Int).Set(answer), Decimals: decimals, UpdatedAt: clock.Now()}
	return f
}

// LatestRoundData returns the stored round.
func (f *StaticFeed) LatestRoundData(ctx context.Context) (core.Round, error) {
	if err := ctx.Err(); err != nil {
		return core.Round{}, errors.Wrap(core.ErrOracleUnavailable, err.Error())
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.err != nil {
		return core.Round{}, f.err
	}
	r := f.round
	r.Answer = new(big.Int).Set(f.round.Answer)
	return r, nil
}

// SetAnswer publishes a new answer stamped with the current time.
func (f *StaticFeed) SetAnswer(answer *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.round.Answer = new(big.Int).Set(answer)
	f.round.UpdatedAt = f.clock.Now()
}

// SetUpdatedAt overrides the round timestamp.
func (f *StaticFeed) SetUpdatedAt(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.round.UpdatedAt = t
}

// SetError makes every read fail with err until cleared with nil.
func (f *StaticFeed) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}
