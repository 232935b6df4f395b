package oracle

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/cloudx-io/escrowauction/core"
)

// StaleGuard wraps a feed and rejects rounds that are older than MaxAge or
// carry a non-positive answer. A zero MaxAge disables the age check.
type StaleGuard struct {
	Feed   core.PriceFeed
	MaxAge time.Duration
	Clock  core.Clock
}

// Guard wraps feed with a StaleGuard using clock.
func Guard(feed core.PriceFeed, maxAge time.Duration, clock core.Clock) *StaleGuard {
	if clock == nil {
		clock = core.SystemClock()
	}
	return &StaleGuard{Feed: feed, MaxAge: maxAge, Clock: clock}
}

// LatestRoundData reads the wrapped feed and validates the round.
func (g *StaleGuard) LatestRoundData(ctx context.Context) (core.Round, error) {
	round, err := g.Feed.LatestRoundData(ctx)
	if err != nil {
		if errors.Is(err, core.ErrOracleStale) || errors.Is(err, core.ErrOracleUnavailable) {
			return core.Round{}, err
		}
		return core.Round{}, errors.Wrap(core.ErrOracleUnavailable, err.Error())
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return core.Round{}, errors.Wrap(core.ErrOracleStale, "non-positive answer")
	}
	if g.MaxAge > 0 {
		age := g.Clock.Now().Sub(round.UpdatedAt)
		if age > g.MaxAge {
			return core.Round{}, errors.Wrapf(core.ErrOracleStale, "round is %s old, limit %s", age.Truncate(time.Second), g.MaxAge)
		}
	}
	return round, nil
}
