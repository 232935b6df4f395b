package oracle

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/escrowauction/core"
)

func TestStaticFeed_LatestRoundData(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewOffsetClock(core.FixedClock(start))
	feed := NewStaticFeed(big.NewInt(200000000000), 8, clock)

	round, err := feed.LatestRoundData(context.Background())
	assert.NoError(t, err)
	check.Equal(t, "200000000000", round.Answer.String())
	check.Equal(t, uint8(8), round.Decimals)
	check.True(t, round.UpdatedAt.Equal(start))

	// Mutating the returned answer must not leak into the feed
	round.Answer.SetInt64(1)
	again, err := feed.LatestRoundData(context.Background())
	assert.NoError(t, err)
	check.Equal(t, "200000000000", again.Answer.String())

	clock.Advance(time.Minute)
	feed.SetAnswer(big.NewInt(190000000000))
	round, err = feed.LatestRoundData(context.Background())
	assert.NoError(t, err)
	check.Equal(t, "190000000000", round.Answer.String())
	check.True(t, round.UpdatedAt.Equal(start.Add(time.Minute)))
}

func TestStaticFeed_Error(t *testing.T) {
	feed := NewStaticFeed(big.NewInt(1), 8, nil)
	feed.SetError(errors.New("aggregator offline"))

	_, err := feed.LatestRoundData(context.Background())
	check.Error(t, err)

	feed.SetError(nil)
	_, err = feed.LatestRoundData(context.Background())
	check.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = feed.LatestRoundData(ctx)
	check.True(t, errors.Is(err, core.ErrOracleUnavailable))
}

func TestStaleGuard(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		answer  int64
		age     time.Duration
		maxAge  time.Duration
		feedErr error
		wantErr error
	}{
		{"fresh round passes", 1e8, time.Minute, time.Hour, nil, nil},
		{"age check disabled", 1e8, 48 * time.Hour, 0, nil, nil},
		{"round exactly at limit passes", 1e8, time.Hour, time.Hour, nil, nil},
		{"old round is stale", 1e8, 2 * time.Hour, time.Hour, nil, core.ErrOracleStale},
		{"zero answer is stale", 0, 0, time.Hour, nil, core.ErrOracleStale},
		{"negative answer is stale", -5, 0, time.Hour, nil, core.ErrOracleStale},
		{"source error is unavailable", 1e8, 0, time.Hour, errors.New("rpc timeout"), core.ErrOracleUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := core.NewOffsetClock(core.FixedClock(start))
			feed := NewStaticFeed(big.NewInt(tt.answer), 8, clock)
			feed.SetError(tt.feedErr)
			clock.Advance(tt.age)

			_, err := Guard(feed, tt.maxAge, clock).LatestRoundData(context.Background())
			if tt.wantErr == nil {
				check.NoError(t, err)
				return
			}
			check.True(t, errors.Is(err, tt.wantErr)) // wrong error class
		})
	}
}

func TestQuote(t *testing.T) {
	clock := core.NewOffsetClock(core.FixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	feed := Guard(NewStaticFeed(big.NewInt(200000000000), 8, clock), time.Hour, clock)

	// 1.5 units of an 18-decimal asset at $2000
	amount, _ := new(big.Int).SetString("1500000000000000000", 10)
	quote, decimals, err := Quote(context.Background(), feed, amount, 18)
	assert.NoError(t, err)
	check.Equal(t, uint8(8), decimals)
	check.Equal(t, "300000000000", quote.String())

	clock.Advance(2 * time.Hour)
	_, _, err = Quote(context.Background(), feed, amount, 18)
	check.True(t, errors.Is(err, core.ErrOracleStale))
}
