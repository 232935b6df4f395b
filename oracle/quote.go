package oracle

import (
	"context"
	"math/big"

	"github.com/cloudx-io/escrowauction/core"
)

// Quote values amount of an asset with assetDecimals in feed's quote
// currency. The result is scaled by the returned decimals.
func Quote(ctx context.Context, feed core.PriceFeed, amount *big.Int, assetDecimals uint8) (*big.Int, uint8, error) {
	round, err := feed.LatestRoundData(ctx)
	if err != nil {
		return nil, 0, err
	}
	return core.QuoteAmount(amount, round.Answer, assetDecimals), round.Decimals, nil
}
