package domain

import (
	"time"

	"github.com/cockroachdb/apd/v3"
)

// PriceStalenessWindow is the maximum quote age callers may trust. Older
// quotes force the static fee fallback.
const PriceStalenessWindow = time.Hour

// PriceQuote is a USD price for a native asset as reported by the price feed
type PriceQuote struct {
	AssetID string
	Price   *apd.Decimal
	AsOf    time.Time
}

// Stale returns true if the quote is older than the staleness window at now
func (q *PriceQuote) Stale(now time.Time) bool {
	return now.Sub(q.AsOf) > PriceStalenessWindow
}
