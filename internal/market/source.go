package market

import "context"

// Source supplies candle history for one symbol and interval. A failed fetch
// surfaces as an error to the caller, which treats it as "no data this cycle"
// rather than terminating the loop.
type Source interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
