// Package exchange defines the execution gateway contract. The risk engine
// and trading loop only see this interface; transport failures are absorbed
// behind it and surface as errors, never as panics.
package exchange

import "context"

// OrderRequest describes a sized, bounded market order.
type OrderRequest struct {
	Symbol     string
	Size       float64
	Side       string // "buy" or "sell"
	StopLoss   float64
	TakeProfit float64
	Leverage   int
	// Expected entry price, used as the fill fallback when the venue does
	// not echo an average price on a market order.
	Price float64
}

// Fill is the successful outcome of an order placement.
type Fill struct {
	OrderID     string
	FilledPrice float64
}

// Gateway executes orders and reports account state. Implementations apply
// their own timeout, retry and circuit breaker policy; a returned error
// means the operation failed after that policy was exhausted.
type Gateway interface {
	AvailableBalance(ctx context.Context, symbol string) (float64, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (*Fill, error)
}
