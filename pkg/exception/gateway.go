package exception

import "github.com/yanun0323/errors"

// Recoverable gateway errors. The live loop backs off and re-runs the cycle.
var (
	ErrOrderClosed = errors.New("gateway: order already closed")
	ErrRateLimited = errors.New("gateway: rate limited")
	ErrOverloaded  = errors.New("gateway: exchange overloaded")
)

// Fatal gateway errors.
var (
	ErrUnauthorized  = errors.New("gateway: unauthorized")
	ErrUnknown       = errors.New("gateway: unclassified exchange error")
	ErrMarketClosed  = errors.New("gateway: market not open")
	ErrEmptyBook     = errors.New("gateway: order book empty")
	ErrSanityCheck   = errors.New("gateway: ladder crosses the touch")
	ErrOrderNotFound = errors.New("gateway: order not found")
	ErrBankrupt      = errors.New("gateway: equity exhausted, trading halted")
)
