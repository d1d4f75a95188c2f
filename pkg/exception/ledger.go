package exception

import "github.com/yanun0323/errors"

var (
	ErrLedgerScaleOut     = errors.New("ledger: average entry update with opposite sign")
	ErrLedgerOverClose    = errors.New("ledger: settle quantity exceeds position")
	ErrLedgerInvalidPrice = errors.New("ledger: invalid price")
	ErrLedgerNotStarted   = errors.New("ledger: start price not set")
)
