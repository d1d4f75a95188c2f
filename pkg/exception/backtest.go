package exception

import "github.com/yanun0323/errors"

var (
	ErrBacktestNoTicks   = errors.New("backtest: empty tick sequence")
	ErrBacktestBankrupt  = errors.New("backtest: bankrupt")
	ErrBacktestNoResults = errors.New("backtest: parameter search produced no result")
)
