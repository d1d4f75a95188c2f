package exception

import "github.com/yanun0323/errors"

var (
	ErrTickMissingPrice  = errors.New("tick: missing price")
	ErrTickMissingField  = errors.New("tick: missing field")
	ErrTickSpreadTooWide = errors.New("tick: bid ask gap out of range")
	ErrTickStepTooLarge  = errors.New("tick: price step out of range")
	ErrTickMalformed     = errors.New("tick: malformed record")
)
