package exception

import "github.com/yanun0323/errors"

var (
	ErrConfigInvalid         = errors.New("config: invalid value")
	ErrConfigUnknownStrategy = errors.New("config: unknown strategy")
	ErrConfigMissingSecret   = errors.New("config: missing api credentials")
)
