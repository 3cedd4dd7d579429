package factory

import "errors"

// Failure modes surfaced by registry operations. Every failure is detected
// before any mutation; an operation that returns one of these touched nothing.
var (
	ErrUnauthorized          = errors.New("caller is not the owner")
	ErrFeeOutOfRange         = errors.New("fee exceeds the maximum")
	ErrTickSpacingOutOfRange = errors.New("tick spacing out of range")
	ErrFeeTierEnabled        = errors.New("fee tier already enabled")
	ErrIdenticalTokens       = errors.New("identical tokens")
	ErrZeroToken             = errors.New("token is the zero address")
	ErrZeroOwner             = errors.New("owner is the zero address")
	ErrUnknownFeeTier        = errors.New("fee tier not enabled")
	ErrPoolExists            = errors.New("pool already exists")
)
