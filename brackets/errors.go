package brackets

import "errors"

var (
	ErrInsufficientPlayers  = errors.New("not enough players to generate a bracket (minimum 2)")
	ErrInvalidPlayers       = errors.New("players must have unique, non-empty identifiers")
	ErrInvalidWinner        = errors.New("winner is not a player of the addressed match")
	ErrMatchNotFound        = errors.New("match not found")
	ErrMatchAlreadyResolved = errors.New("match already has a winner")
	ErrUnpaireableRound     = errors.New("round has an odd number of winners and cannot be paired")
	ErrRoundNotFound        = errors.New("round not found")
	ErrInvalidSide          = errors.New("invalid match side")
	ErrInvalidMaxScore      = errors.New("max score must be at least 1")
	ErrUnsupportedMode      = errors.New("unsupported bracket mode")
)
