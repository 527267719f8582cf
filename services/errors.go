package services

import "errors"

// Errors shared by the services and the HTTP error mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business rules
	ErrValidationFailed          = errors.New("validation failed")
	ErrRegistrationNotOpen       = errors.New("tournament registration is not open")
	ErrTournamentFull            = errors.New("tournament registration is full")
	ErrTournamentCompleted       = errors.New("tournament is already completed")
	ErrInvalidTournamentPassword = errors.New("invalid tournament password")

	// Conflicts
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrPlayerNameConflict     = errors.New("player name is already registered for this tournament")
	ErrBracketConflict        = errors.New("bracket kept changing concurrently, retry the request")

	// Authentication and authorization
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")

	// Entity specific not-found errors
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrBracketNotFound    = errors.New("bracket has not been generated yet")
)
