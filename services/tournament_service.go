package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/repositories"
	"github.com/DioBrando1866/tekken-tournaments/utils"
)

const (
	defaultMaxPlayers     = 16
	maxPlayersLimit       = 256
	minTournamentPassword = 4
	defaultListLimit      = 50
)

type CreateTournamentInput struct {
	Name             string        `json:"name"`
	Description      *string       `json:"description,omitempty"`
	Type             brackets.Mode `json:"type"`
	Date             time.Time     `json:"date"`
	RoundsPerMatch   int           `json:"rounds_per_match"`
	MatchTimeMinutes *int          `json:"match_time_minutes,omitempty"`
	MaxPlayers       int           `json:"max_players"`
	IsPublic         bool          `json:"is_public"`
	Password         *string       `json:"password,omitempty"`
	Color            *string       `json:"color,omitempty"`
}

// UpdateTournamentInput changes only the fields that are set.
type UpdateTournamentInput struct {
	Name             *string        `json:"name,omitempty"`
	Description      *string        `json:"description,omitempty"`
	Type             *brackets.Mode `json:"type,omitempty"`
	Date             *time.Time     `json:"date,omitempty"`
	RoundsPerMatch   *int           `json:"rounds_per_match,omitempty"`
	MatchTimeMinutes *int           `json:"match_time_minutes,omitempty"`
	MaxPlayers       *int           `json:"max_players,omitempty"`
	IsPublic         *bool          `json:"is_public,omitempty"`
	Password         *string        `json:"password,omitempty"`
	Color            *string        `json:"color,omitempty"`
}

type ListTournamentsInput struct {
	Status    *models.TournamentStatus
	CreatorID *string
	Limit     int
	Offset    int
}

type RegisterPlayerInput struct {
	Name     string  `json:"name"`
	Password *string `json:"password,omitempty"`
}

type TournamentService interface {
	CreateTournament(ctx context.Context, creatorID string, input CreateTournamentInput) (*models.Tournament, error)
	GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, input ListTournamentsInput) ([]models.Tournament, error)
	ListPlayers(ctx context.Context, tournamentID int) ([]models.Player, error)
	RegisterPlayer(ctx context.Context, tournamentID int, input RegisterPlayerInput) (*models.Player, error)
	RemovePlayer(ctx context.Context, currentUserID string, tournamentID int, playerID string) error
	UpdateTournament(ctx context.Context, currentUserID string, id int, input UpdateTournamentInput) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, currentUserID string, id int) error
}

type tournamentService struct {
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.PlayerRepository
	bracketRepo    repositories.BracketRepository
	tx             Transactor
	notifier       BracketNotifier
	cache          BracketCache
	archiver       BracketArchiver
	logger         *slog.Logger
}

// NewTournamentService wires the tournament operations. tx, notifier, cache
// and archiver may be nil.
func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.PlayerRepository,
	bracketRepo repositories.BracketRepository,
	tx Transactor,
	notifier BracketNotifier,
	cache BracketCache,
	archiver BracketArchiver,
	logger *slog.Logger,
) TournamentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentService{
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		bracketRepo:    bracketRepo,
		tx:             tx,
		notifier:       notifier,
		cache:          cache,
		archiver:       archiver,
		logger:         logger,
	}
}

func (s *tournamentService) CreateTournament(ctx context.Context, creatorID string, input CreateTournamentInput) (*models.Tournament, error) {
	if creatorID == "" {
		return nil, ErrAuthenticationFailed
	}

	name := utils.NormalizeName(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}
	if input.Date.IsZero() {
		return nil, fmt.Errorf("%w: tournament date is required", ErrValidationFailed)
	}

	mode := input.Type
	if mode == "" {
		mode = brackets.ModeSingleElimination
	}
	if err := validateMode(mode); err != nil {
		return nil, err
	}

	roundsPerMatch := input.RoundsPerMatch
	if roundsPerMatch == 0 {
		roundsPerMatch = 1
	}
	if err := validateRoundsPerMatch(roundsPerMatch); err != nil {
		return nil, err
	}
	if err := validateMatchTime(input.MatchTimeMinutes); err != nil {
		return nil, err
	}

	maxPlayers := input.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = defaultMaxPlayers
	}
	if err := validateMaxPlayers(maxPlayers); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:             name,
		Description:      input.Description,
		Type:             mode,
		Date:             input.Date,
		RoundsPerMatch:   roundsPerMatch,
		MatchTimeMinutes: input.MatchTimeMinutes,
		MaxPlayers:       maxPlayers,
		IsPublic:         input.IsPublic,
		Color:            input.Color,
		CreatorID:        creatorID,
		Status:           models.StatusRegistration,
	}

	if !input.IsPublic {
		hash, err := hashTournamentPassword(derefString(input.Password))
		if err != nil {
			return nil, err
		}
		tournament.PasswordHash = &hash
	}

	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, handleRepositoryError(err, "failed to create tournament")
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.String("type", string(tournament.Type)),
		slog.String("creator_id", creatorID))
	return tournament, nil
}

// GetTournamentByID loads the tournament with its roster and bracket.
func (s *tournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to get tournament")
	}

	var (
		players []models.Player
		snap    *models.BracketSnapshot
	)
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		list, err := s.playerRepo.ListByTournament(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load players: %w", err)
		}
		players = list
		return nil
	})

	g.Go(func() error {
		loaded, err := s.bracketRepo.Get(gCtx, id)
		if errors.Is(err, repositories.ErrBracketNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load bracket: %w", err)
		}
		snap = loaded
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "failed to load tournament details", slog.Int("tournament_id", id), slog.Any("error", err))
		return nil, err
	}

	tournament.Players = players
	tournament.Bracket = snap
	populateArchiveURL(tournament, s.archiver)
	return tournament, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, input ListTournamentsInput) ([]models.Tournament, error) {
	limit := input.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	if input.Offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", ErrValidationFailed)
	}

	filter := repositories.ListTournamentsFilter{
		Status:    input.Status,
		CreatorID: input.CreatorID,
		// A creator sees their own private tournaments.
		PublicOnly: input.CreatorID == nil,
		Limit:      limit,
		Offset:     input.Offset,
	}
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to list tournaments")
	}
	for i := range tournaments {
		populateArchiveURL(&tournaments[i], s.archiver)
	}
	return tournaments, nil
}

func (s *tournamentService) ListPlayers(ctx context.Context, tournamentID int) ([]models.Player, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, handleRepositoryError(err, "failed to get tournament")
	}
	players, err := s.playerRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to list players")
	}
	return players, nil
}

func (s *tournamentService) RegisterPlayer(ctx context.Context, tournamentID int, input RegisterPlayerInput) (*models.Player, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to get tournament")
	}
	if !tournament.IsOpenForRegistration() {
		return nil, ErrRegistrationNotOpen
	}
	if !tournament.IsPublic {
		if tournament.PasswordHash == nil || !utils.CheckPasswordHash(derefString(input.Password), *tournament.PasswordHash) {
			return nil, ErrInvalidTournamentPassword
		}
	}

	name := utils.NormalizeName(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: player name is required", ErrValidationFailed)
	}

	count, err := s.playerRepo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to count players")
	}
	if count >= tournament.MaxPlayers {
		return nil, ErrTournamentFull
	}

	player := &models.Player{ID: uuid.NewString(), TournamentID: tournamentID, Name: name}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, handleRepositoryError(err, "failed to register player")
	}
	s.logger.InfoContext(ctx, "player registered",
		slog.Int("tournament_id", tournamentID),
		slog.String("player_id", player.ID),
		slog.Int("players", count+1))
	return player, nil
}

func (s *tournamentService) RemovePlayer(ctx context.Context, currentUserID string, tournamentID int, playerID string) error {
	tournament, err := authorizeCreator(ctx, s.tournamentRepo, currentUserID, tournamentID)
	if err != nil {
		return err
	}
	if !tournament.IsOpenForRegistration() {
		return ErrRegistrationNotOpen
	}
	if strings.TrimSpace(playerID) == "" {
		return fmt.Errorf("%w: player id is required", ErrValidationFailed)
	}
	if err := s.playerRepo.Delete(ctx, tournamentID, playerID); err != nil {
		return handleRepositoryError(err, "failed to remove player")
	}
	return nil
}

// UpdateTournament edits the creator's settings. The bracket shape depends on
// type, rounds per match and max players, so those are frozen once
// registration closes.
func (s *tournamentService) UpdateTournament(ctx context.Context, currentUserID string, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	tournament, err := authorizeCreator(ctx, s.tournamentRepo, currentUserID, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted {
		return nil, ErrTournamentCompleted
	}
	registration := tournament.IsOpenForRegistration()

	if input.Name != nil {
		name := utils.NormalizeName(*input.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
		}
		tournament.Name = name
	}
	if input.Description != nil {
		tournament.Description = input.Description
	}
	if input.Date != nil {
		if input.Date.IsZero() {
			return nil, fmt.Errorf("%w: tournament date is required", ErrValidationFailed)
		}
		tournament.Date = *input.Date
	}
	if input.MatchTimeMinutes != nil {
		if err := validateMatchTime(input.MatchTimeMinutes); err != nil {
			return nil, err
		}
		tournament.MatchTimeMinutes = input.MatchTimeMinutes
	}
	if input.Color != nil {
		tournament.Color = input.Color
	}

	if input.Type != nil && *input.Type != tournament.Type {
		if !registration {
			return nil, fmt.Errorf("%w: type cannot change after the bracket is generated", ErrRegistrationNotOpen)
		}
		if err := validateMode(*input.Type); err != nil {
			return nil, err
		}
		tournament.Type = *input.Type
	}
	if input.RoundsPerMatch != nil && *input.RoundsPerMatch != tournament.RoundsPerMatch {
		if !registration {
			return nil, fmt.Errorf("%w: rounds per match cannot change after the bracket is generated", ErrRegistrationNotOpen)
		}
		if err := validateRoundsPerMatch(*input.RoundsPerMatch); err != nil {
			return nil, err
		}
		tournament.RoundsPerMatch = *input.RoundsPerMatch
	}
	if input.MaxPlayers != nil && *input.MaxPlayers != tournament.MaxPlayers {
		if !registration {
			return nil, fmt.Errorf("%w: max players cannot change after the bracket is generated", ErrRegistrationNotOpen)
		}
		if err := validateMaxPlayers(*input.MaxPlayers); err != nil {
			return nil, err
		}
		count, err := s.playerRepo.CountByTournament(ctx, id)
		if err != nil {
			return nil, handleRepositoryError(err, "failed to count players")
		}
		if *input.MaxPlayers < count {
			return nil, fmt.Errorf("%w: %d players are already registered", ErrValidationFailed, count)
		}
		tournament.MaxPlayers = *input.MaxPlayers
	}

	if input.IsPublic != nil {
		tournament.IsPublic = *input.IsPublic
	}
	switch {
	case tournament.IsPublic:
		if input.Password != nil {
			return nil, fmt.Errorf("%w: passwords only apply to private tournaments", ErrValidationFailed)
		}
		tournament.PasswordHash = nil
	case input.Password != nil:
		hash, err := hashTournamentPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		tournament.PasswordHash = &hash
	case tournament.PasswordHash == nil:
		return nil, fmt.Errorf("%w: private tournaments need a password of at least %d characters", ErrValidationFailed, minTournamentPassword)
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, handleRepositoryError(err, "failed to update tournament")
	}
	populateArchiveURL(tournament, s.archiver)

	room := brackets.RoomForTournament(id)
	s.broadcast(room, brackets.WebSocketMessage{Type: brackets.MessageTournamentUpdated, Payload: tournament, RoomID: room})
	s.logger.InfoContext(ctx, "tournament updated", slog.Int("tournament_id", id), slog.String("creator_id", currentUserID))
	return tournament, nil
}

// DeleteTournament removes the tournament with its bracket and roster, then
// discards the archived bracket if one was stored.
func (s *tournamentService) DeleteTournament(ctx context.Context, currentUserID string, id int) error {
	tournament, err := authorizeCreator(ctx, s.tournamentRepo, currentUserID, id)
	if err != nil {
		return err
	}

	var removedPlayers int64
	err = runInTx(ctx, s.tx, func(exec repositories.SQLExecutor) error {
		if err := s.bracketRepo.Delete(ctx, exec, id); err != nil && !errors.Is(err, repositories.ErrBracketNotFound) {
			return err
		}
		removed, err := s.playerRepo.DeleteByTournament(ctx, exec, id)
		if err != nil {
			return err
		}
		removedPlayers = removed
		return s.tournamentRepo.Delete(ctx, exec, id)
	})
	if err != nil {
		return handleRepositoryError(err, "failed to delete tournament")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "bracket cache invalidation failed", slog.Int("tournament_id", id), slog.Any("error", err))
		}
	}
	if s.archiver != nil && tournament.ArchiveKey != nil && *tournament.ArchiveKey != "" {
		if err := s.archiver.Discard(ctx, *tournament.ArchiveKey); err != nil {
			s.logger.WarnContext(ctx, "failed to discard bracket archive",
				slog.Int("tournament_id", id),
				slog.String("key", *tournament.ArchiveKey),
				slog.Any("error", err))
		}
	}

	room := brackets.RoomForTournament(id)
	s.broadcast(room, brackets.WebSocketMessage{Type: brackets.MessageTournamentDeleted, Payload: map[string]int{"tournament_id": id}, RoomID: room})
	s.logger.InfoContext(ctx, "tournament deleted",
		slog.Int("tournament_id", id),
		slog.String("creator_id", currentUserID),
		slog.Int64("players", removedPlayers))
	return nil
}

func (s *tournamentService) broadcast(room string, message brackets.WebSocketMessage) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToRoom(room, message)
}

func validateMode(mode brackets.Mode) error {
	if mode != brackets.ModeSingleElimination && mode != brackets.ModeScoreElimination {
		return fmt.Errorf("%w: unknown tournament type %q", ErrValidationFailed, mode)
	}
	return nil
}

func validateRoundsPerMatch(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: rounds per match must be positive", ErrValidationFailed)
	}
	return nil
}

func validateMatchTime(minutes *int) error {
	if minutes != nil && *minutes < 1 {
		return fmt.Errorf("%w: match time must be positive", ErrValidationFailed)
	}
	return nil
}

func validateMaxPlayers(n int) error {
	if n < 2 || n > maxPlayersLimit {
		return fmt.Errorf("%w: max players must be between 2 and %d", ErrValidationFailed, maxPlayersLimit)
	}
	return nil
}

func hashTournamentPassword(password string) (string, error) {
	if len(password) < minTournamentPassword {
		return "", fmt.Errorf("%w: private tournaments need a password of at least %d characters", ErrValidationFailed, minTournamentPassword)
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("failed to hash tournament password: %w", err)
	}
	return hash, nil
}

// authorizeCreator loads the tournament and checks currentUserID created it.
func authorizeCreator(ctx context.Context, repo repositories.TournamentRepository, currentUserID string, tournamentID int) (*models.Tournament, error) {
	if currentUserID == "" {
		return nil, ErrAuthenticationFailed
	}
	tournament, err := repo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to get tournament")
	}
	if tournament.CreatorID != currentUserID {
		return nil, ErrForbiddenOperation
	}
	return tournament, nil
}
