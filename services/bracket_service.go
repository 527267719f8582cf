package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/repositories"
)

const defaultBracketMaxRetries = 3

type BracketServiceConfig struct {
	// AutoAdvanceByes resolves byes after every change.
	AutoAdvanceByes bool
	// MaxRetries bounds the reload-and-recompute loop on version conflicts.
	MaxRetries int
	// GeneratorOptions are passed to the bracket generator.
	GeneratorOptions []brackets.Option
}

// TournamentCompletedPayload is broadcast once the final has a winner.
type TournamentCompletedPayload struct {
	TournamentID     int     `json:"tournament_id"`
	ChampionPlayerID string  `json:"champion_player_id"`
	ArchiveURL       *string `json:"archive_url,omitempty"`
}

type BracketService interface {
	GenerateBracket(ctx context.Context, currentUserID string, tournamentID int) (*models.BracketSnapshot, error)
	GetBracket(ctx context.Context, tournamentID int) (*models.BracketSnapshot, error)
	RecordWinner(ctx context.Context, currentUserID string, tournamentID, round, match int, winnerID string) (*models.BracketSnapshot, error)
	RecordPoint(ctx context.Context, currentUserID string, tournamentID, round, match int, side brackets.Side) (*models.BracketSnapshot, error)
	SyncRound(ctx context.Context, currentUserID string, tournamentID, round int) (*models.BracketSnapshot, error)
	ResolveByes(ctx context.Context, currentUserID string, tournamentID int) (*models.BracketSnapshot, error)
}

type bracketService struct {
	tournamentRepo repositories.TournamentRepository
	playerRepo     repositories.PlayerRepository
	bracketRepo    repositories.BracketRepository
	tx             Transactor
	notifier       BracketNotifier
	cache          BracketCache
	archiver       BracketArchiver
	cfg            BracketServiceConfig
	logger         *slog.Logger
}

// NewBracketService wires the bracket workflow. tx, notifier, cache and
// archiver may be nil.
func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	playerRepo repositories.PlayerRepository,
	bracketRepo repositories.BracketRepository,
	tx Transactor,
	notifier BracketNotifier,
	cache BracketCache,
	archiver BracketArchiver,
	cfg BracketServiceConfig,
	logger *slog.Logger,
) BracketService {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = defaultBracketMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &bracketService{
		tournamentRepo: tournamentRepo,
		playerRepo:     playerRepo,
		bracketRepo:    bracketRepo,
		tx:             tx,
		notifier:       notifier,
		cache:          cache,
		archiver:       archiver,
		cfg:            cfg,
		logger:         logger,
	}
}

// mutation computes the next bracket from the current one. The boolean
// reports whether anything changed and a write is needed.
type mutation func(b *brackets.Bracket) (*brackets.Bracket, bool, error)

func (s *bracketService) GenerateBracket(ctx context.Context, currentUserID string, tournamentID int) (*models.BracketSnapshot, error) {
	tournament, err := authorizeCreator(ctx, s.tournamentRepo, currentUserID, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted {
		return nil, ErrTournamentCompleted
	}

	players, err := s.playerRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to list players")
	}

	generator, err := brackets.NewGenerator(tournament.Type, s.cfg.GeneratorOptions...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	bracket, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
		Players:  models.Entrants(players),
		MaxScore: tournament.MaxScore(),
	})
	if err != nil {
		return nil, err
	}
	if s.cfg.AutoAdvanceByes {
		bracket, _ = brackets.ResolveByes(bracket)
	}

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		var expected int64
		current, err := s.bracketRepo.Get(ctx, tournamentID)
		switch {
		case err == nil:
			expected = current.Version
		case errors.Is(err, repositories.ErrBracketNotFound):
		default:
			return nil, handleRepositoryError(err, "failed to load bracket")
		}

		snap := &models.BracketSnapshot{TournamentID: tournamentID, Bracket: bracket}
		activate := tournament.Status == models.StatusRegistration
		err = runInTx(ctx, s.tx, func(exec repositories.SQLExecutor) error {
			if err := s.bracketRepo.Save(ctx, exec, snap, expected); err != nil {
				return err
			}
			if !activate {
				return nil
			}
			return s.tournamentRepo.UpdateStatus(ctx, exec, tournamentID, models.StatusActive)
		})
		if errors.Is(err, repositories.ErrBracketVersionConflict) {
			s.logger.DebugContext(ctx, "bracket version conflict on generate", slog.Int("tournament_id", tournamentID), slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, handleRepositoryError(err, "failed to save bracket")
		}
		if activate {
			tournament.Status = models.StatusActive
		}

		s.logger.InfoContext(ctx, "bracket generated",
			slog.Int("tournament_id", tournamentID),
			slog.String("bracket_id", bracket.ID),
			slog.String("mode", string(bracket.Mode)),
			slog.Int("players", len(players)),
			slog.Int64("version", snap.Version))
		s.afterSave(ctx, tournament, snap, brackets.MessageBracketGenerated)
		return snap, nil
	}
	return nil, fmt.Errorf("%w: tournament %d after %d attempts", ErrBracketConflict, tournamentID, s.cfg.MaxRetries)
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*models.BracketSnapshot, error) {
	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, tournamentID)
		if err != nil {
			s.logger.WarnContext(ctx, "bracket cache read failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		} else if ok {
			return snap, nil
		}
	}

	snap, err := s.bracketRepo.Get(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err, "failed to get bracket")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "bracket cache write failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		}
	}
	return snap, nil
}

func (s *bracketService) RecordWinner(ctx context.Context, currentUserID string, tournamentID, round, match int, winnerID string) (*models.BracketSnapshot, error) {
	return s.mutate(ctx, currentUserID, tournamentID, "record_winner", func(b *brackets.Bracket) (*brackets.Bracket, bool, error) {
		current, ok := b.MatchAt(round, match)
		next, err := brackets.RecordWinner(b, round, match, winnerID)
		if err != nil {
			return nil, false, err
		}
		return next, !ok || current.Winner != winnerID, nil
	})
}

func (s *bracketService) RecordPoint(ctx context.Context, currentUserID string, tournamentID, round, match int, side brackets.Side) (*models.BracketSnapshot, error) {
	return s.mutate(ctx, currentUserID, tournamentID, "record_point", func(b *brackets.Bracket) (*brackets.Bracket, bool, error) {
		next, err := brackets.RecordPointAt(b, round, match, side)
		if err != nil {
			return nil, false, err
		}
		return next, true, nil
	})
}

func (s *bracketService) SyncRound(ctx context.Context, currentUserID string, tournamentID, round int) (*models.BracketSnapshot, error) {
	return s.mutate(ctx, currentUserID, tournamentID, "sync_round", func(b *brackets.Bracket) (*brackets.Bracket, bool, error) {
		return brackets.SyncRound(b, round)
	})
}

func (s *bracketService) ResolveByes(ctx context.Context, currentUserID string, tournamentID int) (*models.BracketSnapshot, error) {
	return s.mutate(ctx, currentUserID, tournamentID, "resolve_byes", func(b *brackets.Bracket) (*brackets.Bracket, bool, error) {
		next, changed := brackets.ResolveByes(b)
		return next, changed, nil
	})
}

// mutate applies fn to the stored bracket and saves the result against the
// version it was computed from, recomputing on conflict.
func (s *bracketService) mutate(ctx context.Context, currentUserID string, tournamentID int, op string, fn mutation) (*models.BracketSnapshot, error) {
	tournament, err := authorizeCreator(ctx, s.tournamentRepo, currentUserID, tournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted {
		return nil, ErrTournamentCompleted
	}

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		current, err := s.bracketRepo.Get(ctx, tournamentID)
		if err != nil {
			return nil, handleRepositoryError(err, "failed to load bracket")
		}

		next, changed, err := fn(current.Bracket)
		if err != nil {
			return nil, err
		}
		if s.cfg.AutoAdvanceByes {
			var byes bool
			next, byes = brackets.ResolveByes(next)
			changed = changed || byes
		}
		if !changed {
			return current, nil
		}

		snap := &models.BracketSnapshot{TournamentID: tournamentID, Bracket: next}
		err = s.bracketRepo.Save(ctx, nil, snap, current.Version)
		if errors.Is(err, repositories.ErrBracketVersionConflict) {
			s.logger.DebugContext(ctx, "bracket version conflict, recomputing",
				slog.Int("tournament_id", tournamentID),
				slog.String("operation", op),
				slog.Int("attempt", attempt))
			continue
		}
		if err != nil {
			return nil, handleRepositoryError(err, "failed to save bracket")
		}

		s.logger.InfoContext(ctx, "bracket updated",
			slog.Int("tournament_id", tournamentID),
			slog.String("operation", op),
			slog.Int64("version", snap.Version))
		s.afterSave(ctx, tournament, snap, brackets.MessageBracketUpdated)
		return snap, nil
	}

	s.logger.WarnContext(ctx, "giving up on contended bracket",
		slog.Int("tournament_id", tournamentID),
		slog.String("operation", op),
		slog.Int("attempts", s.cfg.MaxRetries))
	return nil, fmt.Errorf("%w: tournament %d after %d attempts", ErrBracketConflict, tournamentID, s.cfg.MaxRetries)
}

// afterSave refreshes derived state once a snapshot is stored. Failures here
// are logged; the bracket itself is already saved.
func (s *bracketService) afterSave(ctx context.Context, tournament *models.Tournament, snap *models.BracketSnapshot, messageType string) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, snap.TournamentID); err != nil {
			s.logger.WarnContext(ctx, "bracket cache invalidation failed", slog.Int("tournament_id", snap.TournamentID), slog.Any("error", err))
		}
	}

	room := brackets.RoomForTournament(snap.TournamentID)
	s.broadcast(room, brackets.WebSocketMessage{Type: messageType, Payload: snap, RoomID: room})

	if !snap.Bracket.IsComplete() {
		return
	}
	s.completeTournament(ctx, tournament, snap)
}

func (s *bracketService) completeTournament(ctx context.Context, tournament *models.Tournament, snap *models.BracketSnapshot) {
	champion := snap.Bracket.Champion()
	logger := s.logger.With(slog.Int("tournament_id", tournament.ID), slog.String("champion_player_id", champion))

	err := runInTx(ctx, s.tx, func(exec repositories.SQLExecutor) error {
		if err := s.tournamentRepo.UpdateChampion(ctx, exec, tournament.ID, &champion); err != nil {
			return fmt.Errorf("store champion: %w", err)
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, tournament.ID, models.StatusCompleted); err != nil {
			return fmt.Errorf("mark completed: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to complete tournament", slog.Any("error", err))
		return
	}
	tournament.Status = models.StatusCompleted
	tournament.ChampionPlayerID = &champion

	payload := TournamentCompletedPayload{TournamentID: tournament.ID, ChampionPlayerID: champion}
	if s.archiver != nil {
		result, err := s.archiver.Archive(ctx, snap)
		if err != nil {
			logger.ErrorContext(ctx, "failed to archive bracket", slog.Any("error", err))
		} else if err := s.tournamentRepo.UpdateArchiveKey(ctx, tournament.ID, &result.Key); err != nil {
			logger.ErrorContext(ctx, "failed to store bracket archive key", slog.Any("error", err))
			if err := s.archiver.Discard(ctx, result.Key); err != nil {
				logger.WarnContext(ctx, "failed to discard unrecorded bracket archive", slog.String("key", result.Key), slog.Any("error", err))
			}
		} else if result.Location != "" {
			payload.ArchiveURL = &result.Location
		}
	}

	logger.InfoContext(ctx, "tournament completed")
	room := brackets.RoomForTournament(tournament.ID)
	s.broadcast(room, brackets.WebSocketMessage{Type: brackets.MessageTournamentCompleted, Payload: payload, RoomID: room})
}

func (s *bracketService) broadcast(room string, message brackets.WebSocketMessage) {
	if s.notifier == nil {
		return
	}
	s.notifier.BroadcastToRoom(room, message)
}
