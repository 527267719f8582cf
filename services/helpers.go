package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/repositories"
	"github.com/DioBrando1866/tekken-tournaments/storage"
)

// BracketNotifier pushes messages to the clients watching a room.
type BracketNotifier interface {
	BroadcastToRoom(roomID string, message interface{})
}

// BracketCache keeps read copies of bracket snapshots.
type BracketCache interface {
	Get(ctx context.Context, tournamentID int) (*models.BracketSnapshot, bool, error)
	Set(ctx context.Context, snap *models.BracketSnapshot) error
	Invalidate(ctx context.Context, tournamentID int) error
}

// BracketArchiver stores finished brackets.
type BracketArchiver interface {
	Archive(ctx context.Context, snap *models.BracketSnapshot) (*storage.UploadResult, error)
	Discard(ctx context.Context, key string) error
	PublicURL(key string) string
}

// Transactor groups repository writes into one transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error
}

// runInTx falls back to plain calls when no transactor is configured.
func runInTx(ctx context.Context, tx Transactor, fn func(exec repositories.SQLExecutor) error) error {
	if tx == nil {
		return fn(nil)
	}
	return tx.WithinTx(ctx, fn)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// handleRepositoryError translates repository sentinels into service errors.
func handleRepositoryError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrPlayerNotFound):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrBracketNotFound):
		return ErrBracketNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrPlayerNameConflict):
		return ErrPlayerNameConflict
	case errors.Is(err, repositories.ErrPlayerTournamentInvalid):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentInvalidData):
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func populateArchiveURL(t *models.Tournament, archiver BracketArchiver) {
	if t == nil || archiver == nil || t.ArchiveKey == nil || *t.ArchiveKey == "" {
		return
	}
	if url := archiver.PublicURL(*t.ArchiveKey); url != "" {
		t.ArchiveURL = &url
	}
}
