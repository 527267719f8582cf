package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/storage"
)

const creator = "creator-1"

type bracketFixture struct {
	tournaments *fakeTournamentRepo
	players     *fakePlayerRepo
	brackets    *fakeBracketRepo
	notifier    *recordingNotifier
	cache       *memoryCache
	archiver    *recordingArchiver
	tx          *recordingTransactor
	service     BracketService
}

func newBracketFixture(t *testing.T, cfg BracketServiceConfig) *bracketFixture {
	t.Helper()
	f := &bracketFixture{
		tournaments: newFakeTournamentRepo(),
		players:     newFakePlayerRepo(),
		brackets:    newFakeBracketRepo(),
		notifier:    &recordingNotifier{},
		cache:       newMemoryCache(),
		archiver:    &recordingArchiver{},
		tx:          &recordingTransactor{},
	}
	if cfg.GeneratorOptions == nil {
		cfg.GeneratorOptions = []brackets.Option{brackets.WithRand(rand.New(rand.NewPCG(7, 7)))}
	}
	f.service = NewBracketService(f.tournaments, f.players, f.brackets, f.tx, f.notifier, f.cache, f.archiver, cfg, discardLogger())
	return f
}

// seed creates a tournament of the given mode with n registered players.
func (f *bracketFixture) seed(t *testing.T, mode brackets.Mode, roundsPerMatch, n int) int {
	t.Helper()
	ctx := context.Background()
	tournament := &models.Tournament{
		Name:           fmt.Sprintf("Cup %d", time.Now().UnixNano()),
		Type:           mode,
		Date:           time.Now(),
		RoundsPerMatch: roundsPerMatch,
		MaxPlayers:     64,
		IsPublic:       true,
		CreatorID:      creator,
		Status:         models.StatusRegistration,
	}
	require.NoError(t, f.tournaments.Create(ctx, tournament))
	for i := 0; i < n; i++ {
		require.NoError(t, f.players.Create(ctx, &models.Player{
			ID:           fmt.Sprintf("p%d", i+1),
			TournamentID: tournament.ID,
			Name:         fmt.Sprintf("Player %d", i+1),
		}))
	}
	return tournament.ID
}

func (f *bracketFixture) status(t *testing.T, id int) models.TournamentStatus {
	t.Helper()
	tournament, err := f.tournaments.GetByID(context.Background(), id)
	require.NoError(t, err)
	return tournament.Status
}

func TestGenerateBracket(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	id := f.seed(t, brackets.ModeSingleElimination, 1, 5)

	snap, err := f.service.GenerateBracket(context.Background(), creator, id)
	require.NoError(t, err)

	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, id, snap.TournamentID)
	assert.Len(t, snap.Bracket.Rounds, 3)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3", "p4", "p5"}, snap.Bracket.PlayerIDs())
	assert.Equal(t, models.StatusActive, f.status(t, id))
	assert.Equal(t, []string{brackets.MessageBracketGenerated}, f.notifier.types())
	assert.Equal(t, brackets.RoomForTournament(id), f.notifier.messages[0].RoomID)
	assert.Equal(t, 1, f.tx.transactions(), "save and activation share a transaction")
}

func TestGenerateBracket_TransactionFailure(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)
	f.tx.fail = errors.New("connection reset")

	_, err := f.service.GenerateBracket(context.Background(), creator, id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, models.StatusRegistration, f.status(t, id))
	assert.Empty(t, f.notifier.types())
}

func TestGenerateBracket_Regenerate(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)

	first, err := f.service.GenerateBracket(context.Background(), creator, id)
	require.NoError(t, err)
	second, err := f.service.GenerateBracket(context.Background(), creator, id)
	require.NoError(t, err)

	assert.Equal(t, int64(2), second.Version)
	assert.NotEqual(t, first.Bracket.ID, second.Bracket.ID)
}

func TestGenerateBracket_Rejections(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()

	lonely := f.seed(t, brackets.ModeSingleElimination, 1, 1)
	_, err := f.service.GenerateBracket(ctx, creator, lonely)
	assert.ErrorIs(t, err, brackets.ErrInsufficientPlayers)
	assert.Equal(t, models.StatusRegistration, f.status(t, lonely))

	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)
	_, err = f.service.GenerateBracket(ctx, "someone-else", id)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = f.service.GenerateBracket(ctx, "", id)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, err = f.service.GenerateBracket(ctx, creator, 999)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	_, saves := f.brackets.counts()
	assert.Zero(t, saves, "nothing should be saved")
}

func TestGenerateBracket_AutoAdvanceByes(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{AutoAdvanceByes: true})
	id := f.seed(t, brackets.ModeSingleElimination, 1, 3)

	snap, err := f.service.GenerateBracket(context.Background(), creator, id)
	require.NoError(t, err)

	bye := snap.Bracket.Rounds[0][1]
	require.True(t, bye.IsBye())
	assert.Equal(t, bye.SlotA, bye.Winner)
	assert.Equal(t, bye.SlotA, snap.Bracket.Rounds[1][0].SlotB)
}

func TestRecordWinner_PlaysToCompletion(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)

	snap, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)

	for r := range snap.Bracket.Rounds {
		for m := range snap.Bracket.Rounds[r] {
			winner := snap.Bracket.Rounds[r][m].SlotA
			snap, err = f.service.RecordWinner(ctx, creator, id, r, m, winner)
			require.NoError(t, err)
		}
	}

	require.True(t, snap.Bracket.IsComplete())
	tournament, err := f.tournaments.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, tournament.Status)
	require.NotNil(t, tournament.ChampionPlayerID)
	assert.Equal(t, snap.Bracket.Champion(), *tournament.ChampionPlayerID)
	require.NotNil(t, tournament.ArchiveKey)
	assert.Equal(t, fmt.Sprintf("brackets/tournament_%d/%s.json", id, snap.Bracket.ID), *tournament.ArchiveKey)
	assert.Len(t, f.archiver.archived, 1)
	assert.Equal(t, 2, f.tx.transactions(), "generation and completion")

	types := f.notifier.types()
	assert.Equal(t, brackets.MessageTournamentCompleted, types[len(types)-1])
	completed := f.notifier.messages[len(types)-1].Payload.(TournamentCompletedPayload)
	assert.Equal(t, snap.Bracket.Champion(), completed.ChampionPlayerID)
	require.NotNil(t, completed.ArchiveURL)

	_, err = f.service.RecordWinner(ctx, creator, id, 0, 0, snap.Bracket.Rounds[0][0].SlotB)
	assert.ErrorIs(t, err, ErrTournamentCompleted)
}

func TestRecordWinner_DiscardsUnrecordedArchive(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 2)
	f.tournaments.archiveKeyErr = errors.New("database unavailable")

	snap, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)
	snap, err = f.service.RecordWinner(ctx, creator, id, 0, 0, snap.Bracket.Rounds[0][0].SlotA)
	require.NoError(t, err)
	require.True(t, snap.Bracket.IsComplete())

	assert.Equal(t, models.StatusCompleted, f.status(t, id))
	require.Len(t, f.archiver.archived, 1)
	assert.Equal(t, []string{storage.ArchiveKey(id, snap.Bracket.ID)}, f.archiver.discarded)

	completed := f.notifier.messages[len(f.notifier.messages)-1].Payload.(TournamentCompletedPayload)
	assert.Nil(t, completed.ArchiveURL)
}

func TestRecordWinner_SameWinnerDoesNotWrite(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)

	snap, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)
	winner := snap.Bracket.Rounds[0][0].SlotB

	first, err := f.service.RecordWinner(ctx, creator, id, 0, 0, winner)
	require.NoError(t, err)
	_, savesBefore := f.brackets.counts()

	second, err := f.service.RecordWinner(ctx, creator, id, 0, 0, winner)
	require.NoError(t, err)
	_, savesAfter := f.brackets.counts()

	assert.Equal(t, savesBefore, savesAfter)
	assert.Equal(t, first.Version, second.Version)
}

func TestRecordWinner_InvalidWinner(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)
	_, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)

	_, err = f.service.RecordWinner(ctx, creator, id, 0, 0, "stranger")
	assert.ErrorIs(t, err, brackets.ErrInvalidWinner)

	_, err = f.service.RecordWinner(ctx, creator, id, 7, 0, "p1")
	assert.ErrorIs(t, err, brackets.ErrMatchNotFound)

	stored, err := f.brackets.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMutations_RequireBracket(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)

	_, err := f.service.RecordWinner(context.Background(), creator, id, 0, 0, "p1")
	assert.ErrorIs(t, err, ErrBracketNotFound)
	_, err = f.service.GetBracket(context.Background(), id)
	assert.ErrorIs(t, err, ErrBracketNotFound)
}

func TestRecordPoint_RecomputesAfterConflict(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeScoreElimination, 3, 2)

	_, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)

	f.brackets.injectConcurrentWrites(1, func(b *brackets.Bracket) *brackets.Bracket {
		next, err := brackets.RecordPointAt(b, 0, 0, brackets.SideA)
		require.NoError(t, err)
		return next
	})

	snap, err := f.service.RecordPoint(ctx, creator, id, 0, 0, brackets.SideA)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Bracket.Rounds[0][0].ScoreA, "the point must land on top of the concurrent one")
	assert.Equal(t, int64(3), snap.Version)
}

func TestMutate_GivesUpAfterMaxRetries(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{MaxRetries: 3})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeScoreElimination, 5, 2)

	_, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)
	_, savesBefore := f.brackets.counts()

	f.brackets.injectConcurrentWrites(10, func(b *brackets.Bracket) *brackets.Bracket { return b })

	_, err = f.service.RecordPoint(ctx, creator, id, 0, 0, brackets.SideB)
	assert.ErrorIs(t, err, ErrBracketConflict)
	_, savesAfter := f.brackets.counts()
	assert.Equal(t, 3, savesAfter-savesBefore)
}

func TestScoreBracket_PlaysThroughSync(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeScoreElimination, 2, 4)

	snap, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)
	require.Len(t, snap.Bracket.Rounds, 1)

	for m := range snap.Bracket.Rounds[0] {
		for i := 0; i < 2; i++ {
			snap, err = f.service.RecordPoint(ctx, creator, id, 0, m, brackets.SideA)
			require.NoError(t, err)
		}
	}
	_, err = f.service.RecordPoint(ctx, creator, id, 0, 0, brackets.SideA)
	assert.ErrorIs(t, err, brackets.ErrMatchAlreadyResolved)

	snap, err = f.service.SyncRound(ctx, creator, id, 0)
	require.NoError(t, err)
	require.Len(t, snap.Bracket.Rounds, 2)
	final := snap.Bracket.Rounds[1][0]
	assert.Equal(t, snap.Bracket.Rounds[0][0].Winner, final.SlotA)
	assert.Equal(t, snap.Bracket.Rounds[0][1].Winner, final.SlotB)

	again, err := f.service.SyncRound(ctx, creator, id, 0)
	require.NoError(t, err)
	assert.Equal(t, snap.Version, again.Version, "a repeated sync must not write")

	for i := 0; i < 2; i++ {
		snap, err = f.service.RecordPoint(ctx, creator, id, 1, 0, brackets.SideB)
		require.NoError(t, err)
	}
	assert.Equal(t, final.SlotB, snap.Bracket.Champion())
	assert.Equal(t, models.StatusCompleted, f.status(t, id))
}

func TestResolveByes(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 3)

	generated, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)
	require.False(t, generated.Bracket.Rounds[0][1].IsResolved())

	snap, err := f.service.ResolveByes(ctx, creator, id)
	require.NoError(t, err)
	assert.True(t, snap.Bracket.Rounds[0][1].IsResolved())
	assert.Equal(t, int64(2), snap.Version)

	again, err := f.service.ResolveByes(ctx, creator, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), again.Version)
}

func TestGetBracket_UsesCache(t *testing.T) {
	f := newBracketFixture(t, BracketServiceConfig{})
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 4)

	generated, err := f.service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)

	getsBefore, _ := f.brackets.counts()
	first, err := f.service.GetBracket(ctx, id)
	require.NoError(t, err)
	second, err := f.service.GetBracket(ctx, id)
	require.NoError(t, err)
	getsAfter, _ := f.brackets.counts()

	assert.Equal(t, 1, getsAfter-getsBefore, "second read must come from the cache")
	assert.Equal(t, generated.Version, first.Version)
	assert.Equal(t, first.Version, second.Version)

	_, err = f.service.RecordWinner(ctx, creator, id, 0, 0, generated.Bracket.Rounds[0][0].SlotA)
	require.NoError(t, err)
	_, cached, err := f.cache.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, cached, "writes must invalidate the cached copy")

	fresh, err := f.service.GetBracket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.Version)
}

func TestNewBracketService_WithoutOptionalDependencies(t *testing.T) {
	tournaments, players, repo := newFakeTournamentRepo(), newFakePlayerRepo(), newFakeBracketRepo()
	service := NewBracketService(tournaments, players, repo, nil, nil, nil, nil, BracketServiceConfig{}, nil)
	f := &bracketFixture{tournaments: tournaments, players: players, brackets: repo, service: service}
	ctx := context.Background()
	id := f.seed(t, brackets.ModeSingleElimination, 1, 2)

	snap, err := service.GenerateBracket(ctx, creator, id)
	require.NoError(t, err)
	m := snap.Bracket.Rounds[0][0]
	snap, err = service.RecordWinner(ctx, creator, id, 0, 0, m.SlotB)
	require.NoError(t, err)
	assert.Equal(t, m.SlotB, snap.Bracket.Champion())
	assert.Equal(t, models.StatusCompleted, f.status(t, id))

	got, err := service.GetBracket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, snap.Version, got.Version)
}
