package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
	"github.com/DioBrando1866/tekken-tournaments/models"
	"github.com/DioBrando1866/tekken-tournaments/repositories"
	"github.com/DioBrando1866/tekken-tournaments/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTournamentRepo struct {
	mu          sync.Mutex
	nextID      int
	tournaments map[int]models.Tournament

	archiveKeyErr error
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: map[int]models.Tournament{}}
}

func (r *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tournaments {
		if existing.CreatorID == t.CreatorID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	r.nextID++
	t.ID = r.nextID
	t.CreatedAt = time.Now()
	r.tournaments[t.ID] = *t
	return nil
}

func (r *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r *fakeTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.tournaments {
		if filter.CreatorID != nil && t.CreatorID != *filter.CreatorID {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.PublicOnly && !t.IsPublic {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) update(id int, fn func(t *models.Tournament)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	fn(&t)
	r.tournaments[id] = t
	return nil
}

func (r *fakeTournamentRepo) Update(_ context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	for id, existing := range r.tournaments {
		if id != t.ID && existing.CreatorID == t.CreatorID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	stored := *t
	stored.Players, stored.Bracket, stored.ArchiveURL = nil, nil, nil
	r.tournaments[t.ID] = stored
	return nil
}

func (r *fakeTournamentRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.tournaments, id)
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	return r.update(id, func(t *models.Tournament) { t.Status = status })
}

func (r *fakeTournamentRepo) UpdateChampion(_ context.Context, _ repositories.SQLExecutor, id int, championPlayerID *string) error {
	return r.update(id, func(t *models.Tournament) { t.ChampionPlayerID = championPlayerID })
}

func (r *fakeTournamentRepo) UpdateArchiveKey(_ context.Context, id int, archiveKey *string) error {
	if r.archiveKeyErr != nil {
		return r.archiveKeyErr
	}
	return r.update(id, func(t *models.Tournament) { t.ArchiveKey = archiveKey })
}

type fakePlayerRepo struct {
	mu      sync.Mutex
	players map[int][]models.Player
}

func newFakePlayerRepo() *fakePlayerRepo {
	return &fakePlayerRepo{players: map[int][]models.Player{}}
}

func (r *fakePlayerRepo) Create(_ context.Context, p *models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.players[p.TournamentID] {
		if existing.Name == p.Name {
			return repositories.ErrPlayerNameConflict
		}
	}
	p.CreatedAt = time.Now()
	r.players[p.TournamentID] = append(r.players[p.TournamentID], *p)
	return nil
}

func (r *fakePlayerRepo) ListByTournament(_ context.Context, tournamentID int) ([]models.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Player{}, r.players[tournamentID]...), nil
}

func (r *fakePlayerRepo) CountByTournament(_ context.Context, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players[tournamentID]), nil
}

func (r *fakePlayerRepo) Delete(_ context.Context, tournamentID int, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.players[tournamentID]
	for i, p := range list {
		if p.ID == playerID {
			r.players[tournamentID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return repositories.ErrPlayerNotFound
}

func (r *fakePlayerRepo) DeleteByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := int64(len(r.players[tournamentID]))
	delete(r.players, tournamentID)
	return removed, nil
}

type fakeBracketRepo struct {
	mu    sync.Mutex
	snaps map[int]models.BracketSnapshot
	gets  int
	saves int

	// pendingWrites saves lose against a simulated writer that applies
	// concurrentWrite to the stored bracket first.
	pendingWrites   int
	concurrentWrite func(b *brackets.Bracket) *brackets.Bracket
}

func newFakeBracketRepo() *fakeBracketRepo {
	return &fakeBracketRepo{snaps: map[int]models.BracketSnapshot{}}
}

func (r *fakeBracketRepo) injectConcurrentWrites(n int, write func(b *brackets.Bracket) *brackets.Bracket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingWrites = n
	r.concurrentWrite = write
}

func (r *fakeBracketRepo) Get(_ context.Context, tournamentID int) (*models.BracketSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	snap, ok := r.snaps[tournamentID]
	if !ok {
		return nil, repositories.ErrBracketNotFound
	}
	snap.Bracket = snap.Bracket.Clone()
	return &snap, nil
}

func (r *fakeBracketRepo) Save(_ context.Context, _ repositories.SQLExecutor, snap *models.BracketSnapshot, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++

	if r.pendingWrites > 0 {
		r.pendingWrites--
		if current, ok := r.snaps[snap.TournamentID]; ok {
			current.Bracket = r.concurrentWrite(current.Bracket.Clone())
			current.Version++
			r.snaps[snap.TournamentID] = current
		}
	}

	current, exists := r.snaps[snap.TournamentID]
	if expectedVersion == 0 && exists || expectedVersion != 0 && (!exists || current.Version != expectedVersion) {
		return repositories.ErrBracketVersionConflict
	}
	snap.Version = expectedVersion + 1
	snap.UpdatedAt = time.Now()
	stored := *snap
	stored.Bracket = snap.Bracket.Clone()
	r.snaps[snap.TournamentID] = stored
	return nil
}

func (r *fakeBracketRepo) Delete(_ context.Context, _ repositories.SQLExecutor, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.snaps[tournamentID]; !ok {
		return repositories.ErrBracketNotFound
	}
	delete(r.snaps, tournamentID)
	return nil
}

func (r *fakeBracketRepo) counts() (gets, saves int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets, r.saves
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []brackets.WebSocketMessage
}

func (n *recordingNotifier) BroadcastToRoom(roomID string, message interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	msg := message.(brackets.WebSocketMessage)
	msg.RoomID = roomID
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.messages))
	for i, m := range n.messages {
		out[i] = m.Type
	}
	return out
}

type memoryCache struct {
	mu    sync.Mutex
	snaps map[int]models.BracketSnapshot
}

func newMemoryCache() *memoryCache {
	return &memoryCache{snaps: map[int]models.BracketSnapshot{}}
}

func (c *memoryCache) Get(_ context.Context, tournamentID int) (*models.BracketSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[tournamentID]
	if !ok {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *memoryCache) Set(_ context.Context, snap *models.BracketSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snap.TournamentID] = *snap
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, tournamentID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.snaps, tournamentID)
	return nil
}

type recordingArchiver struct {
	mu        sync.Mutex
	archived  []*models.BracketSnapshot
	discarded []string
}

func (a *recordingArchiver) Discard(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discarded = append(a.discarded, key)
	return nil
}

func (a *recordingArchiver) Archive(_ context.Context, snap *models.BracketSnapshot) (*storage.UploadResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, snap)
	key := storage.ArchiveKey(snap.TournamentID, snap.Bracket.ID)
	return &storage.UploadResult{Key: key, Location: a.PublicURL(key)}, nil
}

func (a *recordingArchiver) PublicURL(key string) string {
	return "https://archive.example.com/" + key
}

// recordingTransactor runs fn directly and counts transactions.
type recordingTransactor struct {
	mu    sync.Mutex
	count int
	fail  error
}

func (t *recordingTransactor) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.mu.Lock()
	t.count++
	fail := t.fail
	t.mu.Unlock()
	if fail != nil {
		return fail
	}
	return fn(nil)
}

func (t *recordingTransactor) transactions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
