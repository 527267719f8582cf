package brackets

import (
	"context"
	"fmt"
	"math/bits"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePlayers(n int) []Player {
	players := make([]Player, n)
	for i := range players {
		id := fmt.Sprintf("p%02d", i+1)
		players[i] = Player{ID: id, Name: "Player " + id}
	}
	return players
}

func namedPlayers(ids ...string) []Player {
	players := make([]Player, len(ids))
	for i, id := range ids {
		players[i] = Player{ID: id, Name: id}
	}
	return players
}

// identityShuffle keeps the input order: every draw picks j = i.
func identityShuffle() Option {
	return func(o *options) {
		o.intN = func(n int) int { return n - 1 }
	}
}

func fixedID(id string) Option {
	return WithIDFunc(func() string { return id })
}

func TestGenerateBracket_NotEnoughPlayers(t *testing.T) {
	for _, n := range []int{0, 1} {
		_, err := GenerateBracket(makePlayers(n))
		assert.ErrorIs(t, err, ErrInsufficientPlayers, "n=%d", n)
	}
}

func TestGenerateBracket_InvalidPlayers(t *testing.T) {
	_, err := GenerateBracket(namedPlayers("A", "B", "A"))
	assert.ErrorIs(t, err, ErrInvalidPlayers)

	_, err = GenerateBracket(namedPlayers("A", ""))
	assert.ErrorIs(t, err, ErrInvalidPlayers)
}

func TestGenerateBracket_Shape(t *testing.T) {
	for n := 2; n <= 33; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			players := makePlayers(n)
			b, err := GenerateBracket(players, WithRand(rand.New(rand.NewPCG(uint64(n), 42))))
			require.NoError(t, err)

			assert.Equal(t, ModeSingleElimination, b.Mode)
			assert.Len(t, b.Rounds[0], (n+1)/2)
			assert.Len(t, b.Rounds, bits.Len(uint(n-1)), "rounds should be ceil(log2(n))")

			for r := 1; r < len(b.Rounds); r++ {
				assert.Len(t, b.Rounds[r], (len(b.Rounds[r-1])+1)/2, "round %d size", r)
				for _, m := range b.Rounds[r] {
					assert.Empty(t, m.SlotA)
					assert.Empty(t, m.SlotB)
				}
			}
			_, ok := b.Final()
			assert.True(t, ok, "last round must hold a single final")

			seenIDs := map[string]bool{}
			for _, round := range b.Rounds {
				for _, m := range round {
					assert.False(t, m.IsResolved())
					assert.False(t, seenIDs[m.ID], "duplicate match id %s", m.ID)
					seenIDs[m.ID] = true
				}
			}

			want := make([]string, n)
			for i, p := range players {
				want[i] = p.ID
			}
			got := b.PlayerIDs()
			sort.Strings(got)
			assert.Equal(t, want, got, "round 0 must hold every player exactly once")
		})
	}
}

func TestGenerateBracket_ByeOnOddCount(t *testing.T) {
	b, err := GenerateBracket(makePlayers(7))
	require.NoError(t, err)

	last := b.Rounds[0][len(b.Rounds[0])-1]
	assert.NotEmpty(t, last.SlotA)
	assert.Empty(t, last.SlotB)
	assert.True(t, last.IsBye())
	for _, m := range b.Rounds[0][:len(b.Rounds[0])-1] {
		assert.False(t, m.IsBye())
	}
}

func TestGenerateBracket_TwoPlayersIsAFinal(t *testing.T) {
	b, err := GenerateBracket(namedPlayers("A", "B"), identityShuffle(), fixedID("t"))
	require.NoError(t, err)

	require.Len(t, b.Rounds, 1)
	assert.Equal(t, Match{ID: "t-R1M1", SlotA: "A", SlotB: "B"}, b.Rounds[0][0])
}

func TestGenerateBracket_ReproducibleWithSeed(t *testing.T) {
	opts := func() []Option {
		return []Option{WithRand(rand.New(rand.NewPCG(1, 2))), fixedID("seeded")}
	}
	first, err := GenerateBracket(makePlayers(12), opts()...)
	require.NoError(t, err)
	second, err := GenerateBracket(makePlayers(12), opts()...)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestGenerateBracket_DoesNotReorderInput(t *testing.T) {
	players := makePlayers(8)
	original := append([]Player(nil), players...)

	_, err := GenerateBracket(players)
	require.NoError(t, err)
	assert.Equal(t, original, players)
}

func TestShuffle_EveryPermutationEquallyLikely(t *testing.T) {
	r := rand.New(rand.NewPCG(2024, 11))
	players := namedPlayers("A", "B", "C")
	counts := map[string]int{}

	const trials = 6000
	for i := 0; i < trials; i++ {
		seeded := shuffle(players, r.IntN)
		counts[seeded[0].ID+seeded[1].ID+seeded[2].ID]++
	}

	require.Len(t, counts, 6)
	for perm, c := range counts {
		assert.InDelta(t, trials/6, c, 200, "permutation %s", perm)
	}
}

func TestGenerateBracket_FreshBracketIDs(t *testing.T) {
	a, err := GenerateBracket(makePlayers(4))
	require.NoError(t, err)
	b, err := GenerateBracket(makePlayers(4))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEqual(t, a.Rounds[0][0].ID, b.Rounds[0][0].ID)
}

func TestNewGenerator(t *testing.T) {
	ctx := context.Background()
	params := GenerateBracketParams{Players: makePlayers(6), MaxScore: 2}

	single, err := NewGenerator(ModeSingleElimination)
	require.NoError(t, err)
	assert.Equal(t, "SingleElimination", single.GetName())
	b, err := single.GenerateBracket(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, ModeSingleElimination, b.Mode)
	assert.Len(t, b.Rounds, 3)
	assert.Zero(t, b.Rounds[0][0].MaxScore)

	scored, err := NewGenerator(ModeScoreElimination)
	require.NoError(t, err)
	assert.Equal(t, "ScoreElimination", scored.GetName())
	b, err = scored.GenerateBracket(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, ModeScoreElimination, b.Mode)
	assert.Len(t, b.Rounds, 1)
	for _, m := range b.Rounds[0] {
		assert.Equal(t, 2, m.MaxScore)
	}

	_, err = NewGenerator(Mode("double_elimination"))
	assert.ErrorIs(t, err, ErrUnsupportedMode)
}

func TestGenerator_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSingleEliminationGenerator().GenerateBracket(ctx, GenerateBracketParams{Players: makePlayers(4)})
	assert.ErrorIs(t, err, context.Canceled)
}
