package brackets

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGenerate(t *testing.T, ids ...string) *Bracket {
	t.Helper()
	b, err := GenerateBracket(namedPlayers(ids...), identityShuffle(), fixedID("t"))
	require.NoError(t, err)
	return b
}

func TestRecordWinner_ThreePlayers(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C")

	require.Len(t, b.Rounds, 2)
	assert.Equal(t, Round{
		{ID: "t-R1M1", SlotA: "A", SlotB: "B"},
		{ID: "t-R1M2", SlotA: "C"},
	}, b.Rounds[0])
	assert.Equal(t, Round{{ID: "t-R2M1"}}, b.Rounds[1])

	b, err := RecordWinner(b, 0, 0, "A")
	require.NoError(t, err)
	assert.Equal(t, "A", b.Rounds[1][0].SlotA)

	b, err = RecordWinner(b, 0, 1, "C")
	require.NoError(t, err)
	assert.Equal(t, "C", b.Rounds[1][0].SlotB)
	assert.False(t, b.IsComplete())

	b, err = RecordWinner(b, 1, 0, "C")
	require.NoError(t, err)
	assert.True(t, b.IsComplete())
	assert.Equal(t, "C", b.Champion())
	assert.Len(t, b.Rounds, 2, "the final must not feed a new round")
}

func TestRecordWinner_LeavesInputUntouched(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C", "D")
	before := b.Clone()

	next, err := RecordWinner(b, 0, 1, "D")
	require.NoError(t, err)

	assert.Equal(t, before, b)
	assert.Equal(t, "D", next.Rounds[0][1].Winner)
	assert.Equal(t, "D", next.Rounds[1][0].SlotB)
}

func TestRecordWinner_Idempotent(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C", "D", "E")

	once, err := RecordWinner(b, 0, 2, "E")
	require.NoError(t, err)
	twice, err := RecordWinner(once, 0, 2, "E")
	require.NoError(t, err)

	assert.Equal(t, once, twice)
}

func TestRecordWinner_InvalidWinner(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C")
	before := b.Clone()

	tests := []struct {
		name       string
		round      int
		match      int
		winner     string
		wantTarget error
	}{
		{name: "not in match", round: 0, match: 0, winner: "C", wantTarget: ErrInvalidWinner},
		{name: "empty bye slot", round: 0, match: 1, winner: "", wantTarget: ErrInvalidWinner},
		{name: "placeholder match", round: 1, match: 0, winner: "A", wantTarget: ErrInvalidWinner},
		{name: "round out of range", round: 5, match: 0, winner: "A", wantTarget: ErrMatchNotFound},
		{name: "match out of range", round: 0, match: 9, winner: "A", wantTarget: ErrMatchNotFound},
		{name: "negative address", round: -1, match: 0, winner: "A", wantTarget: ErrInvalidWinner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := RecordWinner(b, tt.round, tt.match, tt.winner)
			assert.ErrorIs(t, err, tt.wantTarget)
			assert.ErrorIs(t, err, ErrInvalidWinner)
			assert.Nil(t, next)
			assert.Equal(t, before, b)
		})
	}
}

func TestRecordWinner_PlaysToChampion(t *testing.T) {
	for n := 2; n <= 20; n++ {
		t.Run(fmt.Sprintf("%d players", n), func(t *testing.T) {
			b, err := GenerateBracket(makePlayers(n))
			require.NoError(t, err)
			rounds := len(b.Rounds)
			entrants := map[string]bool{}
			for _, id := range b.PlayerIDs() {
				entrants[id] = true
			}

			for r := 0; r < len(b.Rounds); r++ {
				for i := range b.Rounds[r] {
					m := b.Rounds[r][i]
					winner := m.SlotB
					if winner == "" {
						winner = m.SlotA
					}
					require.NotEmpty(t, winner, "match %s should be populated by now", m.ID)
					b, err = RecordWinner(b, r, i, winner)
					require.NoError(t, err)
				}
			}

			assert.True(t, b.IsComplete())
			assert.True(t, entrants[b.Champion()])
			assert.Len(t, b.Rounds, rounds)
		})
	}
}

func TestRecordWinner_GrowsUnallocatedRounds(t *testing.T) {
	b := &Bracket{ID: "lazy", Mode: ModeSingleElimination, Rounds: []Round{{
		{ID: "lazy-R1M1", SlotA: "A", SlotB: "B"},
		{ID: "lazy-R1M2", SlotA: "C", SlotB: "D"},
		{ID: "lazy-R1M3", SlotA: "E", SlotB: "F"},
		{ID: "lazy-R1M4", SlotA: "G", SlotB: "H"},
	}}}

	b, err := RecordWinner(b, 0, 3, "H")
	require.NoError(t, err)
	require.Len(t, b.Rounds, 2)
	assert.Equal(t, Round{{ID: "lazy-R2M1"}, {ID: "lazy-R2M2", SlotB: "H"}}, b.Rounds[1])

	for i, w := range []string{"A", "C", "E"} {
		b, err = RecordWinner(b, 0, i, w)
		require.NoError(t, err)
	}
	assert.Equal(t, Round{
		{ID: "lazy-R2M1", SlotA: "A", SlotB: "C"},
		{ID: "lazy-R2M2", SlotA: "E", SlotB: "H"},
	}, b.Rounds[1])

	b, err = RecordWinner(b, 1, 0, "A")
	require.NoError(t, err)
	b, err = RecordWinner(b, 1, 1, "H")
	require.NoError(t, err)
	require.Len(t, b.Rounds, 3)
	assert.Equal(t, Match{ID: "lazy-R3M1", SlotA: "A", SlotB: "H"}, b.Rounds[2][0])

	b, err = RecordWinner(b, 2, 0, "H")
	require.NoError(t, err)
	assert.Len(t, b.Rounds, 3)
	assert.Equal(t, "H", b.Champion())
}

func TestRecordWinner_AppendsSingleMatchRound(t *testing.T) {
	b := &Bracket{ID: "lazy", Mode: ModeSingleElimination, Rounds: []Round{{
		{ID: "lazy-R1M1", SlotA: "A", SlotB: "B"},
		{ID: "lazy-R1M2", SlotA: "C", SlotB: "D"},
		{ID: "lazy-R1M3", SlotA: "E", SlotB: "F"},
		{ID: "lazy-R1M4", SlotA: "G", SlotB: "H"},
	}}}

	b, err := RecordWinner(b, 0, 0, "A")
	require.NoError(t, err)
	require.Len(t, b.Rounds, 2)
	assert.Equal(t, Round{{ID: "lazy-R2M1", SlotA: "A"}}, b.Rounds[1])

	b, err = RecordWinner(b, 0, 1, "C")
	require.NoError(t, err)
	assert.Equal(t, Round{{ID: "lazy-R2M1", SlotA: "A", SlotB: "C"}}, b.Rounds[1])

	// The lone match of round 1 is a semifinal, not the final.
	b, err = RecordWinner(b, 1, 0, "C")
	require.NoError(t, err)
	require.Len(t, b.Rounds, 3)
	assert.Equal(t, Round{{ID: "lazy-R3M1", SlotA: "C"}}, b.Rounds[2])
	assert.False(t, b.IsComplete())
	_, ok := b.Final()
	assert.True(t, ok)
	assert.Empty(t, b.Champion())

	for i, w := range []string{"E", "G"} {
		b, err = RecordWinner(b, 0, i+2, w)
		require.NoError(t, err)
	}
	b, err = RecordWinner(b, 1, 1, "G")
	require.NoError(t, err)
	assert.Equal(t, Match{ID: "lazy-R3M1", SlotA: "C", SlotB: "G"}, b.Rounds[2][0])

	b, err = RecordWinner(b, 2, 0, "G")
	require.NoError(t, err)
	assert.Len(t, b.Rounds, 3)
	assert.Equal(t, "G", b.Champion())
}

func TestRecordWinner_AllocatesMissingDestination(t *testing.T) {
	b := &Bracket{ID: "x", Mode: ModeSingleElimination, Rounds: []Round{
		{
			{ID: "x-R1M1", SlotA: "A", SlotB: "B"},
			{ID: "x-R1M2", SlotA: "C", SlotB: "D"},
			{ID: "x-R1M3", SlotA: "E", SlotB: "F"},
		},
		{{ID: "x-R2M1"}},
		{{ID: "x-R3M1"}},
	}}

	b, err := RecordWinner(b, 0, 2, "E")
	require.NoError(t, err)
	require.Len(t, b.Rounds[1], 2)
	assert.Equal(t, Match{ID: "x-R2M2", SlotA: "E"}, b.Rounds[1][1])
}

func TestRecordWinner_CorrectionClearsDownstream(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C", "D")
	var err error
	for _, step := range []struct {
		round, match int
		winner       string
	}{{0, 0, "A"}, {0, 1, "C"}, {1, 0, "A"}} {
		b, err = RecordWinner(b, step.round, step.match, step.winner)
		require.NoError(t, err)
	}
	require.Equal(t, "A", b.Champion())

	b, err = RecordWinner(b, 0, 0, "B")
	require.NoError(t, err)

	assert.Equal(t, Match{ID: "t-R2M1", SlotA: "B", SlotB: "C"}, b.Rounds[1][0])
	assert.False(t, b.IsComplete())
	assert.Empty(t, b.Champion())
}

func TestRecordWinner_CorrectionCascades(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C", "D", "E", "F", "G", "H")
	var err error
	for _, step := range []struct {
		round, match int
		winner       string
	}{
		{0, 0, "A"}, {0, 1, "C"}, {0, 2, "E"}, {0, 3, "G"},
		{1, 0, "A"}, {1, 1, "G"},
		{2, 0, "A"},
	} {
		b, err = RecordWinner(b, step.round, step.match, step.winner)
		require.NoError(t, err)
	}

	b, err = RecordWinner(b, 0, 0, "B")
	require.NoError(t, err)

	assert.Equal(t, Match{ID: "t-R2M1", SlotA: "B", SlotB: "C"}, b.Rounds[1][0])
	assert.Equal(t, Match{ID: "t-R3M1", SlotB: "G"}, b.Rounds[2][0], "A must be removed from the final")
	assert.Equal(t, "G", b.Rounds[1][1].Winner, "unrelated results stay")
}

func TestRecordWinner_ScoreBracketDoesNotAdvance(t *testing.T) {
	b, err := GenerateBracket(namedPlayers("A", "B", "C", "D"), identityShuffle(), WithMaxScore(2))
	require.NoError(t, err)

	b, err = RecordWinner(b, 0, 0, "B")
	require.NoError(t, err)

	assert.Equal(t, "B", b.Rounds[0][0].Winner)
	assert.Len(t, b.Rounds, 1)
}

func TestDestinationOf(t *testing.T) {
	b := mustGenerate(t, "A", "B", "C", "D", "E")

	assert.Equal(t, destination{kind: destExistingRound, round: 1, match: 1, side: SideA}, destinationOf(b, 0, 2))
	assert.Equal(t, destination{kind: destExistingRound, round: 2, match: 0, side: SideB}, destinationOf(b, 1, 1))
	assert.Equal(t, destination{kind: destFinal}, destinationOf(b, 2, 0))

	partial := &Bracket{ID: "p", Rounds: []Round{{{}, {}, {}}}}
	assert.Equal(t, destination{kind: destNewRound, round: 1, match: 0, side: SideB}, destinationOf(partial, 0, 1))
}
