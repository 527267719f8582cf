// Package brackets builds single-elimination brackets and advances them
// round by round. Every operation takes a bracket snapshot and returns the
// next one; inputs are never modified, so callers can recompute safely after
// losing an optimistic write.
package brackets

import "fmt"

// Mode selects how a bracket advances.
type Mode string

const (
	// ModeSingleElimination advances each winner as soon as it is declared.
	ModeSingleElimination Mode = "single_elimination"
	// ModeScoreElimination plays matches to a target score and builds the
	// next round only when the whole round is resolved.
	ModeScoreElimination Mode = "score_elimination"
)

// Side names one of the two slots of a match.
type Side string

const (
	SideA Side = "a"
	SideB Side = "b"
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Match is one pairing. Empty slot and winner values mean "not known yet".
type Match struct {
	ID       string `json:"id"`
	SlotA    string `json:"slot_a,omitempty"`
	SlotB    string `json:"slot_b,omitempty"`
	Winner   string `json:"winner,omitempty"`
	ScoreA   int    `json:"score_a"`
	ScoreB   int    `json:"score_b"`
	MaxScore int    `json:"max_score,omitempty"`
}

// IsResolved reports whether the match has a declared winner.
func (m Match) IsResolved() bool {
	return m.Winner != ""
}

// IsBye reports whether exactly one slot is populated.
func (m Match) IsBye() bool {
	return (m.SlotA == "") != (m.SlotB == "")
}

// HasPlayer reports whether playerID occupies one of the populated slots.
func (m Match) HasPlayer(playerID string) bool {
	return playerID != "" && (playerID == m.SlotA || playerID == m.SlotB)
}

// Slot returns the player in the given side.
func (m Match) Slot(side Side) (string, error) {
	switch side {
	case SideA:
		return m.SlotA, nil
	case SideB:
		return m.SlotB, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSide, side)
	}
}

func (m *Match) setSlot(side Side, playerID string) {
	if side == SideA {
		m.SlotA = playerID
		return
	}
	m.SlotB = playerID
}

// Round is an ordered layer of the bracket. Position i feeds match i/2 of
// the next round.
type Round []Match

// Resolved reports whether every match in the round has a winner.
func (r Round) Resolved() bool {
	for _, m := range r {
		if !m.IsResolved() {
			return false
		}
	}
	return len(r) > 0
}

// Bracket is the full tree of rounds for one tournament. Rounds[0] is the
// first round and the last round holds the final.
type Bracket struct {
	ID     string  `json:"id"`
	Mode   Mode    `json:"mode"`
	Rounds []Round `json:"rounds"`
}

// Clone returns a deep copy of the bracket.
func (b *Bracket) Clone() *Bracket {
	if b == nil {
		return nil
	}
	out := &Bracket{ID: b.ID, Mode: b.Mode, Rounds: make([]Round, len(b.Rounds))}
	for i, r := range b.Rounds {
		out.Rounds[i] = append(Round(nil), r...)
	}
	return out
}

// MatchAt returns the match addressed by round and position.
func (b *Bracket) MatchAt(roundIndex, matchIndex int) (Match, bool) {
	if b == nil || roundIndex < 0 || roundIndex >= len(b.Rounds) {
		return Match{}, false
	}
	round := b.Rounds[roundIndex]
	if matchIndex < 0 || matchIndex >= len(round) {
		return Match{}, false
	}
	return round[matchIndex], true
}

// Final returns the championship match once its round is allocated.
func (b *Bracket) Final() (Match, bool) {
	if b == nil || len(b.Rounds) == 0 {
		return Match{}, false
	}
	idx := b.finalRoundIndex()
	if idx >= len(b.Rounds) || len(b.Rounds[idx]) != 1 {
		return Match{}, false
	}
	return b.Rounds[idx][0], true
}

// finalRoundIndex is the round holding the championship match. It follows
// from the size of round 0, so a partially allocated single-match round
// earlier in the bracket is never taken for the final.
func (b *Bracket) finalRoundIndex() int {
	idx := 0
	for size := len(b.Rounds[0]); size > 1; size = ceilHalf(size) {
		idx++
	}
	return idx
}

// IsComplete reports whether the final has a winner.
func (b *Bracket) IsComplete() bool {
	final, ok := b.Final()
	return ok && final.IsResolved()
}

// Champion returns the winner of the final, or "" while the bracket is open.
func (b *Bracket) Champion() string {
	if !b.IsComplete() {
		return ""
	}
	final, _ := b.Final()
	return final.Winner
}

// PlayerIDs returns the identifiers seeded into the first round.
func (b *Bracket) PlayerIDs() []string {
	if b == nil || len(b.Rounds) == 0 {
		return nil
	}
	ids := make([]string, 0, len(b.Rounds[0])*2)
	for _, m := range b.Rounds[0] {
		if m.SlotA != "" {
			ids = append(ids, m.SlotA)
		}
		if m.SlotB != "" {
			ids = append(ids, m.SlotB)
		}
	}
	return ids
}

func matchID(bracketID string, roundIndex, matchIndex int) string {
	return fmt.Sprintf("%s-R%dM%d", bracketID, roundIndex+1, matchIndex+1)
}

func placeholderRound(bracketID string, roundIndex, size, maxScore int) Round {
	round := make(Round, size)
	for i := range round {
		round[i] = Match{ID: matchID(bracketID, roundIndex, i), MaxScore: maxScore}
	}
	return round
}

func ceilHalf(n int) int {
	return (n + 1) / 2
}
