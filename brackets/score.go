package brackets

import "fmt"

// RecordPoint adds one point to side and declares that side the winner once
// it reaches the match's MaxScore.
func RecordPoint(m Match, side Side) (Match, error) {
	if m.IsResolved() {
		return m, fmt.Errorf("%w: match %s was won by %q", ErrMatchAlreadyResolved, m.ID, m.Winner)
	}
	if m.MaxScore < 1 {
		return m, fmt.Errorf("%w: match %s is not played to a score", ErrInvalidMaxScore, m.ID)
	}

	player, err := m.Slot(side)
	if err != nil {
		return m, err
	}
	if player == "" {
		return m, fmt.Errorf("%w: side %q of match %s has no player", ErrInvalidSide, side, m.ID)
	}

	score := &m.ScoreA
	if side == SideB {
		score = &m.ScoreB
	}
	*score++
	if *score >= m.MaxScore {
		m.Winner = player
	}
	return m, nil
}

// RecordPointAt applies RecordPoint to the addressed match of b.
func RecordPointAt(b *Bracket, roundIndex, matchIndex int, side Side) (*Bracket, error) {
	m, ok := b.MatchAt(roundIndex, matchIndex)
	if !ok {
		return nil, fmt.Errorf("%w: round %d, match %d", ErrMatchNotFound, roundIndex, matchIndex)
	}
	scored, err := RecordPoint(m, side)
	if err != nil {
		return nil, err
	}
	next := b.Clone()
	next.Rounds[roundIndex][matchIndex] = scored
	return next, nil
}

// SyncRound pairs the winners of roundIndex into round roundIndex+1 once
// every match of the round is resolved. The boolean is false when nothing
// changed: the round is still being played, it is the final, or the next
// round already holds the same pairing.
//
// A next round holding a different pairing is replaced, and the rounds
// after it are dropped since they were derived from it.
func SyncRound(b *Bracket, roundIndex int) (*Bracket, bool, error) {
	if b == nil || roundIndex < 0 || roundIndex >= len(b.Rounds) {
		return nil, false, fmt.Errorf("%w: %d", ErrRoundNotFound, roundIndex)
	}

	round := b.Rounds[roundIndex]
	if !round.Resolved() || len(round) == 1 {
		return b, false, nil
	}
	if len(round)%2 != 0 {
		return nil, false, fmt.Errorf("%w: round %d has %d winners", ErrUnpaireableRound, roundIndex, len(round))
	}

	nextIndex := roundIndex + 1
	maxScore := round[0].MaxScore
	paired := make(Round, 0, len(round)/2)
	for i := 0; i < len(round); i += 2 {
		paired = append(paired, Match{
			ID:       matchID(b.ID, nextIndex, i/2),
			SlotA:    round[i].Winner,
			SlotB:    round[i+1].Winner,
			MaxScore: maxScore,
		})
	}

	if nextIndex < len(b.Rounds) && samePairing(b.Rounds[nextIndex], paired) {
		return b, false, nil
	}

	next := b.Clone()
	next.Rounds = append(next.Rounds[:nextIndex], paired)
	return next, true, nil
}

func samePairing(existing, paired Round) bool {
	if len(existing) != len(paired) {
		return false
	}
	for i := range existing {
		if existing[i].SlotA != paired[i].SlotA || existing[i].SlotB != paired[i].SlotB {
			return false
		}
	}
	return true
}
