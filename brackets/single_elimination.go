package brackets

import "fmt"

type destinationKind int

const (
	// destFinal: the match is the championship, nothing to feed.
	destFinal destinationKind = iota
	// destExistingRound: the next round is already allocated.
	destExistingRound
	// destNewRound: the match sits in the last allocated round and the
	// final is further on, so the next round has to be created.
	destNewRound
)

type destination struct {
	kind  destinationKind
	round int
	match int
	side  Side
}

// destinationOf classifies where the winner of (roundIndex, matchIndex)
// goes, based on how far the bracket has been allocated.
func destinationOf(b *Bracket, roundIndex, matchIndex int) destination {
	if roundIndex >= b.finalRoundIndex() {
		return destination{kind: destFinal}
	}

	d := destination{kind: destExistingRound, round: roundIndex + 1, match: matchIndex / 2, side: SideA}
	if matchIndex%2 == 1 {
		d.side = SideB
	}
	if d.round >= len(b.Rounds) {
		d.kind = destNewRound
	}
	return d
}

// RecordWinner declares winnerID the winner of the addressed match and
// writes it into the next round. The input bracket is left untouched.
// Score brackets only get the winner set; their next round comes from
// SyncRound.
//
// Declaring a different winner for an already advanced match replaces the
// player in the destination slot and clears any result downstream that was
// played with the replaced player.
func RecordWinner(b *Bracket, roundIndex, matchIndex int, winnerID string) (*Bracket, error) {
	m, ok := b.MatchAt(roundIndex, matchIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %w: round %d, match %d", ErrInvalidWinner, ErrMatchNotFound, roundIndex, matchIndex)
	}
	if !m.HasPlayer(winnerID) {
		return nil, fmt.Errorf("%w: %q is not in match %s", ErrInvalidWinner, winnerID, m.ID)
	}

	next := b.Clone()
	next.Rounds[roundIndex][matchIndex].Winner = winnerID
	if next.Mode != ModeScoreElimination {
		advance(next, roundIndex, matchIndex, winnerID)
	}
	return next, nil
}

// advance writes winnerID into the destination of (roundIndex, matchIndex).
// b must be a private copy.
func advance(b *Bracket, roundIndex, matchIndex int, winnerID string) {
	d := destinationOf(b, roundIndex, matchIndex)
	switch d.kind {
	case destFinal:
		return
	case destNewRound:
		b.Rounds = append(b.Rounds, Round{})
	}
	// Allocate up to the destination; other matches wait for their feeders.
	for len(b.Rounds[d.round]) <= d.match {
		b.Rounds[d.round] = append(b.Rounds[d.round], Match{ID: matchID(b.ID, d.round, len(b.Rounds[d.round]))})
	}

	dest := &b.Rounds[d.round][d.match]
	previous, _ := dest.Slot(d.side)
	if previous == winnerID {
		return
	}
	dest.setSlot(d.side, winnerID)
	if dest.IsResolved() {
		retract(b, d.round, d.match)
	}
}

// retract clears the result of a match whose pairing changed and removes its
// old winner from wherever it was advanced to.
func retract(b *Bracket, roundIndex, matchIndex int) {
	m := &b.Rounds[roundIndex][matchIndex]
	old := m.Winner
	m.Winner = ""
	m.ScoreA, m.ScoreB = 0, 0

	d := destinationOf(b, roundIndex, matchIndex)
	if d.kind != destExistingRound || d.match >= len(b.Rounds[d.round]) {
		return
	}
	dest := &b.Rounds[d.round][d.match]
	if current, _ := dest.Slot(d.side); current != old {
		return
	}
	dest.setSlot(d.side, "")
	if dest.IsResolved() {
		retract(b, d.round, d.match)
	}
}
