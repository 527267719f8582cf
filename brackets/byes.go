package brackets

// ResolveByes declares the lone player of every open bye the winner, as long
// as the empty slot can never be filled, and repeats until nothing moves.
// Single-elimination brackets advance each resolved bye into the next round.
// The boolean reports whether anything changed.
func ResolveByes(b *Bracket) (*Bracket, bool) {
	next := b.Clone()
	changed := false
	for progress := true; progress; {
		progress = false
		for r := range next.Rounds {
			for i := range next.Rounds[r] {
				if next.Rounds[r][i].IsResolved() {
					continue
				}
				playerID, ok := byePlayer(next, r, i)
				if !ok {
					continue
				}
				next.Rounds[r][i].Winner = playerID
				if next.Mode != ModeScoreElimination {
					advance(next, r, i, playerID)
				}
				progress, changed = true, true
			}
		}
	}
	return next, changed
}

func byePlayer(b *Bracket, roundIndex, matchIndex int) (string, bool) {
	m := b.Rounds[roundIndex][matchIndex]
	switch {
	case m.SlotA != "" && m.SlotB == "" && !hasFeeder(b, roundIndex, matchIndex, SideB):
		return m.SlotA, true
	case m.SlotB != "" && m.SlotA == "" && !hasFeeder(b, roundIndex, matchIndex, SideA):
		return m.SlotB, true
	}
	return "", false
}

// hasFeeder reports whether some earlier match can still write into side.
func hasFeeder(b *Bracket, roundIndex, matchIndex int, side Side) bool {
	if roundIndex == 0 {
		return false
	}
	feeder := 2 * matchIndex
	if side == SideB {
		feeder++
	}
	return feeder < len(b.Rounds[roundIndex-1])
}
