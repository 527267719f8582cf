package brackets

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/google/uuid"
)

type GenerateBracketParams struct {
	Players []Player
	// MaxScore is the per-match target for score brackets; ignored otherwise.
	MaxScore int
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error)

	GetName() string
}

// Option tunes GenerateBracket.
type Option func(*options)

type options struct {
	intN     func(n int) int
	newID    func() string
	scored   bool
	maxScore int
}

// WithRand makes the shuffle draw from r instead of the global source.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.intN = r.IntN
	}
}

// WithIDFunc replaces the bracket identifier source.
func WithIDFunc(f func() string) Option {
	return func(o *options) {
		o.newID = f
	}
}

// WithMaxScore builds a score bracket whose matches are won at k points.
func WithMaxScore(k int) Option {
	return func(o *options) {
		o.scored = true
		o.maxScore = k
	}
}

func buildOptions(opts []Option) options {
	o := options{intN: rand.IntN, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// GenerateBracket shuffles players into first-round pairs, leaving the last
// slot empty when the count is odd. Single-elimination brackets get empty
// placeholder rounds down to the final; score brackets only get round 0 and
// grow through SyncRound.
func GenerateBracket(players []Player, opts ...Option) (*Bracket, error) {
	if len(players) < 2 {
		return nil, fmt.Errorf("%w: found %d", ErrInsufficientPlayers, len(players))
	}
	if err := validatePlayers(players); err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	if o.scored && o.maxScore < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidMaxScore, o.maxScore)
	}

	b := &Bracket{ID: o.newID(), Mode: ModeSingleElimination}
	if o.scored {
		b.Mode = ModeScoreElimination
	}

	seeded := shuffle(players, o.intN)
	first := make(Round, 0, ceilHalf(len(seeded)))
	for i := 0; i < len(seeded); i += 2 {
		m := Match{ID: matchID(b.ID, 0, len(first)), SlotA: seeded[i].ID, MaxScore: o.maxScore}
		if i+1 < len(seeded) {
			m.SlotB = seeded[i+1].ID
		}
		first = append(first, m)
	}
	b.Rounds = []Round{first}

	if o.scored {
		return b, nil
	}
	for count := len(first); count > 1; {
		count = ceilHalf(count)
		b.Rounds = append(b.Rounds, placeholderRound(b.ID, len(b.Rounds), count, 0))
	}
	return b, nil
}

// shuffle returns a Fisher-Yates permutation of players.
func shuffle(players []Player, intN func(n int) int) []Player {
	out := make([]Player, len(players))
	copy(out, players)
	for i := len(out) - 1; i > 0; i-- {
		j := intN(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func validatePlayers(players []Player) error {
	seen := make(map[string]struct{}, len(players))
	for i, p := range players {
		if p.ID == "" {
			return fmt.Errorf("%w: player at position %d has no id", ErrInvalidPlayers, i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidPlayers, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

type SingleEliminationGenerator struct {
	opts []Option
}

func NewSingleEliminationGenerator(opts ...Option) BracketGenerator {
	return &SingleEliminationGenerator{opts: opts}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return GenerateBracket(params.Players, g.opts...)
}

type ScoreEliminationGenerator struct {
	opts []Option
}

func NewScoreEliminationGenerator(opts ...Option) BracketGenerator {
	return &ScoreEliminationGenerator{opts: opts}
}

func (g *ScoreEliminationGenerator) GetName() string {
	return "ScoreElimination"
}

func (g *ScoreEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) (*Bracket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts := append(append([]Option(nil), g.opts...), WithMaxScore(params.MaxScore))
	return GenerateBracket(params.Players, opts...)
}

// NewGenerator picks the generator for a bracket mode.
func NewGenerator(mode Mode, opts ...Option) (BracketGenerator, error) {
	switch mode {
	case ModeSingleElimination:
		return NewSingleEliminationGenerator(opts...), nil
	case ModeScoreElimination:
		return NewScoreEliminationGenerator(opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}
