package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/DioBrando1866/tekken-tournaments/brackets"
)

// stateFile is the on-disk form of an offline bracket.
type stateFile struct {
	Players []brackets.Player `json:"players"`
	Bracket *brackets.Bracket `json:"bracket"`
}

func (s *stateFile) playerID(ref string) string {
	for _, p := range s.Players {
		if p.ID == ref || strings.EqualFold(p.Name, ref) {
			return p.ID
		}
	}
	return ref
}

func (s *stateFile) playerName(id string) string {
	if id == "" {
		return "-"
	}
	for _, p := range s.Players {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func readState(path string) (*stateFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var s stateFile
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", path, err)
	}
	if s.Bracket == nil {
		return nil, fmt.Errorf("state %s has no bracket", path)
	}
	return &s, nil
}

func writeState(path string, s *stateFile) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bracketctl",
		Short:         "Run single elimination brackets from a JSON state file",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("file", "bracket.json", "Bracket state file")

	root.AddCommand(generateCmd())
	root.AddCommand(winnerCmd())
	root.AddCommand(pointCmd())
	root.AddCommand(syncCmd())
	root.AddCommand(byesCmd())
	root.AddCommand(showCmd())
	return root
}

func stateFlag(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("file")
	return path
}

// mutateState loads the state, applies fn and saves the result.
func mutateState(cmd *cobra.Command, fn func(s *stateFile) (*brackets.Bracket, error)) error {
	path := stateFlag(cmd)
	s, err := readState(path)
	if err != nil {
		return err
	}
	next, err := fn(s)
	if err != nil {
		return err
	}
	s.Bracket = next
	if err := writeState(path, s); err != nil {
		return err
	}
	printBracket(cmd.OutOrStdout(), s)
	return nil
}

func generateCmd() *cobra.Command {
	var (
		players     string
		playersFile string
		mode        string
		maxScore    int
		seed        uint64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Shuffle players into a new bracket",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := collectNames(players, playersFile)
			if err != nil {
				return err
			}
			roster := make([]brackets.Player, len(names))
			for i, name := range names {
				roster[i] = brackets.Player{ID: name, Name: name}
			}

			var opts []brackets.Option
			if seed != 0 {
				opts = append(opts, brackets.WithRand(rand.New(rand.NewPCG(seed, seed))))
			}
			generator, err := brackets.NewGenerator(brackets.Mode(mode), opts...)
			if err != nil {
				return err
			}
			b, err := generator.GenerateBracket(cmd.Context(), brackets.GenerateBracketParams{Players: roster, MaxScore: maxScore})
			if err != nil {
				return err
			}

			s := &stateFile{Players: roster, Bracket: b}
			if err := writeState(stateFlag(cmd), s); err != nil {
				return err
			}
			logger.Info("bracket generated", "id", b.ID, "players", len(roster), "rounds", len(b.Rounds), "file", stateFlag(cmd))
			printBracket(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().StringVar(&players, "players", "", "Comma separated player names")
	cmd.Flags().StringVar(&playersFile, "players-file", "", "File with one player name per line")
	cmd.Flags().StringVar(&mode, "mode", string(brackets.ModeSingleElimination), "single_elimination or score_elimination")
	cmd.Flags().IntVar(&maxScore, "max-score", 1, "Points needed to win a score elimination match")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Shuffle seed for reproducible brackets (0 = random)")
	return cmd
}

func collectNames(list, path string) ([]string, error) {
	var names []string
	for _, n := range strings.Split(list, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open players file: %w", err)
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if n := strings.TrimSpace(sc.Text()); n != "" && !strings.HasPrefix(n, "#") {
				names = append(names, n)
			}
		}
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("read players file: %w", err)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("no players given, use --players or --players-file")
	}
	return names, nil
}

func winnerCmd() *cobra.Command {
	var round, match int
	var winner string
	cmd := &cobra.Command{
		Use:   "winner",
		Short: "Declare the winner of a match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateState(cmd, func(s *stateFile) (*brackets.Bracket, error) {
				return brackets.RecordWinner(s.Bracket, round, match, s.playerID(winner))
			})
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "Zero-based round index")
	cmd.Flags().IntVar(&match, "match", 0, "Zero-based match index")
	cmd.Flags().StringVar(&winner, "winner", "", "Winner ID or name")
	_ = cmd.MarkFlagRequired("winner")
	return cmd
}

func pointCmd() *cobra.Command {
	var round, match int
	var side string
	cmd := &cobra.Command{
		Use:   "point",
		Short: "Award a point to one side of a score elimination match",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateState(cmd, func(s *stateFile) (*brackets.Bracket, error) {
				return brackets.RecordPointAt(s.Bracket, round, match, brackets.Side(strings.ToLower(side)))
			})
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "Zero-based round index")
	cmd.Flags().IntVar(&match, "match", 0, "Zero-based match index")
	cmd.Flags().StringVar(&side, "side", "", "a or b")
	_ = cmd.MarkFlagRequired("side")
	return cmd
}

func syncCmd() *cobra.Command {
	var round int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Pair the winners of a resolved round into the next one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateState(cmd, func(s *stateFile) (*brackets.Bracket, error) {
				next, changed, err := brackets.SyncRound(s.Bracket, round)
				if err == nil && !changed {
					logger.Info("round not ready or already paired", "round", round)
				}
				return next, err
			})
		},
	}
	cmd.Flags().IntVar(&round, "round", 0, "Zero-based round index")
	return cmd
}

func byesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "byes",
		Short: "Advance every player without an opponent",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mutateState(cmd, func(s *stateFile) (*brackets.Bracket, error) {
				next, changed := brackets.ResolveByes(s.Bracket)
				if !changed {
					logger.Info("no byes to resolve")
				}
				return next, nil
			})
		},
	}
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the bracket",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := readState(stateFlag(cmd))
			if err != nil {
				return err
			}
			printBracket(cmd.OutOrStdout(), s)
			return nil
		},
	}
}

func printBracket(out io.Writer, s *stateFile) {
	b := s.Bracket
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "bracket %s (%s)\n", b.ID, b.Mode)
	for r, round := range b.Rounds {
		for m, match := range round {
			line := fmt.Sprintf("R%d M%d\t%s\tvs\t%s", r, m, s.playerName(match.SlotA), s.playerName(match.SlotB))
			if match.MaxScore > 0 {
				line += fmt.Sprintf("\t%d-%d/%d", match.ScoreA, match.ScoreB, match.MaxScore)
			}
			if match.Winner != "" {
				line += "\twinner: " + s.playerName(match.Winner)
			}
			fmt.Fprintln(w, line)
		}
	}
	if b.IsComplete() {
		fmt.Fprintf(w, "champion\t%s\n", s.playerName(b.Champion()))
	}
	w.Flush()
}
