// Command bracketctl runs a bracket offline against a JSON state file.
//
// Usage:
//
//	bracketctl generate --players "Jin,Kazuya,Nina" --file weekly.json
//	bracketctl generate --players-file roster.txt --mode score_elimination --max-score 3 --file weekly.json
//	bracketctl winner --file weekly.json --round 0 --match 1 --winner Jin
//	bracketctl point --file weekly.json --round 0 --match 0 --side a
//	bracketctl sync --file weekly.json --round 0
//	bracketctl byes --file weekly.json
//	bracketctl show --file weekly.json
package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	_ = godotenv.Load(".env")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
