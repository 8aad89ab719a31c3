package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"kneeflexiq/internal/classify"
	"kneeflexiq/internal/config"
	"kneeflexiq/internal/db"
	"kneeflexiq/internal/logging"
	"kneeflexiq/internal/migrate"
)

var version = "dev"
var appName = "kneeflexiq-tools"

const usage = `usage: %s <command>
  migrate                       apply pending schema migrations
  train <data.csv> [model.yaml] build a classifier model from labeled flex_value,label rows
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintf(stderr, usage, args[0])
		return 1
	}

	switch args[1] {
	case "migrate":
		return runMigrate(stdout, stderr)
	case "train":
		return runTrain(args[2:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", args[1])
		return 1
	}
}

func runMigrate(stdout, stderr io.Writer) int {
	cfg, err := config.LoadServerFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	slog.SetDefault(logging.New(cfg.Common, version, appName))

	conn, err := db.Open(cfg, slog.Default())
	if err != nil {
		fmt.Fprintf(stderr, "db open: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	if err := migrate.Run(context.Background(), conn); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "migrations applied")
	return 0
}

func runTrain(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintf(stderr, "usage: train <data.csv> [model.yaml]\n")
		return 1
	}

	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "open training data: %v\n", err)
		return 1
	}
	defer func() { _ = f.Close() }()

	model, err := classify.Train(f)
	if err != nil {
		fmt.Fprintf(stderr, "train: %v\n", err)
		return 1
	}
	out, err := model.Marshal()
	if err != nil {
		fmt.Fprintf(stderr, "train: %v\n", err)
		return 1
	}

	if len(args) == 1 {
		if _, err := stdout.Write(out); err != nil {
			fmt.Fprintf(stderr, "write model: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(args[1], out, 0o644); err != nil {
		fmt.Fprintf(stderr, "write model: %v\n", err)
		return 1
	}
	for _, c := range model.Classes {
		fmt.Fprintf(stdout, "%s\t%.2f\n", c.Label, c.Centroid)
	}
	fmt.Fprintf(stdout, "model written to %s\n", args[1])
	return 0
}
