// Command seed loads the administrative hierarchy JSON into the database.
// It can be run again on the same file without creating duplicates.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	"tallyboard/internal/config"
	"tallyboard/internal/geo"
	"tallyboard/internal/logger"
)

func main() {
	file := flag.String("file", "data/hierarchy.json", "path to the hierarchy JSON document")
	quiet := flag.Bool("quiet", false, "disable the progress bar")
	flag.Parse()

	cfg := config.Load()
	logger.Setup(logger.Options{File: cfg.LogFile, Level: cfg.LogLevel, Stdout: cfg.LogStdout})

	if err := run(cfg, *file, *quiet); err != nil {
		fmt.Fprintln(os.Stderr, "seed:", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, path string, quiet bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	tree, skipped, err := geo.ParseTree(f)
	if err != nil {
		return err
	}
	for _, s := range skipped {
		logrus.WithField("path", s.Path).Warn("Skipped hierarchy entry: " + s.Reason)
	}
	if len(skipped) > 0 {
		fmt.Printf("%d malformed entries skipped (see log)\n", len(skipped))
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := geo.NewLoader(db)
	if !quiet {
		bar := progressbar.NewOptions(tree.Total(),
			progressbar.OptionSetDescription("Loading hierarchy"),
			progressbar.OptionSetWidth(50),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowCount(),
			progressbar.OptionOnCompletion(func() {
				fmt.Println()
			}),
			progressbar.OptionFullWidth(),
		)
		loader.OnNode = func(geo.Level, string) { _ = bar.Add(1) }
	}

	start := time.Now()
	stats, err := loader.Load(ctx, tree)
	if err != nil {
		return err
	}

	counts, err := geo.Counts(ctx, db)
	if err != nil {
		return err
	}

	fmt.Printf("Loaded in %s\n", time.Since(start).Round(time.Millisecond))
	for _, level := range geo.Path {
		fmt.Printf("  %-10s %6d written  %6d in database\n", level, stats[level], counts[level])
	}
	fmt.Printf("  %-10s %6s          %6d in database\n", geo.LevelStation, "-", counts[geo.LevelStation])
	return nil
}
