package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"mini-rag/internal/app"
	"mini-rag/internal/models"
	"mini-rag/internal/rag"
)

func main() {
	cmd := &cli.Command{
		Name:  "indexer",
		Usage: "Index every PDF under a directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "Directory to scan for PDF files (required)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML config",
				Value:   "config.yaml",
				Sources: cli.EnvVars("MINIRAG_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with API keys",
				Value: ".env",
			},
			&cli.BoolFlag{
				Name:  "keep-going",
				Usage: "Skip PDFs without a text layer instead of stopping",
				Value: true,
			},
		},
		Action: run,
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

type stats struct {
	files    int
	skipped  int
	chunks   int
	upserted int
}

func run(ctx context.Context, cmd *cli.Command) error {
	log, err := zap.NewDevelopment()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	dir := cmd.String("dir")
	paths, err := findPDFs(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no PDF files found under %s", dir)
	}

	log.Info("found PDF files", zap.String("dir", dir), zap.Int("files", len(paths)))

	cfg, err := app.LoadConfig(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return err
	}

	var embeddingStart time.Time
	progress := func(processed, total int) {
		if processed == 1 {
			embeddingStart = time.Now()
		}
		elapsed := time.Since(embeddingStart)
		remaining := elapsed*time.Duration(total)/time.Duration(processed) - elapsed

		log.Info("embedding progress",
			zap.Int("processed", processed),
			zap.Int("total", total),
			zap.Duration("remaining", remaining.Round(time.Second)),
		)
	}

	a, err := app.New(ctx, cfg, log, app.WithProgress(progress))
	if err != nil {
		return err
	}
	defer a.Close()

	start := time.Now()
	var s stats

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		result, err := a.Service.Ingest(ctx, models.Document{
			Filename: filepath.Base(path),
			Data:     data,
		})
		if err != nil {
			if cmd.Bool("keep-going") && rag.IsRecoverable(err) {
				s.skipped++
				continue
			}
			return fmt.Errorf("%s: %w", path, err)
		}

		s.files++
		s.chunks += result.Chunks
		s.upserted += result.Upserted
	}

	log.Info("indexing completed",
		zap.Int("files", s.files),
		zap.Int("skipped", s.skipped),
		zap.Int("chunks", s.chunks),
		zap.Int("upserted", s.upserted),
		zap.Duration("elapsed", time.Since(start)),
	)

	return nil
}

// findPDFs returns the .pdf files under dir in lexical order.
func findPDFs(dir string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	return paths, nil
}
