package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"mini-rag/internal/app"
	"mini-rag/internal/models"
	"mini-rag/internal/tui"

	httpT "mini-rag/internal/transport/http"
)

func main() {
	cmd := &cli.Command{
		Name:  "minirag",
		Usage: "Ask questions about your PDFs",
		Flags: []cli.Flag{
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
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the web UI and HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "http-addr",
						Usage:   "HTTP server address, overrides the config",
						Sources: cli.EnvVars("MINIRAG_HTTP_ADDR"),
					},
				},
				Action: serve,
			},
			{
				Name:      "ingest",
				Usage:     "Index one or more PDF files",
				ArgsUsage: "FILE...",
				Action:    ingest,
			},
			{
				Name:  "ask",
				Usage: "Answer a single question",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "question",
						Aliases:  []string{"q"},
						Usage:    "Question to answer",
						Required: true,
					},
				},
				Action: ask,
			},
			{
				Name:  "tui",
				Usage: "Interactive terminal session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "log-file",
						Usage: "Where to write logs while the terminal UI is running",
						Value: "minirag.log",
					},
				},
				Action: runTUI,
			},
		},
	}

	err := cmd.Run(context.Background(), os.Args)
	if err != nil {
		log.Fatal(err.Error())
	}
}

func bootstrap(ctx context.Context, cmd *cli.Command, log *zap.Logger) (*app.App, error) {
	cfg, err := app.LoadConfig(cmd.String("config"), cmd.String("env-file"))
	if err != nil {
		return nil, err
	}

	return app.New(ctx, cfg, log)
}

func newLogger() (*zap.Logger, error) {
	log, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(log)
	return log, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := bootstrap(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cmd.String("http-addr")
	if addr == "" {
		addr = a.Config.HTTP.Addr
	}

	r := gin.Default()
	httpT.AddRouters(r, a.Endpoints, int64(a.Config.HTTP.MaxUploadMB)<<20)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sign := <-quit

	log.Info("graceful shutdown", zap.String("signal", sign.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func ingest(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return errors.New("at least one PDF file is required")
	}

	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := bootstrap(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

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
			return fmt.Errorf("%s: %w", path, err)
		}

		fmt.Printf("%s: %d chunks, %d records upserted in %s\n",
			result.Source, result.Chunks, result.Upserted, result.Elapsed.Round(time.Millisecond))
	}

	return nil
}

func ask(ctx context.Context, cmd *cli.Command) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := bootstrap(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Service.Ask(ctx, cmd.String("question"))
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)

	if len(answer.Sources) > 0 {
		fmt.Println()
		fmt.Println("Reranked Sources:")
		for i, src := range answer.Sources {
			fmt.Printf("[%d] %s chunk %d (score %.3f)\n", i+1, src.Source, src.ChunkID, src.RelevanceScore)
		}
	}

	fmt.Printf("\nAnswered in %s\n", answer.Elapsed.Round(time.Millisecond))
	return nil
}

func runTUI(ctx context.Context, cmd *cli.Command) error {
	zcfg := zap.NewDevelopmentConfig()
	zcfg.OutputPaths = []string{cmd.String("log-file")}
	zcfg.ErrorOutputPaths = []string{cmd.String("log-file")}

	log, err := zcfg.Build()
	if err != nil {
		return err
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)

	a, err := bootstrap(ctx, cmd, log)
	if err != nil {
		return err
	}
	defer a.Close()

	p := tea.NewProgram(tui.New(ctx, a.Service), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
