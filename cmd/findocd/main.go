package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"findoc/internal/api"
	"findoc/internal/config"
	"findoc/internal/finance"
	"findoc/internal/llm"
	"findoc/internal/memory"
	"findoc/internal/store"
	"findoc/internal/tasklog"
)

func main() {
	// Load env
	_ = godotenv.Load(".env")

	cfg := config.FromEnv()

	// Refuse to start without the upstream API keys — every request would fail.
	if missing := config.MissingEnv(); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "findocd: missing required environment variables: %s\n", strings.Join(missing, ", "))
		fmt.Fprintln(os.Stderr, "Set them in the environment or a .env file:")
		for _, v := range missing {
			fmt.Fprintf(os.Stderr, "  %s=your_api_key_here\n", v)
		}
		os.Exit(1)
	}

	// Scratch directory for uploads
	st, err := store.New(cfg.DataRoot)
	if err != nil {
		log.Fatalf("findocd: %v", err)
	}

	// Episodic memory for the analyst agent
	mem, err := memory.Open(filepath.Join(cfg.CacheDir, "memory"))
	if err != nil {
		log.Fatalf("findocd: %v", err)
	}

	// Per-analysis JSONL logs
	logs := tasklog.NewRegistry(filepath.Join(cfg.CacheDir, "tasklogs"))

	// LLM client — shared by every agent in every crew
	svc := finance.NewService(llm.New(), mem, logs)

	// Context with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("findocd: shutting down")
		cancel()
	}()

	go mem.Run(ctx)

	srv := api.NewServer(cfg, st, svc)
	log.Printf("findocd listening on %s (data root %s)", cfg.Addr, cfg.DataRoot)
	err = srv.Start(ctx)

	// Give the memory goroutine a moment to drain pending writes.
	// The queue is small; this is bounded to a few milliseconds in practice.
	cancel()
	time.Sleep(200 * time.Millisecond)

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("findocd: %v", err)
	}
}
