package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maax3v3/colorfill"
	"github.com/maax3v3/colorfill/internal/cli"
	"github.com/maax3v3/colorfill/internal/pipeline"
	"github.com/maax3v3/colorfill/internal/server"
)

func main() {
	cfg, err := cli.Parse(os.Args[1:], os.Stderr)
	if errors.Is(err, cli.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Command {
	case cli.CommandFill:
		if _, err := pipeline.Run(ctx, cfg, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case cli.CommandServe:
		scfg := server.DefaultConfig()
		scfg.Session = colorfill.Options{
			UndoLimit: cfg.UndoLimit,
			RedoLimit: cfg.RedoLimit,
			Normalize: cfg.Normalize,
		}
		scfg.MaxUploadBytes = int64(cfg.MaxUploadMB) << 20

		srv := server.New(scfg)
		if err := srv.ListenAndServe(ctx, cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}
