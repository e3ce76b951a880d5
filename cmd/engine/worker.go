package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"matscout-engine/internal/config"
	"matscout-engine/internal/worker"
)

// The worker command is how the host re-invokes this binary for one run.
// It is hidden because users never start it by hand: the run row must
// already be claimed, and progress goes to stdout as JSON lines.
func buildWorkerCommand() *cobra.Command {
	var runID, cfgPath string
	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Execute one claimed curation run and exit",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return errors.New("--run-id is required")
			}
			return runWorker(runID, cfgPath)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "id of the claimed run to execute")
	cmd.Flags().StringVar(&cfgPath, "config", "", "user config path")
	return cmd
}

func runWorker(runID, cfgPath string) error {
	dataDir := resolveDataDir()

	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config load failed (%s): %w", cfgPath, err)
		}
	} else {
		config.ApplyEnv(&cfg)
	}
	if err := config.OverlayInstructors(&cfg, filepath.Join(dataDir, "instructors.yml")); err != nil {
		log.Printf("[config] instructors overlay: %v", err)
	}
	cfg.App.DataDir = dataDir

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Progress protocol owns stdout; logs stay on stderr.
	return worker.RunChild(ctx, cfg, runID, os.Stdout)
}
