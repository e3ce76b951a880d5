package main

import (
	"os"

	"github.com/spf13/cobra"
)

var dataDirFlag string

func buildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:          "matscout-engine",
		Short:        "MatScout curation engine: finds and scores BJJ instructionals",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "",
		"engine data directory (default $MATSCOUT_DATA_DIR, else ./data)")

	root.AddCommand(
		buildServeCommand(),
		buildWorkerCommand(),
		buildSecretCommand(),
	)
	return root
}

// resolveDataDir picks the engine data dir: flag, then env (the desktop
// shell passes one), then a local folder.
func resolveDataDir() string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if v := os.Getenv("MATSCOUT_DATA_DIR"); v != "" {
		return v
	}
	return "data"
}
