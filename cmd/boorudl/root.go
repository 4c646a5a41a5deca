package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"boorudl/pkg/sites"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd runs the grab pipeline; management commands hang off it.
var rootCmd = &cobra.Command{
	Use:   "boorudl [flags] tag...",
	Short: "A tag-based imageboard media downloader",
	Long: `boorudl downloads every file matching a tag query from an imageboard.

Supported sources: danbooru, e621, gelbooru, rule34, realbooru, konachan.

Features:
  - Concurrent downloads with configurable limits
  - Three-tier tag blacklist (global, per-source, account)
  - Incremental runs that skip everything already downloaded
  - Optional single-archive (.cbz) output
  - Cached credentials with system keyring support`,
	Version: sites.Version,
	Example: `  # Download posts tagged both "cat_ears" and "maid" from danbooru
  boorudl -s danbooru cat_ears maid

  # Same query as a single archive, safe-rated posts only
  boorudl -s danbooru --cbz --safe-mode cat_ears maid

  # Fetch only what is new since the last run
  boorudl -s e621 -u wolf`,
	Args: cobra.ArbitraryArgs,
	RunE: runGrab,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ~/.config/boorudl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`boorudl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
