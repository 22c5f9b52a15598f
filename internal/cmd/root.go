// Package cmd implements the winnow command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"

	"github.com/winnowlabs/winnow/internal/config"
	"github.com/winnowlabs/winnow/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "winnow",
	Short: "Keep agent conversations inside their context budget",
	Long: heredoc.Doc(`
		Winnow estimates the size of LLM agent conversation histories and
		keeps them inside the model's context window. At turn boundaries it
		compacts history by evicting the oldest chunks; in flight it trims
		and, under pressure, clears large tool results while protecting the
		newest assistant turns.
	`),
	Example: heredoc.Doc(`
		# Replay a recorded session through the engine and print a report
		winnow replay session.json

		# Show the merged configuration
		winnow config show

		# Follow the log file
		winnow logs --follow
	`),
	SilenceUsage: true,
}

// RootCmd returns the assembled command tree.
func RootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringP("cwd", "c", "", "Working directory for config discovery")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
}

func resolveCwd(cmd *cobra.Command) (string, error) {
	cwd, _ := cmd.Flags().GetString("cwd")
	if cwd != "" {
		return cwd, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve working directory: %w", err)
	}
	return cwd, nil
}

// loadConfig resolves the working directory, loads the layered config, and
// wires the process logger. Every subcommand that needs settings goes
// through here.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cwd, err := resolveCwd(cmd)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if debug {
		if cfg.Options == nil {
			cfg.Options = &config.Options{}
		}
		cfg.Options.Debug = true
	}
	log.Setup(cfg.LogPath(), cfg.Debug())
	return cfg, nil
}
