package cmd

import (
	"fmt"
	"os"

	"github.com/nxadm/tail"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print the winnow log file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		follow, _ := cmd.Flags().GetBool("follow")

		path := cfg.LogPath()
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no log file at %s", path)
		}
		t, err := tail.TailFile(path, tail.Config{
			Follow: follow,
			ReOpen: follow,
			Logger: tail.DiscardingLogger,
		})
		if err != nil {
			return fmt.Errorf("tail %s: %w", path, err)
		}
		defer t.Cleanup()

		if follow {
			go func() {
				<-cmd.Context().Done()
				_ = t.Stop()
			}()
		}
		for line := range t.Lines {
			if line.Err != nil {
				return line.Err
			}
			fmt.Fprintln(cmd.OutOrStdout(), line.Text)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().BoolP("follow", "f", false, "Follow the log output")
	rootCmd.AddCommand(logsCmd)
}
