package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/winnowlabs/winnow/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit winnow configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Print one value from the merged configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := json.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		res := gjson.GetBytes(data, args[0])
		if !res.Exists() {
			return fmt.Errorf("no value at %q", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), res.String())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set one value in the project configuration file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}
		path := filepath.Join(cwd, "winnow.json")
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			data = []byte("{}")
		} else if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}

		// Values that parse as JSON are stored typed; everything else is a
		// string.
		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}
		updated, err := sjson.SetBytes(data, args[0], value)
		if err != nil {
			return fmt.Errorf("set %q: %w", args[0], err)
		}
		if err := os.WriteFile(path, updated, 0o644); err != nil {
			return fmt.Errorf("write config %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configPathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Print configuration file paths in precedence order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cwd, err := resolveCwd(cmd)
		if err != nil {
			return err
		}
		for _, p := range config.ConfigPaths(cwd) {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configPathsCmd)
	rootCmd.AddCommand(configCmd)
}
