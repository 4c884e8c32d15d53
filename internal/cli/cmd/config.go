package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/keycal/keycal/internal/cli/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			out.JSON(map[string]any{
				"path":   configPath(),
				"server": serverURL,
				"token":  maskToken(token),
				"strict": cfg.Strict,
			})
			return
		}

		out.Header("Configuration")
		out.KeyValue("Path", configPath())
		out.KeyValue("Server", serverURL)
		out.KeyValue("Token", maskToken(token))
		out.KeyValue("Strict", fmt.Sprint(cfg.Strict))
	},
}

var configSetServerCmd = &cobra.Command{
	Use:   "set-server <url>",
	Short: "Set the default calendar service URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Server = strings.TrimRight(args[0], "/")
		if err := config.Save(cfg, configPath()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		out.Success("Server set to %s", cfg.Server)
		return nil
	},
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token <token>",
	Short: "Store a bearer token for the calendar service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg.Token = strings.TrimSpace(strings.TrimPrefix(args[0], "Bearer "))
		if err := config.Save(cfg, configPath()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		out.Success("Token saved to %s", configPath())
		return nil
	},
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

func maskToken(t string) string {
	if t == "" {
		return "(not set)"
	}
	if len(t) < 16 {
		return "***"
	}
	return t[:8] + "..." + t[len(t)-4:]
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetServerCmd)
	configCmd.AddCommand(configSetTokenCmd)
	rootCmd.AddCommand(configCmd)
}
