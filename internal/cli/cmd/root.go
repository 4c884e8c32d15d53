package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/keycal/keycal/internal/cli/config"
	"github.com/keycal/keycal/internal/cli/display"
	"github.com/keycal/keycal/internal/cli/output"
	"github.com/keycal/keycal/pkg/client"
)

var (
	cfgFile    string
	serverURL  string
	token      string
	jsonOutput bool
	noColor    bool
	cfg        *config.Config
	out        *output.Output
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "keycal",
	Short: "CLI for the keycal calendar service",
	Long: `keycal talks to the calendar service: it fetches event batches with a
bearer token, exports them as iCalendar and inspects tokens.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		out = output.NewTo(cmd.OutOrStdout(), cmd.ErrOrStderr(), jsonOutput,
			display.NewColorizer(!noColor && display.ColorEnabled()))

		// Load config (ignore errors for commands that don't need it)
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			cfg = &config.Config{}
		}

		// Server URL priority: flag > config > default
		if serverURL == "" && cfg.Server != "" {
			serverURL = cfg.Server
		}
		if serverURL == "" {
			serverURL = client.DefaultServer
		}

		// Token priority: flag > KEYCAL_TOKEN > config
		if token == "" {
			token = os.Getenv("KEYCAL_TOKEN")
		}
		if token == "" {
			token = cfg.Token
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.keycal/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "calendar service URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (or KEYCAL_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// getClient creates a client with current config.
func getClient(strict bool) *client.Client {
	opts := []client.Option{client.WithServer(serverURL)}
	if strict || cfg.Strict {
		opts = append(opts, client.WithSchemaValidation())
	}
	return client.New(opts...)
}

func requireToken() error {
	if token == "" {
		return fmt.Errorf("no token configured: pass --token, set KEYCAL_TOKEN or run 'keycal config set-token'")
	}
	return nil
}
