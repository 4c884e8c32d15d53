package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/keycal/keycal/internal/cli/display"
	"github.com/keycal/keycal/internal/domain"
	"github.com/keycal/keycal/internal/generator"
	"github.com/keycal/keycal/internal/ics"
)

var (
	eventsFilter string
	eventsStrict bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Fetch a batch of calendar events",
	Long: `Fetch a freshly generated batch of events from the calendar service.
The token must carry the service's required realm role.

Examples:
  keycal events --token "$TOKEN"
  keycal events --json
  keycal events --jq '.[] | select(.title == "Code review") | .time'
  keycal events --strict`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}

		events, err := getClient(eventsStrict).FetchEvents(cmd.Context(), token)
		if err != nil {
			return err
		}
		return printEvents(events)
	},
}

var (
	icsOutputFile string
)

var icsCmd = &cobra.Command{
	Use:   "ics",
	Short: "Export a batch as iCalendar",
	Long: `Fetch a batch from the calendar service in iCalendar format.

Examples:
  keycal ics > events.ics
  keycal ics -o events.ics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}

		data, err := getClient(false).FetchICS(cmd.Context(), token)
		if err != nil {
			return err
		}

		if icsOutputFile == "" {
			_, err = out.Writer().Write(data)
			return err
		}
		if err := os.WriteFile(icsOutputFile, data, 0644); err != nil {
			return fmt.Errorf("write %s: %w", icsOutputFile, err)
		}
		out.Success("Wrote %s", icsOutputFile)
		return nil
	},
}

var (
	generateSeed   uint64
	generateFormat string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a batch locally without a server",
	Long: `Run the calendar generator in-process. A non-zero --seed makes the
batch reproducible.

Examples:
  keycal generate
  keycal generate --seed 42 --json
  keycal generate --format ics > events.ics`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateFormat == "ics" && eventsFilter != "" {
			return fmt.Errorf("--jq cannot be combined with --format ics")
		}

		events, err := generator.New(generator.NewRand(generateSeed)).Generate()
		if err != nil {
			return err
		}

		switch generateFormat {
		case "ics":
			return ics.Export(out.Writer(), events, time.Now())
		case "", "table":
			return printEvents(events)
		default:
			return fmt.Errorf("unknown format %q (want table or ics)", generateFormat)
		}
	},
}

func printEvents(events []domain.Event) error {
	if eventsFilter != "" {
		code, err := compileJqFilter(eventsFilter)
		if err != nil {
			return fmt.Errorf("invalid jq filter: %w", err)
		}
		results, err := applyJqFilter(code, events)
		if err != nil {
			return err
		}
		for _, r := range results {
			out.JSON(r)
		}
		return nil
	}

	if jsonOutput {
		out.JSON(events)
		return nil
	}

	if len(events) == 0 {
		out.Info("No events")
		return nil
	}
	return display.RenderEvents(out.Writer(), events, time.Now(), out.Colorizer())
}

func init() {
	eventsCmd.Flags().StringVar(&eventsFilter, "jq", "", "jq filter applied to the event list")
	eventsCmd.Flags().BoolVar(&eventsStrict, "strict", false, "validate the response against the event schema")

	icsCmd.Flags().StringVarP(&icsOutputFile, "output", "o", "", "write to file instead of stdout")

	generateCmd.Flags().Uint64Var(&generateSeed, "seed", 0, "random seed (0 = non-deterministic)")
	generateCmd.Flags().StringVar(&generateFormat, "format", "table", "output format: table or ics")
	generateCmd.Flags().StringVar(&eventsFilter, "jq", "", "jq filter applied to the event list")

	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(icsCmd)
	rootCmd.AddCommand(generateCmd)
}
