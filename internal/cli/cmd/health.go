package cmd

import (
	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Long:  `Check the liveness and readiness of the calendar service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getClient(false)

		health, err := c.Health(cmd.Context())
		if err != nil {
			if jsonOutput {
				out.JSON(map[string]any{
					"status": "error",
					"error":  err.Error(),
				})
			} else {
				out.Error("Server unreachable: %v", err)
			}
			return err
		}

		readyErr := c.Ready(cmd.Context())

		if jsonOutput {
			result := map[string]any{"status": health.Status, "ready": readyErr == nil}
			if readyErr != nil {
				result["error"] = readyErr.Error()
			}
			out.JSON(result)
			return readyErr
		}

		out.Success("Server is healthy")
		out.KeyValue("Server", c.ServerURL())
		out.KeyValue("Status", health.Status)
		if readyErr != nil {
			out.Warn("Server is not ready: %v", readyErr)
			return readyErr
		}
		out.KeyValue("Ready", "yes")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
