package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var tokenInfoCmd = &cobra.Command{
	Use:   "token-info",
	Short: "Show how the service sees a token",
	Long: `Ask the calendar service to verify the configured token and describe
its subject, roles and expiry. Works without the required role.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}

		info, err := getClient(false).TokenInfo(cmd.Context(), token)
		if err != nil {
			return err
		}

		if jsonOutput {
			out.JSON(info)
			return nil
		}

		if !info.Active {
			out.Warn("Token is not active")
			return nil
		}

		out.Header("Token")
		out.KeyValue("Subject", info.Subject)
		if info.Username != "" {
			out.KeyValue("Username", info.Username)
		}
		if info.Email != "" {
			out.KeyValue("Email", info.Email)
		}
		out.KeyValue("Roles", strings.Join(info.Roles, ", "))
		if !info.Expiry.IsZero() {
			out.KeyValue("Expires", info.Expiry.Local().Format(time.RFC1123)+" ("+time.Until(info.Expiry).Round(time.Second).String()+")")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenInfoCmd)
}
