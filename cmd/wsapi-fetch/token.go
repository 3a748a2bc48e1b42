package main

import (
	"fmt"

	"github.com/Sternrassler/rally-wsapi-client/pkg/client"
	"github.com/spf13/cobra"
)

// newTokenCmd acquires a security token and prints it.
func newTokenCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Acquire a security token",
		Long: `Request a security token from the server's security/authorize endpoint
and print it. Servers without that endpoint (HTTP 404 or 500) are reported
as not supporting tokens, which is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.conn.AcquireSecurityToken(cmd.Context(), client.SecurityURL(a.cfg.BaseURL))
			if err != nil {
				return err
			}
			if token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "security tokens not supported by this server")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
