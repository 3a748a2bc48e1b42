package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newLoginCmd stores an API key in the keychain.
func newLoginCmd(root *rootOptions) *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API key in the OS keychain",
		Long: `Store a WSAPI API key in the OS keychain. Without --api-key the key is
read from the first line of standard input.

Examples:
  wsapi-fetch login --api-key _abc123
  echo _abc123 | wsapi-fetch login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(apiKey)
			if key == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no API key given: use --api-key or pipe it on stdin")
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("API key must not be empty")
			}

			store, err := root.openStore()
			if err != nil {
				return err
			}
			if err := store.SetAPIKey(key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key stored")
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key to store")
	return cmd
}

// newLogoutCmd removes the stored API key.
func newLogoutCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := root.openStore()
			if err != nil {
				return err
			}
			if err := store.DeleteAPIKey(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed")
			return nil
		},
	}
}
