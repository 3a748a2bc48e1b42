// Package main is the entry point for the wsapi-fetch CLI.
//
// Usage:
//
//	wsapi-fetch query defect --query "(State = Open)" --fetch FormattedID,Name
//	wsapi-fetch token                  # Acquire and print a security token
//	wsapi-fetch login --api-key _abc   # Store an API key in the OS keychain
//	wsapi-fetch logout                 # Remove the stored API key
//	wsapi-fetch serve --addr :8080     # HTTP query endpoint with /metrics
//	wsapi-fetch version                # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/Sternrassler/rally-wsapi-client/internal/credentials"
	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// EnvKeyringPassword unlocks the file keyring backend when --keyring-dir is used.
const EnvKeyringPassword = "WSAPI_KEYRING_PASSWORD"

// rootOptions carries persistent flags and the process dependencies the
// subcommands use.
type rootOptions struct {
	configPath string
	logLevel   string
	debug      bool
	workers    string
	keyringDir string

	getenv    func(string) string
	openStore func() (*credentials.Store, error)
}

func defaultOptions() *rootOptions {
	opts := &rootOptions{getenv: os.Getenv}
	opts.openStore = func() (*credentials.Store, error) {
		return credentials.Open(opts.keyringDir, opts.getenv(EnvKeyringPassword))
	}
	return opts
}

// newRootCmd builds the command tree. Without a subcommand it shows help.
func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:   "wsapi-fetch",
		Short: "Query a Rally WSAPI server with parallel paging",
		Long: `wsapi-fetch runs WSAPI queries and fetches every page of the result
in parallel (1 to 4 workers), printing the merged QueryResult as JSON.

Configuration is read from an optional YAML file and WSAPI_* environment
variables. An API key stored with "wsapi-fetch login" is used when neither
an API key nor a username is configured.

Example config:
  base_url: https://rally1.rallydev.com/slm/webservice/v2.0
  workers: 4
  page_size: 200
  integration:
    name: wsapi-fetch`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "trace every WSAPI request")
	root.PersistentFlags().StringVarP(&opts.workers, "workers", "w", "", "parallel page workers (1-4)")
	root.PersistentFlags().StringVar(&opts.keyringDir, "keyring-dir", "", "use an encrypted file keyring in this directory")

	root.AddCommand(
		newQueryCmd(opts),
		newTokenCmd(opts),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// newVersionCmd prints version information.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "wsapi-fetch %s\n", version)
			fmt.Fprintf(out, "  commit: %s\n", commit)
			fmt.Fprintf(out, "  built:  %s\n", date)
		},
	}
}

func main() {
	if err := newRootCmd(defaultOptions()).Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}
