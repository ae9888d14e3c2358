// Package cli implements the tabserve command-line client.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host    string
		token   string
		output  string
		profile string
	)

	rootCmd := &cobra.Command{
		Use:           "tabserve",
		Short:         "Tabular job service CLI",
		Long:          "Command-line interface for the tabular data job service API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "API host URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Bearer token for authentication")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")

	client := NewClient(host, token)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		// Load profile config; the file is optional.
		cfg, err := LoadUserConfig()
		if err != nil {
			cfg = &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
		}
		p := cfg.ActiveProfile(profile)

		// Precedence: flag > env > profile > default.
		if !cmd.Flags().Changed("host") {
			if v := os.Getenv("TABSERVE_HOST"); v != "" {
				host = v
			} else if p.Host != "" {
				host = p.Host
			}
		}
		if !cmd.Flags().Changed("token") {
			if v := os.Getenv("TABSERVE_TOKEN"); v != "" {
				token = v
			} else if p.Token != "" {
				token = p.Token
			}
		}
		if !cmd.Flags().Changed("output") {
			if v := os.Getenv("TABSERVE_OUTPUT"); v != "" {
				output = v
			} else if p.Output != "" {
				output = p.Output
			}
		}
		if output != "table" && output != "json" {
			return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
		}

		client.BaseURL = host
		client.Token = token
		return nil
	}

	rootCmd.AddCommand(newSubmitCmd(client, &output))
	rootCmd.AddCommand(newJobsCmd(client, &output))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tabserve %s (%s)\n", version, commit)
		},
	}
}
