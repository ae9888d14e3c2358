package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// newJobsCmd builds `tabserve jobs` with list/get/cancel/history
// subcommands.
func newJobsCmd(client *Client, output *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs",
	}
	cmd.AddCommand(newJobsListCmd(client, output))
	cmd.AddCommand(newJobsGetCmd(client, output))
	cmd.AddCommand(newJobsCancelCmd(client, output))
	cmd.AddCommand(newJobsHistoryCmd(client, output))
	return cmd
}

func parseToken(arg string) (int64, error) {
	token, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid job token %q", arg)
	}
	return token, nil
}

func newJobsListCmd(client *Client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List live jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := client.ListJobs()
			if err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), jobs)
			}
			return printJobTable(cmd.OutOrStdout(), jobs)
		},
	}
}

func newJobsGetCmd(client *Client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <token>",
		Short: "Show one job: status, progress steps, and result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseToken(args[0])
			if err != nil {
				return err
			}
			j, err := client.GetJob(token)
			if err != nil {
				return err
			}
			return printJob(cmd.OutOrStdout(), *output, j)
		},
	}
}

func newJobsCancelCmd(client *Client, output *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <token>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := parseToken(args[0])
			if err != nil {
				return err
			}
			cancelled, err := client.CancelJob(token)
			if err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"token":     token,
					"cancelled": cancelled,
				})
			}
			if cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d cancelled\n", token)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d already finished\n", token)
			}
			return nil
		},
	}
}

func newJobsHistoryCmd(client *Client, output *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished jobs from the persistent history store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := client.History(limit)
			if err != nil {
				return err
			}
			if *output == "json" {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			return printHistoryTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to return (0 = server default)")
	return cmd
}
