package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"tabserve/internal/domain"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJob(w io.Writer, output string, j *domain.Job) error {
	if output == "json" {
		return printJSON(w, j)
	}

	fmt.Fprintf(w, "Job %d  %s  %s\n", j.Token, j.Kind, j.Status)
	for _, step := range j.Steps {
		if step.DurationMS != nil {
			fmt.Fprintf(w, "  %d. %s (%dms)\n", step.Step, step.Message, *step.DurationMS)
		} else {
			fmt.Fprintf(w, "  %d. %s\n", step.Step, step.Message)
		}
	}
	if j.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", j.Error)
	}
	if len(j.Result) > 0 {
		fmt.Fprintln(w, "Result:")
		var pretty interface{}
		if err := json.Unmarshal(j.Result, &pretty); err == nil {
			return printJSON(w, pretty)
		}
		fmt.Fprintln(w, string(j.Result))
	}
	return nil
}

func printJobTable(w io.Writer, jobs []domain.Job) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tKIND\tSTATUS\tCREATED\tSTEPS")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n",
			j.Token, j.Kind, j.Status, j.CreatedAt.Format(time.RFC3339), len(j.Steps))
	}
	return tw.Flush()
}

func printHistoryTable(w io.Writer, entries []domain.JobHistoryEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tKIND\tSTATUS\tFINISHED\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.Token, e.Kind, e.Status, e.FinishedAt.Format(time.RFC3339), e.Error)
	}
	return tw.Flush()
}
