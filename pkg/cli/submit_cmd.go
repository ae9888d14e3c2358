package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"tabserve/internal/domain"
)

var submitKinds = []string{"discover", "infer_schema", "preview", "query", "analyze"}

func validSubmitKind(kind string) bool {
	for _, k := range submitKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// newSubmitCmd builds `tabserve submit <kind>`: post job parameters and
// optionally poll until the job reaches a terminal state.
func newSubmitCmd(client *Client, output *string) *cobra.Command {
	var (
		paramsJSON string
		paramsFile string
		wait       bool
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "submit <kind>",
		Short: "Submit a job (discover, infer_schema, preview, query, analyze)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if !validSubmitKind(kind) {
				return fmt.Errorf("unknown job kind %q: valid kinds are %v", kind, submitKinds)
			}

			params, err := readParams(paramsJSON, paramsFile, cmd.InOrStdin())
			if err != nil {
				return err
			}

			accepted, err := client.Submit(kind, params)
			if err != nil {
				return err
			}

			if !wait {
				if *output == "json" {
					return printJSON(cmd.OutOrStdout(), accepted)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d submitted (%s)\n", accepted.Token, accepted.Status)
				return nil
			}

			j, err := pollUntilTerminal(client, accepted.Token, interval)
			if err != nil {
				return err
			}
			return printJob(cmd.OutOrStdout(), *output, j)
		},
	}

	cmd.Flags().StringVar(&paramsJSON, "params", "", "Job parameters as a JSON object")
	cmd.Flags().StringVarP(&paramsFile, "params-file", "f", "", "Read job parameters from a JSON file (- for stdin)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the job finishes and print the result")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Poll interval used with --wait")

	return cmd
}

// readParams resolves the parameter payload from --params, --params-file,
// or an empty object when neither is given.
func readParams(inline, file string, stdin io.Reader) (map[string]interface{}, error) {
	var raw []byte
	switch {
	case inline != "" && file != "":
		return nil, fmt.Errorf("--params and --params-file are mutually exclusive")
	case inline != "":
		raw = []byte(inline)
	case file == "-":
		var err error
		raw, err = io.ReadAll(stdin)
		if err != nil {
			return nil, err
		}
	case file != "":
		var err error
		raw, err = os.ReadFile(file)
		if err != nil {
			return nil, err
		}
	default:
		raw = []byte("{}")
	}

	var params map[string]interface{}
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("invalid params JSON: %w", err)
	}
	return params, nil
}

func pollUntilTerminal(client *Client, token int64, interval time.Duration) (*domain.Job, error) {
	for {
		j, err := client.GetJob(token)
		if err != nil {
			return nil, err
		}
		if j.Terminal() {
			return j, nil
		}
		time.Sleep(interval)
	}
}
