package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

var runHeaders = []string{"ID", "FLOW_ID", "STATUS", "TRIGGERED_BY", "STARTED", "FINISHED"}

func runRow(r RunResponse) []string {
	return []string{r.ID, r.FlowID, r.Status, r.TriggeredBy, r.StartedAt, r.FinishedAt}
}

// NewRunCmd создаёт группу команд для просмотра runs.
// Запуск — это flow execute; здесь только история.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect flow runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunTraceCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flowID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOptions{
				FlowID: flowID,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = runRow(r)
			}

			out.Print(runHeaders, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&flowID, "flow-id", "", "Filter by flow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of runs")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details with execution trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(runHeaders, [][]string{runRow(*run)}, run)
			return nil
		},
	}
}

func newRunTraceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "trace RUN_ID",
		Short: "Show per-node execution records of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			records, err := client.ListRunRecords(args[0])
			if err != nil {
				return err
			}

			headers := []string{"NODE", "NAME", "KIND", "STATUS", "DURATION_MS", "ERROR"}
			rows := make([][]string, len(records))
			for i, rec := range records {
				rows[i] = []string{
					rec.NodeID,
					rec.NodeName,
					rec.NodeKind,
					rec.Status,
					strconv.FormatInt(rec.DurationMs, 10),
					rec.Error,
				}
			}

			out.Print(headers, rows, records)
			return nil
		},
	}
}
