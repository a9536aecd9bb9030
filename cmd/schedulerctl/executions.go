package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minisource/jobscheduler/internal/models"
)

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "Inspect job execution history",
}

var executionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var executions []models.JobExecution
		if err := apiCall("GET", "/api/v1/executions", nil, &executions); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tJOB ID\tSTATUS\tSCHEDULED\tSTARTED\tDURATION(ms)")
		for _, e := range executions {
			started := "-"
			if e.StartedAt != nil {
				started = e.StartedAt.Format("2006-01-02T15:04:05Z07:00")
			}
			duration := "-"
			if e.DurationMs != nil {
				duration = fmt.Sprintf("%d", *e.DurationMs)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.ID, e.JobID, e.Status,
				e.ScheduledAt.Format("2006-01-02T15:04:05Z07:00"),
				started, duration)
		}
		return w.Flush()
	},
}

var executionsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show an execution's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var execution models.JobExecution
		if err := apiCall("GET", "/api/v1/executions/"+args[0], nil, &execution); err != nil {
			return err
		}
		return printJSON(execution)
	},
}

func init() {
	executionsCmd.AddCommand(executionsListCmd, executionsGetCmd)
}
