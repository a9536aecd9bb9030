package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minisource/jobscheduler/internal/models"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage scheduled jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		var jobs []models.Job
		if err := apiCall("GET", "/api/v1/jobs", nil, &jobs); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS\tSCHEDULE\tNEXT RUN")
		for _, j := range jobs {
			next := "-"
			if j.NextRunAt != nil {
				next = j.NextRunAt.Format("2006-01-02T15:04:05Z07:00")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", j.ID, j.Name, j.Type, j.Status, j.Schedule, next)
		}
		return w.Flush()
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a job's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job models.Job
		if err := apiCall("GET", "/api/v1/jobs/"+args[0], nil, &job); err != nil {
			return err
		}
		return printJSON(job)
	},
}

var (
	createName         string
	createDescription  string
	createType         string
	createSchedule     string
	createEndpoint     string
	createMethod       string
	createCoalesce     bool
	createMaxRuns      int
	createMaxInstances int
)

var jobsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new job",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := models.CreateJobRequest{
			Name:         createName,
			Description:  createDescription,
			Type:         models.JobType(createType),
			Schedule:     createSchedule,
			Endpoint:     createEndpoint,
			Method:       createMethod,
			Coalesce:     createCoalesce,
			MaxInstances: createMaxInstances,
		}
		if createMaxRuns > 0 {
			req.MaxRuns = &createMaxRuns
		}

		var job models.Job
		if err := apiCall("POST", "/api/v1/jobs", req, &job); err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall("DELETE", "/api/v1/jobs/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var jobsPauseCmd = &cobra.Command{
	Use:   "pause [id]",
	Short: "Pause a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job models.Job
		if err := apiCall("POST", "/api/v1/jobs/"+args[0]+"/pause", nil, &job); err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobsResumeCmd = &cobra.Command{
	Use:   "resume [id]",
	Short: "Resume a paused job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job models.Job
		if err := apiCall("POST", "/api/v1/jobs/"+args[0]+"/resume", nil, &job); err != nil {
			return err
		}
		return printJSON(job)
	},
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger [id]",
	Short: "Fire a job immediately, outside its normal schedule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiCall("POST", "/api/v1/jobs/"+args[0]+"/trigger", nil, nil); err != nil {
			return err
		}
		fmt.Println("triggered")
		return nil
	},
}

func init() {
	jobsCreateCmd.Flags().StringVar(&createName, "name", "", "Job name (required)")
	jobsCreateCmd.Flags().StringVar(&createDescription, "description", "", "Job description")
	jobsCreateCmd.Flags().StringVar(&createType, "type", "cron", "Job type: cron, interval, one_time")
	jobsCreateCmd.Flags().StringVar(&createSchedule, "schedule", "", "Cron expression, duration, or RFC3339 time (required)")
	jobsCreateCmd.Flags().StringVar(&createEndpoint, "endpoint", "", "HTTP callback URL (required)")
	jobsCreateCmd.Flags().StringVar(&createMethod, "method", "POST", "HTTP method for the callback")
	jobsCreateCmd.Flags().BoolVar(&createCoalesce, "coalesce", true, "Collapse missed run times into a single catch-up run")
	jobsCreateCmd.Flags().IntVar(&createMaxRuns, "max-runs", 0, "Stop firing after this many runs (0 = unlimited)")
	jobsCreateCmd.Flags().IntVar(&createMaxInstances, "max-instances", 1, "Max concurrent in-flight runs of this job")
	jobsCreateCmd.MarkFlagRequired("name")
	jobsCreateCmd.MarkFlagRequired("schedule")
	jobsCreateCmd.MarkFlagRequired("endpoint")

	jobsCmd.AddCommand(jobsListCmd, jobsGetCmd, jobsCreateCmd, jobsDeleteCmd,
		jobsPauseCmd, jobsResumeCmd, jobsTriggerCmd)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
