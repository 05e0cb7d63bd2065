package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// scanJob mirrors the API's scan job representation.
type scanJob struct {
	ID                 string          `json:"id"`
	TargetID           int             `json:"target_id"`
	JobType            string          `json:"job_type"`
	Priority           string          `json:"priority"`
	Status             string          `json:"status"`
	ProgressPercentage int             `json:"progress_percentage"`
	CurrentActivity    string          `json:"current_activity,omitempty"`
	Results            json.RawMessage `json:"results,omitempty"`
	ErrorMessage       string          `json:"error_message,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type jobList struct {
	Data  []scanJob `json:"data"`
	Total int64     `json:"total"`
}

var (
	flagJobType  string
	flagUserID   string
	flagPriority string
	flagConfig   string
	flagWatch    bool
	flagStatus   string
	flagTargetID int
)

var submitCmd = &cobra.Command{
	Use:   "submit TARGET_ID",
	Short: "Submit a scan job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetID, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid target id %q", args[0])
		}
		if flagOrgID == "" {
			return fmt.Errorf("organization required: set --org or RECONFORGE_ORG_ID")
		}
		if flagUserID == "" {
			flagUserID = os.Getenv("RECONFORGE_USER_ID")
		}
		if flagUserID == "" {
			return fmt.Errorf("user required: set --user or RECONFORGE_USER_ID")
		}

		body := map[string]any{
			"target_id":       targetID,
			"organization_id": flagOrgID,
			"created_by":      flagUserID,
			"job_type":        flagJobType,
			"priority":        flagPriority,
		}
		if flagConfig != "" {
			raw, err := os.ReadFile(flagConfig)
			if err != nil {
				return fmt.Errorf("read config: %w", err)
			}
			body["config"] = json.RawMessage(raw)
		}

		var job scanJob
		if err := newClient().post("/api/v1/scan-jobs", body, &job); err != nil {
			return err
		}

		if flagWatch {
			return watchJob(cmd, job.ID)
		}
		return printJob(cmd, job)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status JOB_ID",
	Short: "Show a scan job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagWatch {
			return watchJob(cmd, args[0])
		}
		var job scanJob
		if err := newClient().get("/api/v1/scan-jobs/"+args[0], nil, &job); err != nil {
			return err
		}
		return printJob(cmd, job)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := url.Values{}
		if flagOrgID != "" {
			query.Set("organization_id", flagOrgID)
		}
		if flagStatus != "" {
			query.Set("status", flagStatus)
		}
		if flagJobType != "" {
			query.Set("job_type", flagJobType)
		}
		if flagTargetID > 0 {
			query.Set("target_id", strconv.Itoa(flagTargetID))
		}

		var list jobList
		if err := newClient().get("/api/v1/scan-jobs", query, &list); err != nil {
			return err
		}

		if flagOutput == "json" {
			return printJSON(cmd, list)
		}
		tw := newTabWriter(cmd)
		fmt.Fprintln(tw, "ID\tTARGET\tTYPE\tPRIORITY\tSTATUS\tPROGRESS\tCREATED")
		for _, job := range list.Data {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d%%\t%s\n",
				job.ID, job.TargetID, job.JobType, job.Priority,
				job.Status, job.ProgressPercentage,
				job.CreatedAt.Local().Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop JOB_ID",
	Short: "Stop a pending or running scan job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var job scanJob
		if err := newClient().post("/api/v1/scan-jobs/"+args[0]+"/stop", nil, &job); err != nil {
			return err
		}
		cmd.Printf("stop requested for %s (status: %s)\n", job.ID, job.Status)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagOrgID == "" {
			return fmt.Errorf("organization required: set --org or RECONFORGE_ORG_ID")
		}
		query := url.Values{"organization_id": {flagOrgID}}

		var stats struct {
			Total     int64 `json:"total"`
			Pending   int64 `json:"pending"`
			Running   int64 `json:"running"`
			Completed int64 `json:"completed"`
			Failed    int64 `json:"failed"`
			Cancelled int64 `json:"cancelled"`
		}
		if err := newClient().get("/api/v1/scan-jobs/stats", query, &stats); err != nil {
			return err
		}

		if flagOutput == "json" {
			return printJSON(cmd, stats)
		}
		tw := newTabWriter(cmd)
		fmt.Fprintln(tw, "TOTAL\tPENDING\tRUNNING\tCOMPLETED\tFAILED\tCANCELLED")
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n",
			stats.Total, stats.Pending, stats.Running,
			stats.Completed, stats.Failed, stats.Cancelled)
		return tw.Flush()
	},
}

func watchJob(cmd *cobra.Command, id string) error {
	client := newClient()
	for {
		var job scanJob
		if err := client.get("/api/v1/scan-jobs/"+id, nil, &job); err != nil {
			return err
		}
		activity := job.CurrentActivity
		if activity == "" {
			activity = "-"
		}
		cmd.Printf("%s  %3d%%  %s\n", job.Status, job.ProgressPercentage, activity)

		switch job.Status {
		case "completed", "failed", "cancelled":
			return printJob(cmd, job)
		}
		time.Sleep(2 * time.Second)
	}
}

func printJob(cmd *cobra.Command, job scanJob) error {
	if flagOutput == "json" {
		return printJSON(cmd, job)
	}
	cmd.Printf("ID:        %s\n", job.ID)
	cmd.Printf("Target:    %d\n", job.TargetID)
	cmd.Printf("Type:      %s\n", job.JobType)
	cmd.Printf("Priority:  %s\n", job.Priority)
	cmd.Printf("Status:    %s\n", job.Status)
	cmd.Printf("Progress:  %d%%\n", job.ProgressPercentage)
	if job.ErrorMessage != "" {
		cmd.Printf("Error:     %s\n", job.ErrorMessage)
	}
	if len(job.Results) > 0 {
		cmd.Println("Results:")
		var pretty map[string]any
		if err := json.Unmarshal(job.Results, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "  ", "  ")
			cmd.Println("  " + string(out))
		}
	}
	return nil
}

func init() {
	submitCmd.Flags().StringVarP(&flagJobType, "type", "t", "subdomain_scan", "Job type")
	submitCmd.Flags().StringVar(&flagUserID, "user", "", "Submitting user ID (env: RECONFORGE_USER_ID)")
	submitCmd.Flags().StringVarP(&flagPriority, "priority", "p", "", "Priority: low, medium, high, urgent")
	submitCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a JSON config file")
	submitCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Watch until the job finishes")

	statusCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Watch until the job finishes")

	listCmd.Flags().StringVar(&flagStatus, "status", "", "Filter by status")
	listCmd.Flags().StringVarP(&flagJobType, "type", "t", "", "Filter by job type")
	listCmd.Flags().IntVar(&flagTargetID, "target", 0, "Filter by target ID")
}
