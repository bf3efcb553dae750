package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/terradash/terradash/internal/config"
	"github.com/terradash/terradash/pkg/jobstore"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect provisioning jobs",
	Long: `Inspect job records created through the dashboard API.

This command group is designed to be script-friendly:

- stable job ids
- predictable on-disk locations
- optional JSON output for machine parsing`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioning jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job_id>",
	Short: "Show status for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsLogsCmd = &cobra.Command{
	Use:   "logs <job_id>",
	Short: "Show logs for a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsLogs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsLogsCmd)

	jobsListCmd.Flags().Bool("json", false, "Output as JSON")
	jobsListCmd.Flags().String("user", "", "Only show jobs for this user")
	jobsStatusCmd.Flags().Bool("json", false, "Output as JSON")
	jobsLogsCmd.Flags().String("run", "apply", "Log run: apply or destroy")
	jobsLogsCmd.Flags().Int("tail", 200, "Show last N lines (0 = no tail)")
	jobsLogsCmd.Flags().Bool("follow", false, "Follow log output")
}

func openJobStore() (*jobstore.Store, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	return jobstore.Open(cfg.Paths.DatabasePath)
}

func runJobsList(cmd *cobra.Command, _ []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	user, _ := cmd.Flags().GetString("user")

	store, err := openJobStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var jobs []jobstore.Job
	if user != "" {
		jobs, err = store.ListByUser(user)
	} else {
		jobs, err = store.List()
	}
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No jobs found")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(jobs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB ID\tUSER\tMODE\tTEMPLATE\tSTATUS\tCREATED\tFINISHED\tPRIMARY OUTPUT")
	for _, j := range jobs {
		template := j.TemplateName
		if template == "" {
			template = "-"
		}
		primary := j.PrimaryOutput
		if primary == "" {
			primary = "-"
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			shortJobID(j.ID),
			j.UserID,
			j.Mode,
			template,
			j.Status,
			j.CreatedAt.UTC().Format(time.RFC3339),
			formatOptionalTime(j.FinishedAt),
			primary,
		)
	}

	return nil
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	jobID := strings.TrimSpace(args[0])
	if jobID == "" {
		return fmt.Errorf("job_id is required")
	}

	store, err := openJobStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	resolvedID, err := resolveJobID(store, jobID)
	if err != nil {
		return err
	}

	job, err := store.Get(resolvedID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	_, _ = fmt.Fprintf(os.Stdout, "job_id=%s\n", job.ID)
	_, _ = fmt.Fprintf(os.Stdout, "user=%s\n", job.UserID)
	_, _ = fmt.Fprintf(os.Stdout, "mode=%s\n", job.Mode)
	if job.TemplateName != "" {
		_, _ = fmt.Fprintf(os.Stdout, "template=%s\n", job.TemplateName)
	}
	_, _ = fmt.Fprintf(os.Stdout, "status=%s\n", job.Status)
	_, _ = fmt.Fprintf(os.Stdout, "created_at=%s\n", job.CreatedAt.UTC().Format(time.RFC3339))
	if job.FinishedAt != nil {
		_, _ = fmt.Fprintf(os.Stdout, "finished_at=%s\n", job.FinishedAt.UTC().Format(time.RFC3339))
	}
	if job.LogFilePath != "" {
		_, _ = fmt.Fprintf(os.Stdout, "log_file=%s\n", job.LogFilePath)
	}
	if job.PrimaryOutput != "" {
		_, _ = fmt.Fprintf(os.Stdout, "primary_output=%s\n", job.PrimaryOutput)
	}
	for name, out := range job.Outputs() {
		_, _ = fmt.Fprintf(os.Stdout, "output.%s=%s\n", name, out.ValueString())
	}

	return nil
}

func shortJobID(jobID string) string {
	jobID = strings.TrimSpace(jobID)
	if len(jobID) <= 12 {
		return jobID
	}
	return jobID[:12]
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func resolveJobID(store *jobstore.Store, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("job_id is required")
	}

	// Exact match first.
	if _, err := store.Get(input); err == nil {
		return input, nil
	}

	// Prefix match (allows table-friendly short IDs).
	jobs, err := store.List()
	if err != nil {
		return "", err
	}
	matches := make([]string, 0, 2)
	for _, j := range jobs {
		if strings.HasPrefix(j.ID, input) {
			matches = append(matches, j.ID)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("job not found: %s", input)
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("job id prefix is ambiguous (%d matches); use full job_id or --json", len(matches))
	}
	return matches[0], nil
}
