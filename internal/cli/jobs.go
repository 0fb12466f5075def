package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

func newJobsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect persisted scan jobs",
		Long:  "List, show and clean up scan jobs submitted through the HTTP API.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scan jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			db, err := app.Store()
			if err != nil {
				return err
			}
			jobs, err := db.ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if jobs == nil {
					jobs = []scanner.JobSnapshot{}
				}
				return output.JSON(jobs)
			}
			if len(jobs) == 0 {
				output.Dim("No scan jobs")
				return nil
			}
			table := NewTable(output, "Task", "Status", "Progress", "Created", "Message")
			for _, j := range jobs {
				table.AddRow(
					j.TaskID,
					output.Status(string(j.Status)),
					FormatRatio(float64(j.Progress)/100),
					FormatDateTime(j.CreatedAt),
					Truncate(j.Message, 48),
				)
			}
			table.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <task_id>",
		Short: "Show one scan job and its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			db, err := app.Store()
			if err != nil {
				return err
			}
			snap, err := db.LoadJob(cmd.Context(), args[0])
			if err != nil {
				output.Error("Job %s not found", args[0])
				return err
			}
			if output.IsJSON() {
				return output.JSON(snap)
			}

			output.Bold("Scan job %s", snap.TaskID)
			output.Printf("  Status:    %s\n", output.Status(string(snap.Status)))
			output.Printf("  Progress:  %d%%\n", snap.Progress)
			output.Printf("  Message:   %s\n", snap.Message)
			output.Printf("  Created:   %s\n", FormatDateTime(snap.CreatedAt))
			if !snap.CompletedAt.IsZero() {
				output.Printf("  Finished:  %s (%s)\n", FormatDateTime(snap.CompletedAt), FormatDuration(snap.CompletedAt.Sub(snap.CreatedAt)))
			}
			if snap.Error != "" {
				output.Printf("  Error:     %s\n", output.Red(snap.Error))
			}
			output.Println()
			if snap.Status == scanner.StatusCompleted {
				displayCandidates(output, snap.Result)
			}
			return nil
		},
	})

	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete finished jobs older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			maxAge, _ := cmd.Flags().GetDuration("older-than")
			if maxAge <= 0 {
				maxAge = app.Config.Jobs.TTL
			}
			db, err := app.Store()
			if err != nil {
				return err
			}
			n, err := db.DeleteJobsBefore(cmd.Context(), time.Now().Add(-maxAge))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"deleted": n})
			}
			output.Success("Deleted %d finished jobs older than %s", n, maxAge)
			return nil
		},
	}
	cleanup.Flags().Duration("older-than", 0, "retention period (default from config, 1h)")
	cmd.AddCommand(cleanup)

	return cmd
}
