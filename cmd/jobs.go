package cmd

import (
	"fmt"
	"os"
	"time"

	"transcribeflow/internal/models"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var jobsLimit int

// jobsCmd lists the queue from the command line.
var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List transcription jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		jobs, err := appInstance.Transcriptions.List(cmd.Context(), jobsLimit)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No transcription jobs found.")
			return nil
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "File", "Engine", "Status", "Progress", "Speakers", "Created At"})
		table.SetBorder(true)
		table.SetRowLine(true)

		for _, job := range jobs {
			speakers := "-"
			if job.SpeakersCount != nil {
				speakers = fmt.Sprintf("%d", *job.SpeakersCount)
			}
			table.Append([]string{
				job.ID[:8],
				job.Filename,
				job.Engine,
				colorStatus(job.Status),
				fmt.Sprintf("%.0f%%", job.Progress),
				speakers,
				job.CreatedAt.Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func colorStatus(status models.Status) string {
	switch status {
	case models.StatusCompleted:
		return color.GreenString(string(status))
	case models.StatusFailed:
		return color.RedString(string(status))
	case models.StatusProcessing, models.StatusDiarizing:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 50, "Maximum number of jobs to list")
	rootCmd.AddCommand(jobsCmd)
}
