package cmd

import (
	"context"
	"fmt"
	"os"

	"transcribeflow/internal/app"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "transcribeflow",
	Short: "Audio transcription pipeline",
	Long: `TranscribeFlow transcribes audio with local or cloud speech engines,
attributes speakers through diarization, and manages jobs in a durable
local queue.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}

		appInstance, err := app.NewApp()
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}

		ctx := context.WithValue(cmd.Context(), appKey, appInstance)
		cmd.SetContext(ctx)
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type contextKey string

const appKey contextKey = "app"

// GetAppFromContext retrieves the app instance stored by
// PersistentPreRunE.
func GetAppFromContext(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application instance not found in context")
	}
	return appInstance, nil
}
