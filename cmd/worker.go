package cmd

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// workerCmd runs the queue processor without the HTTP API, for setups
// where the API and the heavy transcription work live in separate
// processes sharing one database.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the transcription worker without the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		if err := appInstance.RecoverStuckJobs(cmd.Context()); err != nil {
			return err
		}

		appInstance.Processor.Start()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		sig := <-quit
		log.WithField("signal", sig.String()).Info("stopping worker")

		appInstance.Processor.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
