package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcribeflow/internal/apihandlers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveHost string
	servePort int
)

// serveCmd runs the HTTP API together with the queue processor, which
// is the normal single-process deployment.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the transcription worker",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		defer appInstance.Close()

		if err := appInstance.RecoverStuckJobs(cmd.Context()); err != nil {
			return err
		}

		gin.SetMode(gin.ReleaseMode)
		router := gin.New()
		router.Use(gin.Recovery())

		handler := &apihandlers.APIHandler{App: appInstance}

		api := router.Group("/api")
		{
			transcriptions := api.Group("/transcriptions")
			{
				transcriptions.POST("", handler.UploadHandler)
				transcriptions.GET("", handler.ListHandler)
				transcriptions.GET("/:id", handler.GetHandler)
				transcriptions.POST("/:id/start", handler.StartHandler)
				transcriptions.GET("/:id/transcript", handler.TranscriptHandler)
				transcriptions.PUT("/:id/speakers", handler.SpeakersHandler)
				transcriptions.POST("/:id/postprocess", handler.PostProcessHandler)
				transcriptions.DELETE("/:id", handler.DeleteHandler)
			}
			templates := api.Group("/templates")
			{
				templates.GET("", handler.ListTemplatesHandler)
				templates.POST("", handler.CreateTemplateHandler)
				templates.GET("/:id", handler.GetTemplateHandler)
				templates.PUT("/:id", handler.UpdateTemplateHandler)
				templates.DELETE("/:id", handler.DeleteTemplateHandler)
			}
			api.GET("/engines", handler.EnginesHandler)
			api.GET("/settings", handler.SettingsHandler)
			api.PUT("/settings", handler.UpdateSettingsHandler)
		}
		router.GET("/health", handler.HealthHandler)
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))

		appInstance.Processor.Start()
		defer appInstance.Processor.Stop()

		cfg := appInstance.Config.Current()
		host := serveHost
		if host == "" {
			host = cfg.Server.Host
		}
		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		addr := fmt.Sprintf("%s:%d", host, port)

		srv := &http.Server{Addr: addr, Handler: router}
		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", addr).Info("API server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return fmt.Errorf("api server: %w", err)
		case sig := <-quit:
			log.WithField("signal", sig.String()).Info("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
