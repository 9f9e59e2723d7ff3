package main

import (
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/civicworks/permit-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local portal server",
	Long: "Serves the browser portal's JSON API and proxies /rest/v1/* to the " +
		"permitting backend with credentials injected server-side.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		svc, err := newPortalService()
		if err != nil {
			return err
		}

		drafts, err := openDraftStore(ctx)
		if err != nil {
			zap.L().Warn("draft store unavailable, draft routes disabled", zap.Error(err))
			drafts = nil
		} else {
			defer drafts.Close()
		}

		srv := server.New(svc, newScreeningRunner(), drafts, server.Config{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			BackendURL:     cfg.Backend.URL,
			BackendAnonKey: cfg.Backend.AnonKey,
			BufferMiles:    cfg.Screening.BufferMiles,
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.Handler(),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
