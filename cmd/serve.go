package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/worklens-cli/internal/server"
	"github.com/KaramelBytes/worklens-cli/internal/utils"
)

var (
	serveOpts        sheetOptions
	serveHost        string
	servePort        int
	serveOrigins     []string
	serveSessionTTL  time.Duration
	serveMaxSessions uint64
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve an HTTP API for asking questions about a sheet",
	Example: `  worklens serve tasks.xlsx --port 8080
  curl -s localhost:8080/api/v1/ask -d '{"question":"give me a summary"}'
  curl -s localhost:8080/api/v1/dashboard`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ws, err := openWorkspace(cmd.Context(), args[0], serveOpts, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		// The server logs at info level even without --debug.
		log, err := utils.NewLogger(debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		layout, err := ws.designDashboard(cmd.Context())
		if err != nil {
			return err
		}
		scfg := server.Config{
			Host:           ws.cfg.ServerHost,
			Port:           ws.cfg.ServerPort,
			AllowedOrigins: serveOrigins,
			SessionTTL:     serveSessionTTL,
			MaxSessions:    serveMaxSessions,
			Dashboard:      &layout,
		}
		if cmd.Flags().Changed("host") {
			scfg.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			scfg.Port = servePort
		}
		srv := server.NewServer(ws.ds, ws.schema, ws.newEngine, scfg, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			log.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error("shutdown failed", zap.Error(err))
				return err
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addSheetFlags(serveCmd, &serveOpts)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default: any)")
	serveCmd.Flags().DurationVar(&serveSessionTTL, "session-ttl", server.DefaultSessionTTL, "drop sessions idle for this long")
	serveCmd.Flags().Uint64Var(&serveMaxSessions, "max-sessions", server.DefaultMaxSessions, "maximum live sessions")
}
