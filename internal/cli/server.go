package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mathfly-quiz-service/internal/app"
	"mathfly-quiz-service/internal/auth"
	"mathfly-quiz-service/internal/infra/postgres"
	"mathfly-quiz-service/internal/stats"
	transport "mathfly-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	rt, err := loadRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if rt.cfg.Postgres.URL != "" {
		applied, err := postgres.Migrate(ctx, rt.cfg.Postgres.URL)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("migrations", applied))
	}

	secret, err := rt.jwtSecret()
	if err != nil {
		return err
	}

	if n, err := rt.resync.Flush(ctx); err != nil {
		logger.Warn("startup resync incomplete", zap.Int("replayed", n), zap.Error(err))
	} else if n > 0 {
		logger.Info("startup resync done", zap.Int("replayed", n))
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	verifier := auth.NewVerifier(secret)
	progress := app.NewProgressService(rt.progress, logger)
	statsService := stats.NewService(rt.progress, logger)
	mux := transport.NewMux(
		transport.NewAPI(verifier, progress, statsService, logger),
		transport.NewQuizHandler(verifier, rt.engineDeps(), progress, rt.progress, app.OrchestratorOptions{
			QuestionCount: rt.cfg.Questions.Count,
			Logger:        logger,
		}, logger),
		transport.NewRankingHandler(statsService, rt.notifier, logger),
	)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting quiz service", zap.String("port", finalPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
