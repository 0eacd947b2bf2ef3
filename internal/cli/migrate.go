package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mathfly-quiz-service/internal/config"
	"mathfly-quiz-service/internal/infra/memory"
	"mathfly-quiz-service/internal/infra/postgres"
	"mathfly-quiz-service/internal/logging"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load the bundled question set into postgres")
	return cmd
}

func runMigrations(ctx context.Context, configPath string, seed bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	applied, err := postgres.Migrate(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", zap.Strings("migrations", applied))
	if !seed {
		return nil
	}

	bundled, err := memory.NewBundledQuestionStore()
	if err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	questions := bundled.All()
	if err := postgres.NewQuestionStore(pool).SeedQuestions(ctx, questions); err != nil {
		return err
	}
	logger.Info("questions seeded", zap.Int("count", len(questions)))
	return nil
}
