package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewResyncCmd replays locally queued results into the progress store.
func NewResyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Replay results queued while persistence was unavailable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := loadRuntime(ctx, *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			n, err := rt.resync.Flush(ctx)
			if err != nil {
				rt.logger.Error("resync stopped", zap.Int("replayed", n), zap.Error(err))
				return err
			}
			rt.logger.Info("resync done", zap.Int("replayed", n))
			return nil
		},
	}
}
