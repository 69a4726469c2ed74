package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/style-recommender/internal/infrastructure/dataset"
	"github.com/spf13/cobra"
)

func newWatchCommand(factory ServicesFactory) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest images as they appear in the dataset directory",
		Long: `Watch the dataset directory and ingest new matching images. Events are
collected until the directory is quiet for --debounce, then ingested as one
request. Press Ctrl+C to stop.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, factory, func(svc *Services) error {
				root, err := datasetRoot(svc, args)
				if err != nil {
					return err
				}

				ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				watcher := dataset.NewWatcher(root, newWalker(svc), debounce, svc.Logger)

				svc.Logger.Infof("watching %s for new images", root)
				return watcher.Run(ctx, func(ctx context.Context, paths []string) {
					if err := ingestPaths(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), svc, paths, false); err != nil {
						svc.Logger.Errorf(err, "failed to ingest %d new images", len(paths))
					}
				})
			})
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 2*time.Second, "quiet period before a batch of new images is ingested")

	return cmd
}
