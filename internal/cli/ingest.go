package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/DRSN-tech/style-recommender/internal/infrastructure/dataset"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var errNoDataPath = errors.New("dataset directory is required: pass it as an argument or set DATA_PATH")

func newIngestCommand(factory ServicesFactory) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Embed dataset images and store them in the collection",
		Long: `Walk the dataset directory, embed matching images in chunks and upload
them to the collection. Images already recorded in the ingestion ledger are
skipped unless --all is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, factory, func(svc *Services) error {
				root, err := datasetRoot(svc, args)
				if err != nil {
					return err
				}

				paths, err := newWalker(svc).Walk(root)
				if err != nil {
					return err
				}

				return ingestPaths(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), svc, paths, all)
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "re-ingest images already recorded in the ledger")

	return cmd
}

func datasetRoot(svc *Services, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if svc.Dataset != nil && svc.Dataset.DataPath != "" {
		return svc.Dataset.DataPath, nil
	}
	return "", errNoDataPath
}

func newWalker(svc *Services) *dataset.Walker {
	if svc.Dataset == nil {
		return dataset.NewWalker(nil, nil)
	}
	return dataset.NewWalker(svc.Dataset.Includes, svc.Dataset.Excludes)
}

// ingestPaths отбрасывает уже загруженные пути (если не all) и загружает остальные с прогрессом по чанкам.
func ingestPaths(ctx context.Context, out io.Writer, progress io.Writer, svc *Services, paths []string, all bool) error {
	found := len(paths)
	if !all {
		var err error
		paths, err = svc.Ingest.PendingPaths(ctx, paths)
		if err != nil {
			return err
		}
	}

	if len(paths) == 0 {
		fmt.Fprintf(out, "Nothing to ingest: %d images found, all already stored\n", found)
		return nil
	}

	fmt.Fprintf(out, "Ingesting %d of %d images\n", len(paths), found)

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription("Embedding"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(progress)
		}),
	)

	req := usecase.NewInsertImagesReq(paths)
	req.OnChunk = func(r usecase.ChunkReport) {
		if r.Err != nil {
			bar.Describe(fmt.Sprintf("Chunk %d/%d failed", r.Index+1, r.Total))
			return
		}
		_ = bar.Add(r.Paths)
	}

	res, err := svc.Ingest.InsertImages(ctx, req)
	if res != nil {
		fmt.Fprintf(out, "Stored %d images, catalog now holds %d (%s)\n", len(res.Stored), res.Snapshot.Count, res.Snapshot.Status)
	}
	if err != nil {
		var chunkErr *usecase.ChunkError
		if errors.As(err, &chunkErr) && res != nil {
			fmt.Fprintf(out, "%d images were not stored, run ingest again to retry them\n", len(paths)-len(res.Stored))
		}
		return err
	}

	return nil
}
