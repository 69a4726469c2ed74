package cli

import (
	"context"

	"github.com/DRSN-tech/style-recommender/internal/cfg"
	"github.com/DRSN-tech/style-recommender/internal/usecase"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
	"github.com/spf13/cobra"
)

// Services — use case, с которыми работают команды.
type Services struct {
	Ingest    usecase.IngestUC
	Catalog   usecase.CatalogUC
	Recommend usecase.RecommendUC
	Dataset   *cfg.DatasetCfg
	Logger    logger.Logger
}

// ServicesFactory собирает сервисы для одной команды. close освобождает их ресурсы.
type ServicesFactory func(ctx context.Context) (svc *Services, close func(), err error)

func NewRootCommand(factory ServicesFactory) *cobra.Command {
	root := &cobra.Command{
		Use:   "stylectl",
		Short: "Manage the fashion image catalog and query recommendations",
		Long: `stylectl ingests dataset images into the vector store and queries
recommendations and similar images from the command line.

Examples:
  stylectl ingest /data/fashion
  stylectl recommend --like 5f0c3c0e-... --dislike 0b7e1a52-... --limit 10
  stylectl search /data/fashion/shirts/a.jpg --limit 5`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newIngestCommand(factory),
		newWatchCommand(factory),
		newRecommendCommand(factory),
		newSearchCommand(factory),
		newCatalogCommand(factory),
	)

	return root
}

// withServices собирает сервисы, выполняет fn и закрывает их.
func withServices(cmd *cobra.Command, factory ServicesFactory, fn func(svc *Services) error) error {
	svc, closeFn, err := factory(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(svc)
}
