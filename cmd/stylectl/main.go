package main

import (
	"context"
	"os"

	"github.com/DRSN-tech/style-recommender/internal/app"
	config "github.com/DRSN-tech/style-recommender/internal/cfg"
	"github.com/DRSN-tech/style-recommender/internal/cli"
	"github.com/DRSN-tech/style-recommender/pkg/logger"
)

func main() {
	log := logger.NewSlogLogger()

	factory := func(_ context.Context) (*cli.Services, func(), error) {
		cfg, err := config.Load(log)
		if err != nil {
			return nil, nil, err
		}

		application, err := app.NewApp(cfg, log)
		if err != nil {
			return nil, nil, err
		}

		closeFn := func() {
			if err := application.Close(context.Background()); err != nil {
				log.Warnf("shutdown finished with errors: %v", err)
			}
		}

		return &cli.Services{
			Ingest:    application.Ingest,
			Catalog:   application.Catalog,
			Recommend: application.Recommend,
			Dataset:   cfg.Dataset,
			Logger:    log,
		}, closeFn, nil
	}

	if err := cli.NewRootCommand(factory).Execute(); err != nil {
		os.Exit(1)
	}
}
