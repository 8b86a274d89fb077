package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DRSN-tech/go-similarity/internal/app"
	config "github.com/DRSN-tech/go-similarity/internal/cfg"
	"github.com/DRSN-tech/go-similarity/pkg/logger"
	"github.com/spf13/cobra"
)

func newFeaturesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Manage the image feature database",
	}

	var timeout time.Duration
	rebuild := &cobra.Command{
		Use:   "rebuild",
		Short: "Extract features for every dataset image and rewrite the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(timeout)
		},
	}
	rebuild.Flags().DurationVar(&timeout, "timeout", 0, "Abort the rebuild after this duration (0 means no limit)")

	cmd.AddCommand(rebuild)
	return cmd
}

func runRebuild(timeout time.Duration) error {
	log := logger.NewSlogLogger()

	cfg, err := config.Load(log)
	if err != nil {
		log.Errorf(err, "failed to load config")
		return err
	}

	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Errorf(err, "failed to initialize app")
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := application.Close(ctx); err != nil {
			log.Errorf(err, "shutdown finished with errors")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	db, err := application.Rebuild(ctx)
	if err != nil {
		log.Errorf(err, "feature rebuild failed")
		return err
	}

	log.Infof("feature database rebuilt: %d entries in %s", db.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}
