package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fmueller/semisizer/internal/pipeline"
	"github.com/fmueller/semisizer/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			serveFn := app.serveFn
			if serveFn == nil {
				serveFn = app.serve
			}
			return serveFn(cmd.Context())
		},
	}

	bindServeFlags(cmd, app)
	return cmd
}

func (a *appState) serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, err := a.scratchRoot()
	if err != nil {
		return err
	}
	a.sweep(root)

	ownRoot, err := pipeline.ClaimScratchRoot(root)
	if err != nil {
		return err
	}
	drained := true
	defer func() {
		if !drained {
			a.log().Warn("runs still in flight; leaving scratch directory for a later sweep", zap.String("dir", ownRoot))
			return
		}
		if err := os.RemoveAll(ownRoot); err != nil {
			a.log().Warn("failed to remove scratch directory", zap.String("dir", ownRoot), zap.Error(err))
		}
	}()

	p, registry, err := a.buildPipeline(ownRoot)
	if err != nil {
		return err
	}

	srv, err := web.New(web.Options{
		Runner:        p,
		RunsPerMinute: a.cfg.Server.RunsPerMinute,
		Burst:         a.cfg.Server.Burst,
		Logger:        a.log(),
	})
	if err != nil {
		_ = registry.Close(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(a.cfg.Server.Addr)
	}()

	select {
	case err := <-errCh:
		_ = registry.Close(context.Background())
		return err
	case <-ctx.Done():
	}

	a.log().Info("shutting down web UI")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)
	if err := registry.Close(shutdownCtx); err != nil {
		a.log().Warn("model registry still in use at shutdown", zap.Error(err))
		drained = false
	}
	if shutdownErr != nil {
		drained = false
		if !errors.Is(shutdownErr, context.Canceled) {
			return shutdownErr
		}
	}
	return <-errCh
}

// sweep clears directories abandoned by earlier processes. Runs of other
// live processes are recent and survive.
func (a *appState) sweep(root string) {
	removed, err := pipeline.SweepScratch(root, pipeline.StaleScratchAge)
	if err != nil {
		a.log().Warn("failed to sweep scratch directory", zap.String("dir", root), zap.Error(err))
		return
	}
	if removed > 0 {
		a.log().Info("removed abandoned run directories", zap.String("dir", root), zap.Int("count", removed))
	}
}
