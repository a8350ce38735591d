package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yahya305/Daaktar-Saab/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		d, err := buildDeps(cmd)
		if err != nil {
			return err
		}
		defer d.Close()

		warnIfEmpty(ctx, d)
		if r, ok := d.index.(reloader); ok {
			if err := r.Reload(ctx); err != nil {
				return fmt.Errorf("load symptom index: %w", err)
			}
			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go reloadOn(ctx, hup, r)
		}

		srv, err := d.newServer()
		if err != nil {
			return err
		}

		addr := cfg.Server.Addr
		if a, _ := cmd.Flags().GetString("addr"); a != "" {
			addr = a
		}
		if err := server.ListenAndServe(ctx, addr, srv, cfg.Server.ShutdownTimeout, logger); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

// reloader is an index serving from a snapshot of its store.
type reloader interface {
	Reload(ctx context.Context) error
}

// reloadOn refreshes the index snapshot for every value on sig, so records
// written by `daaktar seed` are served without a restart.
func reloadOn(ctx context.Context, sig <-chan os.Signal, r reloader) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			if err := r.Reload(ctx); err != nil {
				logger.Error("reload symptom index", "error", err)
				continue
			}
			logger.Info("symptom index reloaded")
		}
	}
}

// warnIfEmpty logs a hint when the index has nothing to search.
func warnIfEmpty(ctx context.Context, d *deps) {
	n, err := d.index.Count(ctx)
	switch {
	case err != nil:
		logger.Warn("could not count index records", "error", err)
	case n == 0:
		logger.Warn("the symptom index is empty, run `daaktar seed` first")
	default:
		logger.Info("symptom index ready", "records", n, "backend", cfg.Index.Backend)
	}
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
}
