package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/config"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch <file>",
	Aliases: []string{"w"},
	Short:   "Re-render a component whenever it changes on disk",
	Long: `Watch a component file and render it again after every save. This is
useful when the component is edited in another editor and only the rendered
output is needed.

Examples:
  storefront watch hero.component -o hero.html
  storefront watch hero.component -o hero.html --instrument`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchVendor     vendorFlags
	watchOutput     string
	watchInstrument bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	addVendorFlags(watchCmd.Flags(), &watchVendor)
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", "", "Output file")
	watchCmd.Flags().BoolVar(&watchInstrument, "instrument", false, "Inject the inline editing bridge")
	watchCmd.MarkFlagRequired("output")
}

// rerender renders path to the watch output. Failures keep the previous
// output in place.
func rerender(ctx context.Context, cfg *config.Config, logger logging.Logger, path string) error {
	src, err := editor.ReadFile(path)
	if err != nil {
		return err
	}

	html, err := renderSource(ctx, cfg, watchVendor, src, watchInstrument)
	if err != nil {
		return err
	}
	if err := writeOutput(watchOutput, html, nil); err != nil {
		return err
	}

	logger.Info(ctx, "Rendered", "file", path, "output", watchOutput, "bytes", len(html))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	path := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fileWatcher, err := watcher.NewFileWatcher(cfg.Render.Debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.AddFilter(watcher.NoEditorTempFilter)
	if err := fileWatcher.WatchFile(path); err != nil {
		return err
	}

	fileWatcher.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, ev := range events {
			if ev.Type == watcher.EventTypeDeleted {
				logger.Warn(ctx, nil, "Component removed, waiting for it to return", "file", ev.Path)
				return nil
			}
		}
		return rerender(ctx, cfg, logger, path)
	})

	if err := rerender(ctx, cfg, logger, path); err != nil {
		logger.Warn(ctx, err, "Initial render failed", "file", path)
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "Watching for changes", "file", path)

	<-ctx.Done()
	return nil
}
