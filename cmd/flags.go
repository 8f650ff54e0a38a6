package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/config"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/logging"
	"github.com/conneroisu/storefront/internal/preview"
	"github.com/conneroisu/storefront/internal/stream"
	"github.com/conneroisu/storefront/internal/templates"
	"github.com/conneroisu/storefront/internal/tools"
)

// vendorFlags identify the storefront a command works on.
type vendorFlags struct {
	ID       string
	Name     string
	Industry string
}

func addVendorFlags(fs *pflag.FlagSet, v *vendorFlags) {
	fs.StringVar(&v.ID, "vendor-id", "local", "Vendor identifier, also the backup key")
	fs.StringVar(&v.Name, "vendor-name", "Your Store", "Vendor display name passed to the renderer")
	fs.StringVar(&v.Industry, "industry", "", "Vendor industry passed to the generation service")
}

func (v vendorFlags) vendor() editor.Vendor {
	return editor.Vendor{ID: v.ID, Name: v.Name, Industry: v.Industry}
}

// paramsFlag collects repeated key=value pairs into tool parameters.
type paramsFlag struct {
	params tools.Params
}

var _ pflag.Value = (*paramsFlag)(nil)

func newParamsFlag() *paramsFlag {
	return &paramsFlag{params: tools.Params{}}
}

func (p *paramsFlag) String() string {
	keys := make([]string, 0, len(p.params))
	for k := range p.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+p.params[k])
	}
	return "[" + strings.Join(pairs, ",") + "]"
}

func (p *paramsFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	p.params[key] = val
	return nil
}

func (p *paramsFlag) Type() string {
	return "key=value"
}

// loadCatalog returns the configured template catalog or the built-in one.
func loadCatalog(cfg *config.Config) (*templates.Catalog, error) {
	if cfg.Templates.Catalog == "" {
		return templates.Default(), nil
	}
	return templates.Load(cfg.Templates.Catalog)
}

func newRenderer(cfg *config.Config) preview.Renderer {
	return preview.NewHTTPRenderer(cfg.Render.URL, cfg.Render.Timeout)
}

func previewOptions(cfg *config.Config) preview.Options {
	opts := preview.DefaultOptions()
	if cfg.Render.Debounce > 0 {
		opts.Debounce = cfg.Render.Debounce
	}
	if cfg.Render.Timeout > 0 {
		opts.Timeout = cfg.Render.Timeout
	}
	if cfg.Render.ErrorEvery > 0 {
		opts.ErrorEvery = cfg.Render.ErrorEvery
	}
	return opts
}

func streamConfig(cfg *config.Config) stream.Config {
	return stream.Config{
		URL:               cfg.AI.URL,
		HardTimeout:       cfg.AI.HardTimeout,
		InactivityTimeout: cfg.AI.InactivityTimeout,
		CompleteDelay:     cfg.AI.CompleteDelay,
	}
}

// sessionOptions builds the options every editor session starts from.
func sessionOptions(cfg *config.Config, store backup.Store, logger logging.Logger) (editor.Options, error) {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return editor.Options{}, err
	}

	return editor.Options{
		HostOrigin:      cfg.HostOrigin(),
		HistoryCapacity: cfg.History.Capacity,
		Store:           store,
		Renderer:        newRenderer(cfg),
		Preview:         previewOptions(cfg),
		Stream:          streamConfig(cfg),
		Catalog:         catalog,
		Logger:          logger,
	}, nil
}

// bindFlags binds viper keys to the running command's flags. Several commands
// share keys such as render.url, so binding happens when the command runs
// rather than at init, where the last binding would win.
func bindFlags(bindings map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for key, name := range bindings {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	}
}
