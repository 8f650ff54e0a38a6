package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/accessibility"
	"github.com/conneroisu/storefront/internal/config"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/preview"
	"github.com/conneroisu/storefront/internal/section"
)

var (
	renderVendor     vendorFlags
	renderOutput     string
	renderInstrument bool
	renderAudit      bool
)

var renderCmd = &cobra.Command{
	Use:     "render <file>",
	Aliases: []string{"r"},
	Short:   "Render a component to HTML through the render service",
	Long: `Render a component to a complete HTML document. Comments are stripped
before the source is sent. With --instrument the document carries the same
inline editing bridge the preview frame uses.

Examples:
  storefront render hero.component              # Write HTML to stdout
  storefront render hero.component -o hero.html # Write HTML to a file`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	addVendorFlags(renderCmd.Flags(), &renderVendor)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output file (default stdout)")
	renderCmd.Flags().BoolVar(&renderInstrument, "instrument", false, "Inject the inline editing bridge")
	renderCmd.Flags().BoolVar(&renderAudit, "audit", false, "Report accessibility problems on stderr")
	renderCmd.Flags().String("render-url", "", "Render service endpoint")
	renderCmd.PreRunE = bindFlags(map[string]string{"render.url": "render-url"})
}

// renderSource renders src the way the preview does, optionally leaving out
// the editing bridge.
func renderSource(ctx context.Context, cfg *config.Config, v vendorFlags, src string, instrument bool) (string, error) {
	props := preview.Props{VendorID: v.ID, VendorName: v.Name}
	renderer := newRenderer(cfg)

	if !instrument {
		return renderer.Render(ctx, section.StripComments(src), props)
	}

	p := preview.New(renderer, props, nil, previewOptions(cfg))
	defer p.Stop()

	frame, err := p.Update(ctx, src)
	if err != nil {
		return "", err
	}
	return frame.HTML, nil
}

func writeOutput(path, html string, stdout io.Writer) error {
	if path == "" {
		_, err := io.WriteString(stdout, html)
		return err
	}
	return os.WriteFile(path, []byte(html), 0o644)
}

func printAudit(w io.Writer, html string) error {
	report, err := accessibility.Audit(html)
	if err != nil {
		return err
	}
	if report.OK() {
		fmt.Fprintln(w, subtleStyle.Render(fmt.Sprintf("accessibility: %d checks passed", len(report.Passed))))
		return nil
	}

	for _, v := range report.Violations {
		style := subtleStyle
		if v.Impact == accessibility.ImpactCritical {
			style = warnStyle
		}
		fmt.Fprintf(w, "%s %s %s %s\n", style.Render(string(v.Impact)), nameStyle.Render(v.Rule), v.Selector, v.Message)
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	src, err := editor.ReadFile(args[0])
	if err != nil {
		return err
	}

	html, err := renderSource(ctx, cfg, renderVendor, src, renderInstrument)
	if err != nil {
		return err
	}
	if err := writeOutput(renderOutput, html, cmd.OutOrStdout()); err != nil {
		return err
	}
	if renderAudit {
		if err := printAudit(cmd.ErrOrStderr(), html); err != nil {
			return err
		}
	}

	logger.Debug(ctx, "Rendered component", "file", args[0], "bytes", len(html))
	return nil
}
