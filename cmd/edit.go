package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/section"
	"github.com/conneroisu/storefront/internal/tools"
)

var (
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var (
	editVendor vendorFlags
	editParams = newParamsFlag()
	editDryRun bool
	listJSON   bool
)

var sectionsCmd = &cobra.Command{
	Use:   "sections <file>",
	Short: "List the sections of a component",
	Args:  cobra.ExactArgs(1),
	RunE:  runSections,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the direct manipulation tools",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the section templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

var toolCmd = &cobra.Command{
	Use:   "tool <name> <file>",
	Short: "Run a direct manipulation tool over a component",
	Long: `Run a direct manipulation tool over the render section of a component
and write the result back.

Examples:
  storefront tool font-size hero.component --param direction=increase
  storefront tool vendor-branding hero.component --param vendorName="Blue Fern"
  storefront tool alignment hero.component --param align=center --dry-run`,
	Args: cobra.ExactArgs(2),
	RunE: runTool,
}

var insertCmd = &cobra.Command{
	Use:   "insert <template> <file>",
	Short: "Insert a section template into a component",
	Args:  cobra.ExactArgs(2),
	RunE:  runInsert,
}

var deleteSectionCmd = &cobra.Command{
	Use:   "delete-section <name> <file>",
	Short: "Delete a section from a component",
	Args:  cobra.ExactArgs(2),
	RunE:  runDeleteSection,
}

var moveSectionCmd = &cobra.Command{
	Use:       "move-section <name> <up|down> <file>",
	Short:     "Swap a section with its neighbor",
	Args:      cobra.ExactArgs(3),
	ValidArgs: []string{string(editor.Up), string(editor.Down)},
	RunE:      runMoveSection,
}

func init() {
	rootCmd.AddCommand(sectionsCmd, toolsCmd, templatesCmd, toolCmd, insertCmd, deleteSectionCmd, moveSectionCmd)

	for _, c := range []*cobra.Command{sectionsCmd, toolsCmd, templatesCmd} {
		c.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	}
	for _, c := range []*cobra.Command{toolCmd, insertCmd, deleteSectionCmd, moveSectionCmd} {
		addVendorFlags(c.Flags(), &editVendor)
		c.Flags().BoolVar(&editDryRun, "dry-run", false, "Print the result instead of writing the file")
	}
	toolCmd.Flags().VarP(editParams, "param", "P", "Tool parameter, repeatable")
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runSections(cmd *cobra.Command, args []string) error {
	src, err := editor.ReadFile(args[0])
	if err != nil {
		return err
	}
	sections := section.Parse(src)

	out := cmd.OutOrStdout()
	if listJSON {
		return printJSON(out, sections)
	}

	if len(sections) == 0 {
		fmt.Fprintln(out, subtleStyle.Render("no sections"))
		return nil
	}
	for _, s := range sections {
		line := fmt.Sprintf("%-16s %s", nameStyle.Render(s.Name), subtleStyle.Render(fmt.Sprintf("%s %d-%d", s.Type, s.Start, s.End)))
		if !s.Closed {
			line += " " + warnStyle.Render("unclosed")
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func runTools(cmd *cobra.Command, args []string) error {
	all := tools.All()

	out := cmd.OutOrStdout()
	if listJSON {
		return printJSON(out, all)
	}

	for _, t := range all {
		fmt.Fprintf(out, "%s  %s\n", nameStyle.Render(t.Name), t.Description)
		for _, p := range t.Params {
			desc := p.Description
			if len(p.Enum) > 0 {
				desc += " (" + strings.Join(p.Enum, ", ") + ")"
			}
			if p.Required {
				desc += " " + warnStyle.Render("required")
			}
			fmt.Fprintf(out, "    %s %s\n", subtleStyle.Render(p.Name), desc)
		}
	}
	return nil
}

func runTemplates(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if listJSON {
		return printJSON(out, catalog.All())
	}

	for _, t := range catalog.All() {
		fmt.Fprintf(out, "%-20s %s %s\n", nameStyle.Render(t.ID), t.Name, subtleStyle.Render(string(t.Kind)))
	}
	return nil
}

// editFile opens path in a session, applies edit and writes the result back.
// Backups go to the configured store under the vendor id, as they do for
// edits made in the editor.
func editFile(cmd *cobra.Command, path string, edit func(ctx context.Context, s *editor.Session) (string, error)) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	src, err := editor.ReadFile(path)
	if err != nil {
		return err
	}

	store, err := backup.Open(cfg.BackupStore())
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := sessionOptions(cfg, store, logger)
	if err != nil {
		return err
	}
	opts.Vendor = editVendor.vendor()
	opts.Source = src

	session, err := editor.New("cli", opts)
	if err != nil {
		return err
	}
	defer session.Close()

	out, err := edit(ctx, session)
	if err != nil {
		return err
	}

	if editDryRun {
		_, err := io.WriteString(cmd.OutOrStdout(), out)
		return err
	}
	if err := editor.WriteFile(path, out); err != nil {
		return err
	}
	logger.Info(ctx, "Updated component", "file", path, "bytes", len(out))
	return nil
}

func runTool(cmd *cobra.Command, args []string) error {
	return editFile(cmd, args[1], func(ctx context.Context, s *editor.Session) (string, error) {
		return s.ApplyTool(ctx, args[0], editParams.params)
	})
}

func runInsert(cmd *cobra.Command, args []string) error {
	return editFile(cmd, args[1], func(ctx context.Context, s *editor.Session) (string, error) {
		return s.InsertTemplate(ctx, args[0])
	})
}

func runDeleteSection(cmd *cobra.Command, args []string) error {
	return editFile(cmd, args[1], func(ctx context.Context, s *editor.Session) (string, error) {
		return s.DeleteSection(ctx, args[0])
	})
}

func runMoveSection(cmd *cobra.Command, args []string) error {
	return editFile(cmd, args[2], func(ctx context.Context, s *editor.Session) (string, error) {
		return s.MoveSection(ctx, args[0], editor.Direction(args[1]))
	})
}
