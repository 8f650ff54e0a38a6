package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/storefront/internal/backup"
	"github.com/conneroisu/storefront/internal/editor"
	"github.com/conneroisu/storefront/internal/mcptools"
	"github.com/conneroisu/storefront/internal/version"
)

var mcpVendor vendorFlags

var mcpCmd = &cobra.Command{
	Use:   "mcp <file>",
	Short: "Serve a component to MCP clients over stdio",
	Long: `Start a Model Context Protocol server on stdin/stdout that edits one
component file with the same tools the editor offers: section listing,
direct manipulation tools, templates, undo and redo. Every accepted edit is
written back to the file. Logs go to stderr.

Example client configuration:
  {"command": "storefront", "args": ["mcp", "hero.component"]}`,
	Args: cobra.ExactArgs(1),
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	addVendorFlags(mcpCmd.Flags(), &mcpVendor)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	path := args[0]

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
	opts.Vendor = mcpVendor.vendor()
	opts.Source = src

	session, err := editor.New("mcp", opts)
	if err != nil {
		return err
	}
	defer session.Close()

	return mcptools.New(session, path, mcptools.Options{
		Catalog: opts.Catalog,
		Version: version.GetVersion(),
		Logger:  logger,
	}).ServeStdio()
}
