// Package cmd provides the storefront command-line interface.
//
// Configuration System:
//
//	Settings are resolved with the following precedence:
//	1. Command-line flags (--config, --port, etc.) - highest priority
//	2. STOREFRONT_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (STOREFRONT_SERVER_PORT, etc.)
//	4. Configuration files (.storefront.yml) - lowest priority
//
// Environment Variables:
//
//	STOREFRONT_CONFIG_FILE: Path to custom configuration file
//	STOREFRONT_SERVER_PORT: Override server port
//	STOREFRONT_RENDER_URL: Render service endpoint
//	STOREFRONT_AI_URL: Generation service endpoint
//	And every other key following the STOREFRONT_<SECTION>_<OPTION> pattern
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/storefront/internal/config"
	"github.com/conneroisu/storefront/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Visual builder for vendor storefront components",
	Long: `Storefront edits vendor storefront components through a live preview,
direct manipulation tools, section templates and AI generation.

Quick Start:
  storefront serve                       Start the editor server
  storefront sections hero.component     List the sections of a component
  storefront tool font-size hero.component --param direction=increase
  storefront render hero.component -o hero.html
  storefront mcp hero.component          Expose a component to MCP clients

Command Aliases:
  serve (s), render (r), watch (w)`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .storefront.yml, can also use STOREFRONT_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig loads the configuration file named by --config, then
// STOREFRONT_CONFIG_FILE, then .storefront.yml in the working directory.
func initConfig(cmd *cobra.Command, args []string) error {
	file := cfgFile
	if file == "" {
		file = os.Getenv(config.EnvPrefix + "_CONFIG_FILE")
	}

	return config.Init(file)
}

// loadConfig decodes the configuration and builds the logger every command
// shares.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	return cfg, logging.NewLogger(cfg.Logger()), nil
}
