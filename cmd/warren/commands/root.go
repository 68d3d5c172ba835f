package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/pkg/casefile"
)

var (
	version string
	commit  string
	date    string

	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warren",
	Short: "Warren - Issue resolution workflow orchestrator",
	Long: `Warren drives issues through a fixed multi-stage resolution pipeline:
Validation, Proposal, Review, Implementation, Verification, Finalization.

Every stage records its output as an immutable artifact in the issue's
case file, building an append-only audit trail. Resolved and rejected
issues can be archived out of the active store.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultConfigFile, "Path to the warren configuration file")
}

// loadConfig reads the configuration file named by the --config flag.
// A missing file yields the built-in defaults.
func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

// openIssuesStore opens the active issue store from the resolved configuration.
func openIssuesStore() (*casefile.Store, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := casefile.NewStore(cfg.IssuesRoot())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}
