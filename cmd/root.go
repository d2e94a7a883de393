// Package cmd wires the mill CLI: the run loop plus the control-plane
// commands that inspect and steer it.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/taskmill/mill/internal/config"
	"github.com/taskmill/mill/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui  *output.UI
	cfg *config.Config

	verbose bool
	dryRun  bool

	buildVersion string
	buildCommit  string
	buildDate    string
)

var rootCmd = &cobra.Command{
	Use:   "mill",
	Short: "Autonomous task runner for GitHub project boards",
	Long: `mill pulls ready tasks from a GitHub project board, drives an AI
coding agent through implementation and verification, and ships the
result as a pull request. Sessions can be paused, watched, and replayed
without touching the running process directly.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return statusRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/mill/config.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "mill"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MILL")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultStateDir := filepath.Join(home, ".config", "mill")

	viper.SetDefault("state_dir", defaultStateDir)
	viper.SetDefault("github.repo", "")
	viper.SetDefault("github.base_branch", "main")
	viper.SetDefault("agent.command", "claude")
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("category.model", "claude-haiku-4-5-20251001")

	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// loadConfig resolves the effective configuration: the YAML file with its
// extends chain, then environment overrides for the keys viper tracks.
func loadConfig() (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	var c *config.Config
	path := viper.ConfigFileUsed()
	if path == "" {
		c = config.Default()
	} else {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		c = loaded
	}

	if v := viper.GetString("state_dir"); v != "" {
		c.StateDir = v
	}
	if v := viper.GetString("github.repo"); v != "" && c.GitHub.Repo == "" {
		c.GitHub.Repo = v
	}
	if v := viper.GetString("agent.command"); v != "" && c.Agent.Command == "" {
		c.Agent.Command = v
	}

	cfg = c
	return cfg, nil
}

// requireConfig loads and validates the configuration, failing the
// command with a readable error when it is unusable.
func requireConfig() (*config.Config, error) {
	c, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}
