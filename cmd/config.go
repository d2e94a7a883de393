package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/taskmill/mill/internal/mask"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage mill configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Show prints the fully resolved configuration: file values merged over
the extends chain, with defaults filled in. Values that look like
secrets are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

const starterConfig = `# mill configuration
github:
  repo: owner/name
  project: 1
  base_branch: main
  move_on_failure: ready

iteration:
  max_iterations: 3
  task_timeout: 30        # minutes
  retry_delay: 5          # seconds
  retry_backoff: exponential
  retry_max_delay: 60
  retry_jitter: true

agent:
  command: claude
  verify_commands:
    - make test

notifications:
  enabled: false
`

func configInitRun() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".config", "mill")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return err
	}
	ui.Success("wrote %s", path)
	ui.Info("set github.repo and github.project, then run 'mill doctor'")
	return nil
}

func configShowRun() error {
	c, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if path := viper.ConfigFileUsed(); path != "" {
		ui.Info("config file: %s", path)
	} else {
		ui.Info("no config file found, showing defaults")
	}
	fmt.Print(mask.String(string(data)))
	return nil
}
