package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	simconfig "github.com/picogrid/swarm-exploration/cmd/drone-exploration/config"
	"github.com/picogrid/swarm-exploration/pkg/logger"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage CLI and simulation configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default CLI config and optionally a simulation config",
	RunE:  initConfigFiles,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective CLI settings and simulation config",
	RunE:  showConfig,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite existing files")
	configInitCmd.Flags().String("simulation-config", "", "also write the default drone-exploration config to this path")

	configShowCmd.Flags().String("simulation-config", "", "simulation config file to show (defaults are searched otherwise)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

func defaultCLIConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, ".swarm-sim", "config.yaml"), nil
}

func initConfigFiles(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")

	path := cfgFile
	if path == "" {
		var err error
		if path, err = defaultCLIConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	viper.SetDefault(keyLogLevel, "info")
	viper.SetDefault(keyNoColor, false)
	viper.SetDefault(keySimulation, "drone-exploration")
	viper.SetDefault(keyOperator, simconfig.PolicyAccept)

	write := viper.SafeWriteConfigAs
	if force {
		write = viper.WriteConfigAs
	}
	if err := write(path); err != nil {
		return fmt.Errorf("failed to write CLI config: %w", err)
	}
	logger.Successf("CLI config written to %s", path)

	if simPath, _ := cmd.Flags().GetString("simulation-config"); simPath != "" {
		if _, err := os.Stat(simPath); err == nil && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", simPath)
		}
		if err := simconfig.SaveConfig(simconfig.GetDefaultConfig(), simPath); err != nil {
			return fmt.Errorf("failed to write simulation config: %w", err)
		}
		logger.Successf("Simulation config written to %s", simPath)
	}

	return nil
}

func showConfig(cmd *cobra.Command, _ []string) error {
	logger.LogSection("CLI Settings")
	if used := viper.ConfigFileUsed(); used != "" {
		logger.LogKeyValue("Config file", used)
	} else {
		logger.LogKeyValue("Config file", "(none)")
	}

	settings, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	fmt.Print(string(settings))

	simPath, _ := cmd.Flags().GetString("simulation-config")
	cfg, err := simconfig.LoadConfigOrDefault(simPath)
	if err != nil {
		return fmt.Errorf("failed to load simulation config: %w", err)
	}

	logger.LogSection("Simulation Config")
	fmt.Println(cfg.String())
	return nil
}
