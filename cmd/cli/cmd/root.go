package cmd

import (
	"strings"

	"github.com/picogrid/swarm-exploration/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Settings keys shared by the flags, the CLI config file and SWARM_* variables
const (
	keyLogLevel   = "log_level"
	keyNoColor    = "no_color"
	keySimulation = "simulation"
	keyOperator   = "operator"
	keyConfigPath = "simulation_config"
)

var (
	cfgFile  string
	logLevel string
	noColor  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "swarm-sim",
	Short: "Drone swarm simulation CLI",
	Long: `Swarm Simulation CLI runs drone swarm simulations in which autonomous
agents explore a bounded field for targets while an operator verifies
their detections.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "cli-config", "", "CLI config file (default is $HOME/.swarm-sim/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	_ = viper.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(keyNoColor, rootCmd.PersistentFlags().Lookup("no-color"))

	// Add commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath("$HOME/.swarm-sim")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// SWARM_LOG_LEVEL, SWARM_SIMULATION, ...
	viper.SetEnvPrefix("SWARM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	readErr := viper.ReadInConfig()

	logger.SetLevel(logger.ParseLevel(viper.GetString(keyLogLevel)))
	logger.SetNoColor(viper.GetBool(keyNoColor))

	if readErr == nil {
		logger.Debugf("Using CLI config: %s", viper.ConfigFileUsed())
	}
}
