package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/operator"
	"github.com/picogrid/swarm-exploration/pkg/logger"
	"github.com/picogrid/swarm-exploration/pkg/simulation"
	"github.com/picogrid/swarm-exploration/pkg/utils"

	// Import simulations to register them
	_ "github.com/picogrid/swarm-exploration/cmd/drone-exploration/simulation"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Run a simulation interactively or with specified parameters.

Parameters are taken from --params first, then SWARM_<PARAM> environment
variables, then prompted for. Set SWARM_SKIP_PROMPTS=true to use defaults
without prompting.`,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().StringP("config", "c", "", "simulation config file (YAML)")
	runCmd.Flags().StringP("operator", "o", "", "operator policy (accept, discard, hold, interactive)")
	runCmd.Flags().DurationP("duration", "d", 0, "stop the simulation after this long (0 runs until interrupted)")

	_ = viper.BindPFlag(keySimulation, runCmd.Flags().Lookup("simulation"))
	_ = viper.BindPFlag(keyOperator, runCmd.Flags().Lookup("operator"))
	_ = viper.BindPFlag(keyConfigPath, runCmd.Flags().Lookup("config"))
}

func runSimulation(cmd *cobra.Command, _ []string) error {
	interactive := !utils.SkipPrompts() && operator.IsInteractive()

	simName, err := selectSimulation(interactive)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	preset, err := presetParameters(cmd)
	if err != nil {
		return err
	}

	params := preset
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		logger.Warnf("Could not discover simulation descriptors, using preset parameters only: %v", err)
	} else if info, err := utils.FindSimulation(simInfos, simName); err != nil {
		logger.Warnf("%v, using preset parameters only", err)
	} else {
		params, err = utils.ResolveParameters(info.Config.Parameters, preset, interactive)
		if err != nil {
			return fmt.Errorf("failed to get parameters: %w", err)
		}
		// keys that are not declared parameters still reach the simulation
		for k, v := range preset {
			if _, ok := params[k]; !ok {
				params[k] = v
			}
		}
	}

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Warn("Received interrupt signal, stopping simulation...")
			if err := sim.Stop(); err != nil {
				logger.Errorf("Failed to stop simulation: %v", err)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// presetParameters collects parameters fixed on the command line: the
// --params file, then the dedicated flags on top of it
func presetParameters(cmd *cobra.Command) (map[string]interface{}, error) {
	preset := make(map[string]interface{})

	if path, _ := cmd.Flags().GetString("params"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameters file: %w", err)
		}
		if err := yaml.Unmarshal(data, &preset); err != nil {
			return nil, fmt.Errorf("failed to parse parameters file: %w", err)
		}
		if preset == nil {
			preset = make(map[string]interface{})
		}
		logger.Debugf("Loaded %d parameters from %s", len(preset), path)
	}

	if path := viper.GetString(keyConfigPath); path != "" {
		preset["config_path"] = path
	}
	if policy := viper.GetString(keyOperator); policy != "" {
		preset["operator_policy"] = policy
	}
	if cmd.Flags().Changed("duration") {
		duration, _ := cmd.Flags().GetDuration("duration")
		preset["duration"] = duration
	}

	return preset, nil
}

func selectSimulation(interactive bool) (string, error) {
	if simName := viper.GetString(keySimulation); simName != "" {
		return simName, nil
	}

	names := simulation.DefaultRegistry.List()
	if len(names) == 0 {
		return "", fmt.Errorf("no simulations registered")
	}
	if len(names) == 1 || !interactive {
		return names[0], nil
	}

	descriptions := make(map[string]string, len(names))
	for _, name := range names {
		if sim, err := simulation.DefaultRegistry.Get(name); err == nil {
			descriptions[name] = sim.Description()
		}
	}

	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: names,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	return selected, nil
}
