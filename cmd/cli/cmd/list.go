package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-exploration/pkg/logger"
	"github.com/picogrid/swarm-exploration/pkg/simulation"
	"github.com/picogrid/swarm-exploration/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available simulations",
	Long:  `List all available simulations with their descriptions`,
	RunE:  listSimulations,
}

func listSimulations(cmd *cobra.Command, args []string) error {
	simInfos, err := utils.DiscoverSimulations()
	if err != nil {
		return fmt.Errorf("failed to discover simulations: %w", err)
	}

	if len(simInfos) == 0 {
		logger.Warn("No simulations found")
		return nil
	}

	registered := make(map[string]bool)
	for _, name := range simulation.DefaultRegistry.List() {
		registered[name] = true
	}

	table := logger.NewTable("NAME", "VERSION", "CATEGORY", "PARAMS", "BUILT IN", "DESCRIPTION")
	for _, info := range simInfos {
		builtIn := "no"
		if registered[info.Config.Name] {
			builtIn = "yes"
		}
		table.AddRow(
			info.Config.Name,
			info.Config.Version,
			info.Config.Category,
			fmt.Sprintf("%d", len(info.Config.Parameters)),
			builtIn,
			info.Config.Description,
		)
	}
	table.Print()

	return nil
}
