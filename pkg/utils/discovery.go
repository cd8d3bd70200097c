package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/picogrid/swarm-exploration/pkg/logger"
	"github.com/picogrid/swarm-exploration/pkg/simulation"
	"gopkg.in/yaml.v3"
)

// DescriptorFile is the file that declares a simulation and its parameters
const DescriptorFile = "simulation.yaml"

// SimulationInfo contains information about a discovered simulation
type SimulationInfo struct {
	Path   string
	Config simulation.SimulationConfig
}

// DiscoverSimulations finds all simulations under the project's cmd directory
func DiscoverSimulations() ([]SimulationInfo, error) {
	rootDir, err := findProjectRoot()
	if err != nil {
		return nil, err
	}
	return DiscoverSimulationsIn(filepath.Join(rootDir, "cmd"))
}

// DiscoverSimulationsIn walks dir for simulation descriptors, sorted by name.
// Descriptors that fail to parse are skipped with a warning.
func DiscoverSimulationsIn(dir string) ([]SimulationInfo, error) {
	var simulations []SimulationInfo

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != DescriptorFile {
			return nil
		}

		info, err := LoadSimulationInfo(path)
		if err != nil {
			logger.Warnf("Skipping %s: %v", path, err)
			return nil
		}
		simulations = append(simulations, *info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan for simulations: %w", err)
	}

	sort.Slice(simulations, func(i, j int) bool {
		return simulations[i].Config.Name < simulations[j].Config.Name
	})
	return simulations, nil
}

// FindSimulation returns the discovered simulation called name
func FindSimulation(simulations []SimulationInfo, name string) (*SimulationInfo, error) {
	for i := range simulations {
		if simulations[i].Config.Name == name {
			return &simulations[i], nil
		}
	}
	return nil, fmt.Errorf("simulation configuration not found for %s", name)
}

// LoadSimulationInfo parses a single descriptor file
func LoadSimulationInfo(path string) (*SimulationInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read simulation config: %w", err)
	}

	var config simulation.SimulationConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse simulation config: %w", err)
	}
	if config.Name == "" {
		return nil, fmt.Errorf("simulation config has no name")
	}

	return &SimulationInfo{
		Path:   filepath.Dir(path),
		Config: config,
	}, nil
}

// findProjectRoot walks up from the working directory to the nearest go.mod
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (no go.mod found)")
		}
		dir = parent
	}
}
