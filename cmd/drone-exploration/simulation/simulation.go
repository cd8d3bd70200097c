package simulation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/config"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/core"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/operator"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/reporting"
	"github.com/picogrid/swarm-exploration/cmd/drone-exploration/telemetry"
	"github.com/picogrid/swarm-exploration/pkg/logger"
	"github.com/picogrid/swarm-exploration/pkg/simulation"
)

// Name is the registry name of the simulation
const Name = "drone-exploration"

// maxViewWidth bounds the rendered field in terminal columns
const maxViewWidth = 100

// DroneExplorationSimulation runs a swarm exploration engine alongside an
// operator console that resolves detections
type DroneExplorationSimulation struct {
	config *config.SimulationConfig

	// Output for the simulation event log; stdout when nil
	out io.Writer

	// Prompter for the interactive policy; a survey prompt when nil
	prompter operator.Prompter

	mu         sync.Mutex
	cancel     context.CancelFunc
	engine     *core.Engine
	console    *operator.Console
	simLogger  *reporting.SimulationLogger
	reportPath string
}

// NewDroneExplorationSimulation creates a new instance of the exploration simulation
func NewDroneExplorationSimulation() simulation.Simulation {
	return &DroneExplorationSimulation{}
}

// Name returns the simulation name
func (s *DroneExplorationSimulation) Name() string {
	return Name
}

// Description returns the simulation description
func (s *DroneExplorationSimulation) Description() string {
	return "Autonomous drone swarm explores a field region by region while an operator verifies target detections"
}

// Configure loads the configuration file (param "config_path", optional) and
// applies the remaining parameters as overrides
func (s *DroneExplorationSimulation) Configure(params map[string]interface{}) error {
	logger.Info("Configuring drone exploration simulation...")

	path, _ := params["config_path"].(string)

	overrides := make(map[string]interface{}, len(params))
	for k, v := range params {
		if k != "config_path" {
			overrides[k] = v
		}
	}

	cfg, err := config.LoadConfigWithOverrides(path, overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.ConsoleLevel))
	logger.Debugf("%s", cfg)
	logger.Infof("Configuration: %d agents on a %dx%d field, operator policy %s",
		cfg.Swarm.NumAgents, cfg.Field.Width, cfg.Field.Height, cfg.Operator.Policy)

	s.config = cfg
	return nil
}

// Run executes the simulation until the configured duration elapses or ctx is
// cancelled
func (s *DroneExplorationSimulation) Run(ctx context.Context) error {
	if s.config == nil {
		return fmt.Errorf("simulation is not configured")
	}
	cfg := s.config

	logger.Infof("Starting %s simulation", s.Name())

	runID := uuid.New().String()
	simLogger := reporting.NewSimulationLogger(runID, s.out)
	runLog := runID[:8]

	metrics, closeMetrics, err := newMetrics(cfg.Metrics, runID)
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer closeMetrics()

	channel := core.NewControlChannel()
	engineOpts := []core.Option{
		core.WithChannel(channel),
		core.WithObserver(simLogger),
		core.WithLogger(logger.WithPrefix("engine").WithField("run", runLog)),
		core.WithMeterProvider(metrics.MeterProvider()),
	}
	if cfg.Logging.RenderView {
		engineOpts = append(engineOpts, core.WithRenderer(
			reporting.NewASCIIRenderer(cfg.Field.Width, maxViewWidth, !color.NoColor)))
	}

	engine, err := core.NewEngine(cfg.Params(), engineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	console, err := s.newConsole(channel, simLogger, runLog)
	if err != nil {
		return fmt.Errorf("failed to create operator console: %w", err)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if cfg.Simulation.Duration > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cfg.Simulation.Duration)
		logger.Infof("Simulation will stop after %v", cfg.Simulation.Duration)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.engine = engine
	s.console = console
	s.simLogger = simLogger
	s.mu.Unlock()

	logger.Infof("Field %dx%d with %d targets, %d regions, %d agents",
		cfg.Field.Width, cfg.Field.Height, len(engine.Field().Targets()), engine.TotalRegions(), cfg.Swarm.NumAgents)

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := engine.Run(runCtx); err != nil {
			errs <- fmt.Errorf("engine stopped: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := console.Run(runCtx); err != nil {
			errs <- fmt.Errorf("operator console stopped: %w", err)
		}
	}()

	wg.Wait()
	close(errs)

	var runErr error
	for err := range errs {
		logger.Error(err)
		if runErr == nil {
			runErr = err
		}
	}

	s.finish(engine, console, simLogger)
	return runErr
}

// Stop cancels a running simulation. It is safe to call more than once.
func (s *DroneExplorationSimulation) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

// Engine returns the engine of the current or last run
func (s *DroneExplorationSimulation) Engine() *core.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Console returns the operator console of the current or last run
func (s *DroneExplorationSimulation) Console() *operator.Console {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.console
}

// ReportPath returns the path of the last saved mission report
func (s *DroneExplorationSimulation) ReportPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reportPath
}

func (s *DroneExplorationSimulation) newConsole(ch *core.ControlChannel, simLogger *reporting.SimulationLogger, runLog string) (*operator.Console, error) {
	cfg := s.config
	policy := cfg.Operator.Policy

	opts := []operator.Option{
		operator.WithLogger(logger.WithPrefix("operator").WithField("run", runLog)),
		operator.WithRecorder(simLogger),
		operator.WithSnapshotHandler(func(snap core.Snapshot) {
			if cfg.Logging.ShowProgress {
				simLogger.LogProgress(snap)
			}
			// the interactive prompt prints the view itself
			if cfg.Logging.RenderView && policy != config.PolicyInteractive && len(snap.View) > 0 {
				fmt.Fprintf(s.output(), "%s\n", snap.View)
			}
		}),
	}

	if policy == config.PolicyInteractive {
		prompter := s.prompter
		if prompter == nil {
			if !operator.IsInteractive() {
				logger.Warn("Interactive operator requires a terminal, holding detections instead")
				policy = config.PolicyHold
			} else {
				prompter = &operator.SurveyPrompter{View: s.output()}
			}
		}
		if prompter != nil {
			opts = append(opts, operator.WithPrompter(prompter))
		}
	}

	return operator.NewConsole(ch, operator.Config{
		Policy:       policy,
		PollInterval: cfg.Operator.PollInterval,
	}, opts...)
}

// finish prints the run summary and writes the mission report
func (s *DroneExplorationSimulation) finish(engine *core.Engine, console *operator.Console, simLogger *reporting.SimulationLogger) {
	final := engine.Snapshot()

	logger.LogSection("Simulation Complete")
	logger.LogKeyValue("Run ID", simLogger.SimulationID())
	logger.LogKeyValue("Ticks", final.Tick)
	logger.LogKeyValue("Coverage", fmt.Sprintf("%.1f%% (%d/%d regions)", final.Coverage()*100, final.ExploredRegions, final.TotalRegions))
	logger.LogKeyValue("Detections", engine.Detections())
	logger.LogKeyValue("Confirmed targets", len(console.Confirmed()))
	logger.LogKeyValue("Pending investigations", len(console.Queue()))
	if overruns := engine.Overruns(); overruns > 0 {
		logger.LogKeyValue("Tick overruns", overruns)
	}

	stats := engine.Channel().Stats()
	logger.Debugf("Channel: %d commands sent, %d drained, %d outbound sent, %d polled",
		stats.CommandsSent, stats.CommandsDrained, stats.OutboundSent, stats.OutboundPolled)

	simLogger.PrintSummary()

	if !s.config.Logging.EnableReport {
		return
	}

	generator := reporting.NewReportGenerator(simLogger, reporting.ReportConfig{
		OutputDir:        s.config.Logging.ReportOutputPath,
		Format:           s.config.Logging.ReportFormat,
		SimulationConfig: s.configSummary(),
	})
	path, err := generator.Save(generator.Generate(final))
	if err != nil {
		simLogger.LogError("Failed to save mission report", err, nil)
		return
	}

	s.mu.Lock()
	s.reportPath = path
	s.mu.Unlock()
}

func (s *DroneExplorationSimulation) configSummary() map[string]interface{} {
	cfg := s.config
	return map[string]interface{}{
		"field_size":        fmt.Sprintf("%dx%d", cfg.Field.Width, cfg.Field.Height),
		"num_targets":       cfg.Field.NumTargets,
		"region_size":       cfg.Field.RegionSize,
		"num_agents":        cfg.Swarm.NumAgents,
		"initial_energy":    cfg.Swarm.InitialEnergy,
		"detection_radius":  cfg.Exploration.DetectionRadius,
		"explore_threshold": cfg.Exploration.ExploreThreshold,
		"assignment":        cfg.Exploration.Assignment,
		"operator_policy":   cfg.Operator.Policy,
		"tick_interval":     cfg.Simulation.TickInterval.String(),
		"duration":          cfg.Simulation.Duration.String(),
		"seed":              cfg.Simulation.Seed,
	}
}

// newMetrics builds the metrics provider for one run. The returned func
// flushes the exporter and closes its output file.
func newMetrics(cfg config.MetricsConfig, runID string) (*telemetry.Provider, func(), error) {
	if !cfg.Enabled {
		p, err := telemetry.New(telemetry.Config{})
		return p, func() {}, err
	}

	var (
		w    io.Writer = os.Stderr
		file *os.File
	)
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create metrics directory: %w", err)
		}
		f, err := os.Create(cfg.OutputPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create metrics file: %w", err)
		}
		w, file = f, f
	}

	p, err := telemetry.New(telemetry.Config{
		Enabled:        true,
		ServiceName:    Name,
		RunID:          runID,
		ExportInterval: cfg.ExportInterval,
		Writer:         w,
	})
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, nil, err
	}

	logger.Infof("Exporting metrics every %v", cfg.ExportInterval)
	return p, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.Shutdown(ctx); err != nil {
			logger.Warnf("Failed to export final metrics: %v", err)
		}
		if file != nil {
			file.Close()
		}
	}, nil
}

func (s *DroneExplorationSimulation) output() io.Writer {
	if s.out != nil {
		return s.out
	}
	return os.Stdout
}

// init registers the simulation
func init() {
	if err := simulation.DefaultRegistry.Register(Name, NewDroneExplorationSimulation); err != nil {
		logger.Errorf("Failed to register drone exploration simulation: %v", err)
	}
}
