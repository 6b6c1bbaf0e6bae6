// Package di wires the hub's components together. Everything is an
// explicitly passed handle; nothing in the repository reaches for a module
// global.
package di

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"scorehub.io/cli/internal/application/orchestrator"
	"scorehub.io/cli/internal/core/ports"
	"scorehub.io/cli/internal/core/schema"
	configstore "scorehub.io/cli/internal/infrastructure/config"
	"scorehub.io/cli/internal/infrastructure/health"
	"scorehub.io/cli/internal/infrastructure/registry"
	"scorehub.io/cli/internal/infrastructure/settings"
	"scorehub.io/cli/internal/infrastructure/supervisor"
)

// Container holds every constructed dependency for the CLI commands.
type Container struct {
	Settings     settings.Settings
	Logger       hclog.Logger
	Store        *configstore.FileStore
	Registry     *registry.FileRegistry
	Catalog      *registry.Catalog
	Supervisor   *supervisor.Client
	Probe        ports.HealthProbe
	Orchestrator *orchestrator.Orchestrator
}

// Options adjust container construction from CLI flags.
type Options struct {
	SettingsPath  string
	ScoreboardDir string
	Debug         bool
}

// NewContainer loads settings and builds the full dependency graph.
func NewContainer(opts Options) (*Container, error) {
	path := opts.SettingsPath
	explicit := path != ""
	if path == "" {
		var err error
		path, err = settings.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to locate settings: %w", err)
		}
	}
	cfg, err := settings.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if opts.ScoreboardDir != "" {
		cfg.ScoreboardDir = opts.ScoreboardDir
	}

	level := hclog.Info
	if opts.Debug {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "scorehub",
		Level:  level,
		Output: os.Stderr,
	})

	c := &Container{Settings: cfg, Logger: logger}
	if err := c.build(); err != nil {
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return c, nil
}

func (c *Container) build() error {
	cfg := c.Settings

	c.Store = configstore.NewFileStore(cfg.ConfigPath(), c.Logger)
	c.Registry = registry.New(cfg.ScoreboardDir, c.Logger)
	c.Catalog = registry.NewCatalog(cfg.IndexPath(), cfg.Plugins.IndexURL, c.Logger)

	sup, err := supervisor.New(cfg.Supervisor.Host, cfg.Supervisor.Port, c.Logger)
	if err != nil {
		return err
	}
	c.Supervisor = sup

	probes := health.MultiProbe{
		health.NewSupervisorProbe(sup, cfg.Supervisor.Process, cfg.Health.MinUptime.Std(), c.Logger),
	}
	if cfg.Health.ProbeAddr != "" {
		probes = append(probes, health.NewTCPProbe(cfg.Health.ProbeAddr, cfg.Health.Interval.Std()))
	}
	c.Probe = probes

	c.Orchestrator = orchestrator.New(
		c.Store,
		c.Registry,
		c.Supervisor,
		c.Probe,
		schema.Base(),
		cfg.Supervisor.Process,
		cfg.Supervisor.RestartTimeout.Std(),
		orchestrator.VerifyConfig{
			Attempts: cfg.Health.Attempts,
			Interval: cfg.Health.Interval.Std(),
			Timeout:  cfg.Health.Timeout.Std(),
		},
		c.Logger,
	)
	return nil
}

// EnsureSeeded creates the canonical config document on first run.
func (c *Container) EnsureSeeded() error {
	if _, err := c.Store.Read(); err == nil {
		return nil
	}
	doc, err := schema.SeedDocument()
	if err != nil {
		return err
	}
	c.Logger.Info("first run: seeding default configuration")
	return c.Store.Seed(doc)
}
