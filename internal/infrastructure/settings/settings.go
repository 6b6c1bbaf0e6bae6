// Package settings loads the hub's own configuration: where the scoreboard
// installation lives, how to reach the supervisor, and the health
// verification budget. Precedence is environment variables over the TOML
// settings file over built-in defaults.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that reads from TOML strings like "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Supervisor holds the connection and restart parameters for the supervisord
// daemon controlling the target process.
type Supervisor struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	Process        string   `toml:"process"`
	RestartTimeout Duration `toml:"restart_timeout"`
}

// Health holds the verification budget polled after every restart. These are
// configuration, not constants: boards with slow data sources need a longer
// leash than a bare clock display.
type Health struct {
	Attempts  int      `toml:"attempts"`
	Interval  Duration `toml:"interval"`
	Timeout   Duration `toml:"timeout"`
	MinUptime Duration `toml:"min_uptime"`
	ProbeAddr string   `toml:"probe_addr"`
}

// Plugins holds plugin catalog parameters.
type Plugins struct {
	IndexURL string `toml:"index_url"`
}

// Settings is the hub's full configuration.
type Settings struct {
	ScoreboardDir string     `toml:"scoreboard_dir"`
	Supervisor    Supervisor `toml:"supervisor"`
	Health        Health     `toml:"health"`
	Plugins       Plugins    `toml:"plugins"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		ScoreboardDir: "/home/pi/nhl-led-scoreboard",
		Supervisor: Supervisor{
			Host:           "127.0.0.1",
			Port:           9001,
			Process:        "scoreboard",
			RestartTimeout: Duration(30 * time.Second),
		},
		Health: Health{
			Attempts:  5,
			Interval:  Duration(2 * time.Second),
			Timeout:   Duration(45 * time.Second),
			MinUptime: Duration(3 * time.Second),
		},
		Plugins: Plugins{
			IndexURL: "https://raw.githubusercontent.com/falkyre/nhl-led-scoreboard/main/plugins_index.json",
		},
	}
}

// DefaultPath returns the standard settings file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "scorehub", "settings.toml"), nil
}

// Load builds settings with precedence env > file > defaults. A missing file
// at the default path is fine; a missing file at an explicitly requested path
// is an error.
func Load(path string, explicit bool) (Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &s); err != nil {
				return Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// Defaults apply.
		default:
			return Settings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	applyEnv(&s)

	if err := s.validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv("SCOREHUB_SCOREBOARD_DIR"); v != "" {
		s.ScoreboardDir = v
	}
	if v := os.Getenv("SCOREHUB_SUPERVISOR_HOST"); v != "" {
		s.Supervisor.Host = v
	}
	if v := os.Getenv("SCOREHUB_SUPERVISOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Supervisor.Port = port
		}
	}
	if v := os.Getenv("SCOREHUB_SUPERVISOR_PROCESS"); v != "" {
		s.Supervisor.Process = v
	}
	envDuration("SCOREHUB_RESTART_TIMEOUT", &s.Supervisor.RestartTimeout)
	if v := os.Getenv("SCOREHUB_HEALTH_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Health.Attempts = n
		}
	}
	envDuration("SCOREHUB_HEALTH_INTERVAL", &s.Health.Interval)
	envDuration("SCOREHUB_HEALTH_TIMEOUT", &s.Health.Timeout)
	envDuration("SCOREHUB_HEALTH_MIN_UPTIME", &s.Health.MinUptime)
	if v := os.Getenv("SCOREHUB_HEALTH_PROBE_ADDR"); v != "" {
		s.Health.ProbeAddr = v
	}
	if v := os.Getenv("SCOREHUB_PLUGIN_INDEX_URL"); v != "" {
		s.Plugins.IndexURL = v
	}
}

func envDuration(name string, dst *Duration) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = Duration(d)
	}
}

func (s Settings) validate() error {
	if s.ScoreboardDir == "" {
		return fmt.Errorf("scoreboard_dir must be set")
	}
	if s.Supervisor.Process == "" {
		return fmt.Errorf("supervisor.process must be set")
	}
	if s.Supervisor.Port < 1 || s.Supervisor.Port > 65535 {
		return fmt.Errorf("supervisor.port %d out of range", s.Supervisor.Port)
	}
	if s.Health.Attempts < 1 {
		return fmt.Errorf("health.attempts must be at least 1")
	}
	if s.Health.Interval <= 0 || s.Health.Timeout <= 0 {
		return fmt.Errorf("health.interval and health.timeout must be positive")
	}
	if s.Supervisor.RestartTimeout <= 0 {
		return fmt.Errorf("supervisor.restart_timeout must be positive")
	}
	return nil
}

// ConfigPath returns the canonical scoreboard config document location.
func (s Settings) ConfigPath() string {
	return filepath.Join(s.ScoreboardDir, "config", "config.json")
}

// IndexPath returns the cached plugin index location.
func (s Settings) IndexPath() string {
	return filepath.Join(s.ScoreboardDir, "plugins_index.json")
}

// VersionPath returns the scoreboard VERSION file location.
func (s Settings) VersionPath() string {
	return filepath.Join(s.ScoreboardDir, "VERSION")
}
