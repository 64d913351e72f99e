// Package config implements the daemon's on-disk configuration: a single
// JSON document covering the listen address, dispatch mode, shared-memory
// directory, authorization policy and log directory, loaded once at
// startup and optionally overridden by environment variables.
//
// Grounded on the teacher's cmd/authn daemon (flag-supplied config
// directory, env-var fallback, a package-level Conf loaded once via its
// metadata codec) adapted from authn's bespoke jsp metadata format to a
// plain JSON document decoded with jsoniter, the teacher's own drop-in
// replacement for encoding/json (see typereg.Registry's use of the same
// library for type-descriptor persistence).
package config

import (
	"fmt"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/pjrmi/pjrmi-go/wpool"
)

// Env names the environment variables that override a loaded config's
// fields, mirroring the teacher's api/env convention of one well-known
// variable per tunable.
const (
	EnvConfigPath = "PJRMI_CONF_FILE"
	EnvListen     = "PJRMI_LISTEN"
	EnvLogDir     = "PJRMI_LOG_DIR"
	EnvShmDir     = "PJRMI_SHM_DIR"
	EnvDiagListen = "PJRMI_DIAG_LISTEN"
)

// Duration unmarshals from either a JSON number of seconds or a
// time.ParseDuration string ("10m", "1h30m"), the two spellings the
// teacher's own duration configs accept.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := jsoniter.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		*d = Duration(time.Duration(v) * time.Second)
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("config: duration must be a number of seconds or a duration string")
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return jsoniter.Marshal(time.Duration(d).String())
}

// AuthzConfig mirrors authz.Default's tunables so they can be supplied from
// the config file rather than hardcoded at construction.
type AuthzConfig struct {
	AllowRemote    bool     `json:"allow_remote"`
	BlockedClasses []string `json:"blocked_classes,omitempty"`
}

// ShmConfig controls the shared-memory side channel.
type ShmConfig struct {
	Enabled bool     `json:"enabled"`
	Dir     string   `json:"dir"`
	MaxAge  Duration `json:"max_age,omitempty"`
}

// LogConfig controls nlog's output destination.
type LogConfig struct {
	Dir string `json:"dir"`
}

// DiagConfig controls the read-only HTTP side-server (/healthz, /metrics,
// /debug/types). Listen empty disables it.
type DiagConfig struct {
	Listen string `json:"listen,omitempty"`
}

// Config is the daemon's full configuration document.
type Config struct {
	// Name identifies this server in the handshake's server-hello and in
	// log lines.
	Name string `json:"name"`
	// Listen is the TCP address to accept connections on, e.g.
	// "0.0.0.0:10017".
	Listen string `json:"listen"`
	// Mode is "direct" or "pooled"; see wpool.Mode.
	Mode string `json:"mode"`
	// MaxFreeWorkers bounds each pooled-mode connection's worker free
	// list; ignored in direct mode.
	MaxFreeWorkers int `json:"max_free_workers,omitempty"`
	// ClassInjectionEnabled is decoded from the file, but cmd/pjrmid does
	// not read it: the server pjrmid builds has no Injector, so class
	// injection is unavailable whatever its value.
	ClassInjectionEnabled bool `json:"class_injection_enabled"`

	Authz AuthzConfig `json:"authz"`
	Shm   ShmConfig   `json:"shm"`
	Log   LogConfig   `json:"log"`
	Diag  DiagConfig  `json:"diag"`
}

// Default returns the conservative built-in configuration: direct-mode
// dispatch, local connections only, shared memory and class injection
// both disabled.
func Default() *Config {
	return &Config{
		Name:   "pjrmid",
		Listen: "127.0.0.1:10017",
		Mode:   "direct",
		Log:    LogConfig{Dir: "/var/log/pjrmid"},
		Shm:    ShmConfig{Enabled: false, Dir: "/dev/shm/pjrmi"},
	}
}

// Load reads and decodes a Config from path, falling back to Default when
// path is empty (a from-scratch deployment with no config file yet).
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := jsoniter.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides the handful of fields the daemon's environment
// variables are allowed to set, taking precedence over the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogDir); v != "" {
		c.Log.Dir = v
	}
	if v := os.Getenv(EnvShmDir); v != "" {
		c.Shm.Dir = v
		c.Shm.Enabled = true
	}
	if v := os.Getenv(EnvDiagListen); v != "" {
		c.Diag.Listen = v
	}
}

// Validate rejects a config that would otherwise fail later in a more
// confusing way (an empty listen address, an unrecognized dispatch mode).
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	switch c.Mode {
	case "direct", "pooled":
	default:
		return fmt.Errorf("config: mode must be %q or %q, got %q", "direct", "pooled", c.Mode)
	}
	if c.Shm.Enabled && c.Shm.Dir == "" {
		return fmt.Errorf("config: shm.dir must not be empty when shm.enabled is true")
	}
	return nil
}

// DispatchMode translates the config's string Mode into a wpool.Mode.
func (c *Config) DispatchMode() wpool.Mode {
	if c.Mode == "pooled" {
		return wpool.Pooled
	}
	return wpool.Direct
}
