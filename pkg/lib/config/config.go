// Package config loads the bot configuration from a YAML file and
// TUNNELBOT_* environment variables through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib"
	"github.com/SanjoDeundiak/ssh-proxy-bot/pkg/lib/supervisor"
)

// EnvPrefix prefixes environment overrides, e.g. TUNNELBOT_OPERATOR_ID for operator.id.
const EnvPrefix = "TUNNELBOT"

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "config.yml"

// DefaultCommandTemplate opens a reverse tunnel from remote_port on the
// server back to local_port on this host.
const DefaultCommandTemplate = "exec ssh -N -o ExitOnForwardFailure=yes -R {{.RemotePort}}:localhost:{{.LocalPort}} {{if .User}}{{.User}}@{{end}}{{.Host}}"

// Config is the complete bot configuration.
type Config struct {
	Operator  OperatorConfig  `mapstructure:"operator" yaml:"operator"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Tunnel    TunnelConfig    `mapstructure:"tunnel" yaml:"tunnel"`
	Transport TransportConfig `mapstructure:"transport" yaml:"transport"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// OperatorConfig names the single identity allowed to control the tunnel.
type OperatorConfig struct {
	ID string `mapstructure:"id" yaml:"id"`
}

// ServerConfig describes the remote end of the reverse tunnel.
type ServerConfig struct {
	IP         string `mapstructure:"ip" yaml:"ip"`
	RemotePort int    `mapstructure:"remote_port" yaml:"remote_port"`
	LocalPort  int    `mapstructure:"local_port" yaml:"local_port"`
	User       string `mapstructure:"user" yaml:"user"`
}

// TunnelConfig controls how the tunnel process is launched and drained.
type TunnelConfig struct {
	Shell           string       `mapstructure:"shell" yaml:"shell"`
	CommandTemplate string       `mapstructure:"command_template" yaml:"command_template"`
	DrainWindowMs   int          `mapstructure:"drain_window_ms" yaml:"drain_window_ms"`
	PollIntervalMs  int          `mapstructure:"poll_interval_ms" yaml:"poll_interval_ms"`
	StopTimeoutMs   int          `mapstructure:"stop_timeout_ms" yaml:"stop_timeout_ms"`
	Cgroup          CgroupConfig `mapstructure:"cgroup" yaml:"cgroup"`
}

// CgroupConfig limits the tunnel's resources when running as root on Linux.
type CgroupConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	Root         string `mapstructure:"root" yaml:"root"`
	CPUWeight    int    `mapstructure:"cpu_weight" yaml:"cpu_weight"`
	IOWeight     int    `mapstructure:"io_weight" yaml:"io_weight"`
	MemoryHighMB int    `mapstructure:"memory_high_mb" yaml:"memory_high_mb"`
}

// TransportConfig configures the mTLS command endpoint. The TLS values hold
// either PEM contents or paths to PEM files.
type TransportConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
	TLSCert string `mapstructure:"tls_cert" yaml:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key" yaml:"tls_key"`
	CACert  string `mapstructure:"ca_cert" yaml:"ca_cert"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns the configuration used for keys absent from file and env.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			LocalPort: 22,
		},
		Tunnel: TunnelConfig{
			Shell:           supervisor.DefaultShell,
			CommandTemplate: DefaultCommandTemplate,
			DrainWindowMs:   int(supervisor.DefaultDrainWindow / time.Millisecond),
			PollIntervalMs:  int(supervisor.DefaultPollInterval / time.Millisecond),
			StopTimeoutMs:   int(supervisor.DefaultStopTimeout / time.Millisecond),
			Cgroup: CgroupConfig{
				Enabled:      false,
				Root:         supervisor.DefaultCgroupRoot,
				CPUWeight:    100,
				IOWeight:     100,
				MemoryHighMB: 512,
			},
		},
		Transport: TransportConfig{
			Address: "localhost:50051",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// SetDefaults registers default values with v. Every key needs a default so
// that environment overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("operator.id", d.Operator.ID)

	v.SetDefault("server.ip", d.Server.IP)
	v.SetDefault("server.remote_port", d.Server.RemotePort)
	v.SetDefault("server.local_port", d.Server.LocalPort)
	v.SetDefault("server.user", d.Server.User)

	v.SetDefault("tunnel.shell", d.Tunnel.Shell)
	v.SetDefault("tunnel.command_template", d.Tunnel.CommandTemplate)
	v.SetDefault("tunnel.drain_window_ms", d.Tunnel.DrainWindowMs)
	v.SetDefault("tunnel.poll_interval_ms", d.Tunnel.PollIntervalMs)
	v.SetDefault("tunnel.stop_timeout_ms", d.Tunnel.StopTimeoutMs)
	v.SetDefault("tunnel.cgroup.enabled", d.Tunnel.Cgroup.Enabled)
	v.SetDefault("tunnel.cgroup.root", d.Tunnel.Cgroup.Root)
	v.SetDefault("tunnel.cgroup.cpu_weight", d.Tunnel.Cgroup.CPUWeight)
	v.SetDefault("tunnel.cgroup.io_weight", d.Tunnel.Cgroup.IOWeight)
	v.SetDefault("tunnel.cgroup.memory_high_mb", d.Tunnel.Cgroup.MemoryHighMB)

	v.SetDefault("transport.address", d.Transport.Address)
	v.SetDefault("transport.tls_cert", d.Transport.TLSCert)
	v.SetDefault("transport.tls_key", d.Transport.TLSKey)
	v.SetDefault("transport.ca_cert", d.Transport.CACert)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
}

// NewViper returns a viper instance with defaults, env overrides and the
// config file read in. An explicit path must exist; the default file is optional.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	// TUNNELBOT_SERVER_REMOTE_PORT for server.remote_port
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = DefaultConfigFile
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return v, nil
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return v, nil
}

// Decode reads the configuration from v without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return cfg, nil
}

// LoadTransport reads only the transport section, for clients.
func LoadTransport(v *viper.Viper) (*TransportConfig, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if errs := cfg.Transport.validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg.Transport, nil
}

// OperatorIdentity returns the configured operator as an identity.
func (c *Config) OperatorIdentity() lib.Identity {
	return lib.Identity(strings.TrimSpace(c.Operator.ID))
}

// SupervisorOptions maps the tunnel section onto supervisor options.
func (c *Config) SupervisorOptions() supervisor.Options {
	t := c.Tunnel
	return supervisor.Options{
		Shell:        t.Shell,
		DrainWindow:  time.Duration(t.DrainWindowMs) * time.Millisecond,
		PollInterval: time.Duration(t.PollIntervalMs) * time.Millisecond,
		StopTimeout:  time.Duration(t.StopTimeoutMs) * time.Millisecond,
		Cgroup: supervisor.CgroupOptions{
			Enabled:    t.Cgroup.Enabled,
			Root:       t.Cgroup.Root,
			CPUWeight:  t.Cgroup.CPUWeight,
			IOWeight:   t.Cgroup.IOWeight,
			MemoryHigh: int64(t.Cgroup.MemoryHighMB) * 1024 * 1024,
		},
	}
}

// ReadPEM returns value itself if it holds PEM data, otherwise the contents
// of the file it names.
func ReadPEM(value string) ([]byte, error) {
	if strings.Contains(value, "-----BEGIN") {
		return []byte(value), nil
	}
	data, err := os.ReadFile(value)
	if err != nil {
		return nil, fmt.Errorf("read PEM file: %w", err)
	}
	return data, nil
}

// Redacted returns a copy safe to print: an inline private key is masked.
func (c *Config) Redacted() *Config {
	out := *c
	if strings.Contains(out.Transport.TLSKey, "-----BEGIN") {
		out.Transport.TLSKey = "<redacted>"
	}
	return &out
}
