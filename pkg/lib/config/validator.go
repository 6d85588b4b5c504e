package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// Validate checks the Config and returns every problem found.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	if c.OperatorIdentity() == "" {
		errs = append(errs, ValidationError{"operator.id", c.Operator.ID, "must be set"})
	}

	if strings.TrimSpace(c.Server.IP) == "" {
		errs = append(errs, ValidationError{"server.ip", c.Server.IP, "must be set"})
	}
	if !validPort(c.Server.RemotePort) {
		errs = append(errs, ValidationError{"server.remote_port", c.Server.RemotePort, "must be between 1 and 65535"})
	}
	if !validPort(c.Server.LocalPort) {
		errs = append(errs, ValidationError{"server.local_port", c.Server.LocalPort, "must be between 1 and 65535"})
	}

	t := c.Tunnel
	if strings.TrimSpace(t.Shell) == "" {
		errs = append(errs, ValidationError{"tunnel.shell", t.Shell, "must be set"})
	}
	if _, err := c.LaunchCommand(); err != nil {
		errs = append(errs, ValidationError{"tunnel.command_template", t.CommandTemplate, err.Error()})
	}
	if t.DrainWindowMs <= 0 {
		errs = append(errs, ValidationError{"tunnel.drain_window_ms", t.DrainWindowMs, "must be positive"})
	}
	if t.PollIntervalMs <= 0 || t.PollIntervalMs > t.DrainWindowMs {
		errs = append(errs, ValidationError{"tunnel.poll_interval_ms", t.PollIntervalMs, "must be positive and not exceed drain_window_ms"})
	}
	if t.StopTimeoutMs <= 0 {
		errs = append(errs, ValidationError{"tunnel.stop_timeout_ms", t.StopTimeoutMs, "must be positive"})
	}
	if t.Cgroup.Enabled {
		if strings.TrimSpace(t.Cgroup.Root) == "" || strings.Contains(t.Cgroup.Root, "..") {
			errs = append(errs, ValidationError{"tunnel.cgroup.root", t.Cgroup.Root, "must be a relative cgroup name"})
		}
		if t.Cgroup.CPUWeight < 0 || t.Cgroup.CPUWeight > 10000 {
			errs = append(errs, ValidationError{"tunnel.cgroup.cpu_weight", t.Cgroup.CPUWeight, "must be between 0 and 10000"})
		}
		if t.Cgroup.IOWeight < 0 || t.Cgroup.IOWeight > 10000 {
			errs = append(errs, ValidationError{"tunnel.cgroup.io_weight", t.Cgroup.IOWeight, "must be between 0 and 10000"})
		}
		if t.Cgroup.MemoryHighMB < 0 {
			errs = append(errs, ValidationError{"tunnel.cgroup.memory_high_mb", t.Cgroup.MemoryHighMB, "must not be negative"})
		}
	}

	errs = append(errs, c.Transport.validate()...)

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{"logging.level", c.Logging.Level, fmt.Sprintf("must be one of %v", ValidLogLevels())})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errs = append(errs, ValidationError{"logging.format", c.Logging.Format, fmt.Sprintf("must be one of %v", ValidLogFormats())})
	}

	return errs
}

func (t TransportConfig) validate() ValidationErrors {
	var errs ValidationErrors
	if strings.TrimSpace(t.Address) == "" {
		errs = append(errs, ValidationError{"transport.address", t.Address, "must be set"})
	}
	if strings.TrimSpace(t.TLSCert) == "" {
		errs = append(errs, ValidationError{"transport.tls_cert", "", "must be set"})
	}
	if strings.TrimSpace(t.TLSKey) == "" {
		errs = append(errs, ValidationError{"transport.tls_key", "", "must be set"})
	}
	if strings.TrimSpace(t.CACert) == "" {
		errs = append(errs, ValidationError{"transport.ca_cert", "", "must be set"})
	}
	return errs
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}
