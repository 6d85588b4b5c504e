package config

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// launchParams are the fields available to tunnel.command_template.
type launchParams struct {
	Host       string
	RemotePort int
	LocalPort  int
	User       string
}

// LaunchCommand renders the shell command that opens the tunnel. It is
// rendered once at startup and treated as opaque afterwards.
func (c *Config) LaunchCommand() (string, error) {
	tmpl, err := template.New("command_template").Option("missingkey=error").Parse(c.Tunnel.CommandTemplate)
	if err != nil {
		return "", fmt.Errorf("parse command template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, launchParams{
		Host:       c.Server.IP,
		RemotePort: c.Server.RemotePort,
		LocalPort:  c.Server.LocalPort,
		User:       c.Server.User,
	})
	if err != nil {
		return "", fmt.Errorf("render command template: %w", err)
	}

	cmd := strings.TrimSpace(buf.String())
	if cmd == "" {
		return "", fmt.Errorf("command template rendered an empty command")
	}
	return cmd, nil
}
