// Package config parses the gateway's YAML configuration and wires it into
// the live registry of model adapters, tool servers and workspace listeners.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML configuration: named models, named MCP tool servers, and
// workspaces binding them to HTTP paths.
type File struct {
	Models     map[string]ModelConfig     `yaml:"models"`
	MCPs       map[string]MCPConfig       `yaml:"mcps"`
	Workspaces map[string]WorkspaceConfig `yaml:"workspaces"`
}

type ModelConfig struct {
	Type string      `yaml:"type"` // openai | azure | anthropic | gemini
	URL  string      `yaml:"url"`
	Auth *AuthConfig `yaml:"auth"`

	// Provider-specific extras.
	Model            string `yaml:"model"`             // openai, anthropic
	APIVersion       string `yaml:"api-version"`       // azure
	AnthropicVersion string `yaml:"anthropic-version"` // anthropic
}

type AuthConfig struct {
	Type   string      `yaml:"type"` // apikey | oauth2
	Config AuthDetails `yaml:"config"`
}

type AuthDetails struct {
	// apikey
	Location string `yaml:"location"` // header | parameter
	Name     string `yaml:"name"`
	Value    string `yaml:"value"`
	Prefix   string `yaml:"prefix"`

	// oauth2
	URL          string `yaml:"url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	Scope        string `yaml:"scope"`
}

// MCPConfig is either a local server (command) or a remote one (url).
type MCPConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`

	URL string `yaml:"url"`
	SSE bool   `yaml:"sse"`

	Filter *FilterConfig `yaml:"filter"`
	// Accepted for forward compatibility; MCP transports are currently
	// unauthenticated.
	Auth *AuthConfig `yaml:"auth"`
}

type FilterConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type WorkspaceConfig struct {
	Model  string         `yaml:"model"`
	MCPs   []string       `yaml:"mcps"`
	Config ListenerConfig `yaml:"config"`
}

type ListenerConfig struct {
	Path    string `yaml:"path"`
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// Load reads and parses the YAML configuration file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var file File
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(file.Models) == 0 {
		return nil, fmt.Errorf("config defines no models")
	}
	if len(file.Workspaces) == 0 {
		return nil, fmt.Errorf("config defines no workspaces")
	}
	return &file, nil
}
