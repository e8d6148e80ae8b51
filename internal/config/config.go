// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package config reads the deployment manager daemon configuration.
package config

import (
	"os"
	"time"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/juju/deploymgr/core/instance"
	"github.com/juju/deploymgr/internal/messaging/natsbus"
	"github.com/juju/deploymgr/internal/model"
)

// Transport kinds.
const (
	TransportNATS   = "nats"
	TransportMemory = "memory"
)

// BackendDummy is the in-memory provisioning backend kind.
const BackendDummy = "dummy"

// Config is the daemon configuration.
type Config struct {
	// Logging is a loggo configuration string.
	Logging string `yaml:"logging"`

	FlushInterval     time.Duration `yaml:"flush-interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval"`
	ProbeTimeout      time.Duration `yaml:"probe-timeout"`

	Transport    Transport    `yaml:"transport"`
	Metrics      Metrics      `yaml:"metrics"`
	Journal      Journal      `yaml:"journal"`
	Tracing      Tracing      `yaml:"tracing"`
	Provisioning Provisioning `yaml:"provisioning"`

	// Components enables model rules. Without components every
	// placement is accepted.
	Components []model.Component `yaml:"components,omitempty"`

	Applications []Application `yaml:"applications,omitempty"`
}

// Transport configures the message bus.
type Transport struct {
	Kind          string        `yaml:"kind"`
	URL           string        `yaml:"url,omitempty"`
	Prefix        string        `yaml:"prefix,omitempty"`
	ReconnectWait time.Duration `yaml:"reconnect-wait,omitempty"`
}

// Metrics configures the metrics endpoint. An empty address disables
// it.
type Metrics struct {
	Address string `yaml:"address,omitempty"`
}

// Journal configures the status change journal. An empty path
// disables it.
type Journal struct {
	Path          string        `yaml:"path,omitempty"`
	BatchSize     int           `yaml:"batch-size"`
	FlushInterval time.Duration `yaml:"flush-interval"`
}

// Tracing configures span export. An empty exporter disables it.
type Tracing struct {
	// Exporter is "otlp" or "stdout".
	Exporter string `yaml:"exporter,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Insecure bool   `yaml:"insecure,omitempty"`
}

// Provisioning configures the provisioning backends.
type Provisioning struct {
	// Backends maps a backend name to its kind.
	Backends map[string]string `yaml:"backends"`

	// Default names the backend used for unmapped components.
	Default string `yaml:"default,omitempty"`

	// Components maps a root component to a backend name.
	Components map[string]string `yaml:"components,omitempty"`

	DestroyAttempts int           `yaml:"destroy-attempts"`
	DestroyDelay    time.Duration `yaml:"destroy-delay"`
}

// Application is an application managed from start up.
type Application struct {
	Name      string     `yaml:"name"`
	Instances []Instance `yaml:"instances"`

	// Deploy deploys and starts every instance once loaded.
	Deploy bool `yaml:"deploy,omitempty"`
}

// Instance is one node of an application tree.
type Instance struct {
	Name      string            `yaml:"name"`
	Component string            `yaml:"component"`
	Data      map[string]string `yaml:"data,omitempty"`
	Exports   map[string]string `yaml:"exports,omitempty"`
	Children  []Instance        `yaml:"children,omitempty"`
}

// Default returns the configuration used for unset values.
func Default() Config {
	return Config{
		Logging:           "<root>=INFO",
		FlushInterval:     10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ProbeTimeout:      5 * time.Second,
		Transport: Transport{
			Kind:          TransportMemory,
			Prefix:        natsbus.DefaultPrefix,
			ReconnectWait: 2 * time.Second,
		},
		Journal: Journal{
			BatchSize:     64,
			FlushInterval: time.Second,
		},
		Provisioning: Provisioning{
			Backends:        map[string]string{BackendDummy: BackendDummy},
			Default:         BackendDummy,
			DestroyAttempts: 3,
			DestroyDelay:    time.Second,
		},
	}
}

// Read reads and validates the configuration file at path.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Trace(err)
	}
	cfg, err := Parse(data)
	return cfg, errors.Annotatef(err, "reading %s", path)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

// Validate ensures that the config values are valid.
func (c Config) Validate() error {
	if c.FlushInterval <= 0 {
		return errors.NotValidf("flush-interval %v", c.FlushInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return errors.NotValidf("heartbeat-interval %v", c.HeartbeatInterval)
	}
	if c.ProbeTimeout <= 0 || c.ProbeTimeout > c.HeartbeatInterval {
		return errors.NotValidf("probe-timeout %v", c.ProbeTimeout)
	}
	switch c.Transport.Kind {
	case TransportMemory:
	case TransportNATS:
		if c.Transport.URL == "" {
			return errors.NotValidf("nats transport without url")
		}
	default:
		return errors.NotValidf("transport kind %q", c.Transport.Kind)
	}
	if c.Journal.Path != "" {
		if c.Journal.BatchSize < 1 {
			return errors.NotValidf("journal batch-size %d", c.Journal.BatchSize)
		}
		if c.Journal.FlushInterval <= 0 {
			return errors.NotValidf("journal flush-interval %v", c.Journal.FlushInterval)
		}
	}
	switch c.Tracing.Exporter {
	case "", "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			return errors.NotValidf("otlp tracing without endpoint")
		}
	default:
		return errors.NotValidf("tracing exporter %q", c.Tracing.Exporter)
	}
	if err := c.Provisioning.Validate(); err != nil {
		return errors.Trace(err)
	}

	names := set.NewStrings()
	for _, app := range c.Applications {
		if app.Name == "" {
			return errors.NotValidf("application without name")
		}
		if names.Contains(app.Name) {
			return errors.NotValidf("duplicate application %q", app.Name)
		}
		names.Add(app.Name)
	}
	return nil
}

// Validate ensures that the provisioning values are valid.
func (p Provisioning) Validate() error {
	if len(p.Backends) == 0 {
		return errors.NotValidf("no provisioning backend")
	}
	for name, kind := range p.Backends {
		if kind != BackendDummy {
			return errors.NotValidf("backend %q kind %q", name, kind)
		}
	}
	if p.Default != "" {
		if _, ok := p.Backends[p.Default]; !ok {
			return errors.NotValidf("default backend %q", p.Default)
		}
	}
	for component, name := range p.Components {
		if _, ok := p.Backends[name]; !ok {
			return errors.NotValidf("backend %q for component %q", name, component)
		}
	}
	if p.DestroyAttempts < 1 {
		return errors.NotValidf("destroy-attempts %d", p.DestroyAttempts)
	}
	if p.DestroyDelay <= 0 {
		return errors.NotValidf("destroy-delay %v", p.DestroyDelay)
	}
	return nil
}

// Tree builds the instance tree of the application.
func (a Application) Tree() (*instance.Tree, error) {
	tree := instance.NewTree()
	var add func(parent instance.Path, specs []Instance) error
	add = func(parent instance.Path, specs []Instance) error {
		for _, spec := range specs {
			inst := instance.New(spec.Name, spec.Component)
			for k, v := range spec.Data {
				inst.Data[k] = v
			}
			for k, v := range spec.Exports {
				inst.Exports[k] = v
			}
			if err := tree.Add(parent, inst); err != nil {
				return errors.Annotatef(err, "application %q", a.Name)
			}
			if err := add(inst.Path(), spec.Children); err != nil {
				return errors.Trace(err)
			}
		}
		return nil
	}
	if err := add("", a.Instances); err != nil {
		return nil, errors.Trace(err)
	}
	return tree, nil
}
