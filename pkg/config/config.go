package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"

	"github.com/tekton-cd/pipectl/pkg/definition"
)

const (
	PipectlConfigKind        = "Config"
	PipectlConfigApiVersion  = "pipectl.dev/v1"
	PipectlFieldManagerName  = "pipectl"
	PipectlFieldManagerGroup = "pipectl.dev"
)

type Config struct {
	metav1.TypeMeta `json:",inline"`

	// Definitions holds the resource definitions in the order they are applied.
	Definitions []definition.Definition `json:"definitions,omitempty"`

	// RunOnce holds the one-shot run definition applied after the main set.
	RunOnce *definition.Definition `json:"runOnce,omitempty"`

	// FieldManager holds the manager name and group used for server-side apply.
	FieldManager *FieldManager `json:"fieldManager,omitempty"`

	// Discovery holds the naming conventions used to find the webhook listener service.
	Discovery *Discovery `json:"discovery,omitempty"`

	// Readiness holds the polling settings used when waiting for the listener workload.
	Readiness *Readiness `json:"readiness,omitempty"`

	// Webhook holds the defaults for the manual test instructions.
	Webhook *Webhook `json:"webhook,omitempty"`
}

type FieldManager struct {
	// Name sets the field manager for the reconciled objects.
	Name string `json:"name"`

	// Group sets the owner label key prefix.
	Group string `json:"group"`
}

// Discovery describes how the EventListener service is matched,
// prefixes are tried first, then substrings, then the label selector.
type Discovery struct {
	Prefixes      []string `json:"prefixes,omitempty"`
	Substrings    []string `json:"substrings,omitempty"`
	LabelSelector string   `json:"labelSelector,omitempty"`
}

type Readiness struct {
	Interval metav1.Duration `json:"interval"`
	Timeout  metav1.Duration `json:"timeout"`
}

type Webhook struct {
	RepositoryURL string `json:"repositoryURL,omitempty"`
	Ref           string `json:"ref,omitempty"`
	Port          int    `json:"port,omitempty"`
}

// NewConfig returns a config with the default definitions order.
func NewConfig() *Config {
	runOnce := definition.DefaultRunOnce()
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       PipectlConfigKind,
			APIVersion: PipectlConfigApiVersion,
		},
		Definitions:  definition.DefaultOrder(),
		RunOnce:      &runOnce,
		FieldManager: defaultFieldManager(),
		Discovery:    defaultDiscovery(),
		Readiness:    defaultReadiness(),
		Webhook:      defaultWebhook(),
	}
}

func defaultFieldManager() *FieldManager {
	return &FieldManager{
		Name:  PipectlFieldManagerName,
		Group: PipectlFieldManagerGroup,
	}
}

func defaultDiscovery() *Discovery {
	return &Discovery{
		Prefixes:      []string{"el-"},
		Substrings:    []string{"eventlistener", "listener"},
		LabelSelector: "app.kubernetes.io/managed-by=EventListener",
	}
}

func defaultReadiness() *Readiness {
	return &Readiness{
		Interval: metav1.Duration{Duration: 3 * time.Second},
		Timeout:  metav1.Duration{Duration: 120 * time.Second},
	}
}

func defaultWebhook() *Webhook {
	return &Webhook{
		Ref:  "refs/heads/main",
		Port: 8080,
	}
}

// DefaultConfigPath returns '$HOME/.pipectl/config'
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".pipectl/config"), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(cfgData, cfg); err != nil {
		return nil, err
	}

	if len(cfg.Definitions) == 0 {
		cfg.Definitions = definition.DefaultOrder()
	}

	if cfg.RunOnce == nil {
		runOnce := definition.DefaultRunOnce()
		cfg.RunOnce = &runOnce
	}

	if cfg.FieldManager == nil {
		cfg.FieldManager = defaultFieldManager()
	}

	if cfg.Discovery == nil {
		cfg.Discovery = defaultDiscovery()
	}

	if cfg.Readiness == nil {
		cfg.Readiness = defaultReadiness()
	}

	if cfg.Webhook == nil {
		cfg.Webhook = defaultWebhook()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the config can be used to drive an apply.
func (c *Config) Validate() error {
	if c.FieldManager.Name == "" {
		return fmt.Errorf("the field manager name can't be empty")
	}

	if c.FieldManager.Group == "" {
		return fmt.Errorf("the field manager group can't be empty")
	}

	if len(c.Definitions) == 0 {
		return fmt.Errorf("at least one definition is required")
	}

	for i, d := range c.Definitions {
		if d.Name == "" || d.Path == "" {
			return fmt.Errorf("definition #%d must have a name and a path", i+1)
		}
	}

	if c.Readiness.Interval.Duration <= 0 || c.Readiness.Timeout.Duration <= 0 {
		return fmt.Errorf("the readiness interval and timeout must be greater than zero")
	}

	return nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.pipectl/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, cfgData, os.FileMode(0644))
}
