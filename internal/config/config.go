package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Error reports a malformed or incomplete configuration. It is fatal at startup.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "invalid config: " + e.Reason
}

func errorf(format string, args ...any) error {
	return &Error{Reason: fmt.Sprintf(format, args...)}
}

// Service describes a single monitored HTTP endpoint.
type Service struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// NotifierConfig selects where notifications are delivered.
type NotifierConfig struct {
	Type       string `yaml:"type"`
	BaseURL    string `yaml:"base_url"`
	WebhookURL string `yaml:"webhook_url"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Config is the root application configuration.
type Config struct {
	Services []Service
	Notifier NotifierConfig
	Server   ServerConfig
	Storage  StorageConfig

	// Populated from the environment by Load.
	Timeout  time.Duration
	Interval time.Duration
	Token    string
}

const (
	DefaultTimeout  = 60 * time.Second
	DefaultInterval = time.Minute
)

var validNotifiers = map[string]bool{
	"discord": true,
	"webhook": true,
	"log":     true,
}

// Load reads the service file at path, then applies environment parameters
// (after loading envFile, if it exists).
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads, parses, and validates the service file at path.
// Environment parameters are left at their defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a service file.
func Parse(data []byte) (*Config, error) {
	// services is kept as a node so the mapping form preserves source order.
	type rawConfig struct {
		Services yaml.Node      `yaml:"services"`
		Notifier NotifierConfig `yaml:"notifier"`
		Server   ServerConfig   `yaml:"server"`
		Storage  StorageConfig  `yaml:"storage"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("parsing config: %v", err)}
	}

	services, err := decodeServices(&raw.Services)
	if err != nil {
		return nil, err
	}
	if err := Validate(services); err != nil {
		return nil, err
	}

	if raw.Server.Address == "" {
		raw.Server.Address = ":8080"
	}
	if raw.Storage.Path == "" {
		raw.Storage.Path = ":memory:"
	}
	if raw.Notifier.Type != "" && !validNotifiers[raw.Notifier.Type] {
		return nil, errorf("notifier: invalid type %q (must be discord, webhook, or log)", raw.Notifier.Type)
	}
	if raw.Notifier.Type == "webhook" && raw.Notifier.WebhookURL == "" {
		return nil, errorf("notifier: webhook_url is required for type webhook")
	}

	return &Config{
		Services: services,
		Notifier: raw.Notifier,
		Server:   raw.Server,
		Storage:  raw.Storage,
		Timeout:  DefaultTimeout,
		Interval: DefaultInterval,
	}, nil
}

// decodeServices accepts either a mapping of name to URL or a list of
// {name, url} entries.
func decodeServices(node *yaml.Node) ([]Service, error) {
	switch node.Kind {
	case 0:
		return nil, errorf("at least one service must be configured")
	case yaml.MappingNode:
		services := make([]Service, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return nil, errorf("service %q (line %d): url must be a string", k.Value, v.Line)
			}
			services = append(services, Service{Name: k.Value, URL: v.Value})
		}
		return services, nil
	case yaml.SequenceNode:
		var services []Service
		if err := node.Decode(&services); err != nil {
			return nil, errorf("decoding services: %v", err)
		}
		return services, nil
	default:
		return nil, errorf("services must be a mapping or a list (line %d)", node.Line)
	}
}

// Validate checks a service list: it must be non-empty, every entry needs a
// unique name and an absolute http(s) URL.
func Validate(services []Service) error {
	if len(services) == 0 {
		return errorf("at least one service must be configured")
	}
	names := make(map[string]bool, len(services))
	for i, svc := range services {
		if svc.Name == "" {
			return errorf("service[%d]: name is required", i)
		}
		if names[svc.Name] {
			return errorf("duplicate service name %q", svc.Name)
		}
		names[svc.Name] = true

		if svc.URL == "" {
			return errorf("service %q: url is required", svc.Name)
		}
		u, err := url.Parse(svc.URL)
		if err != nil {
			return errorf("service %q: invalid url %q: %v", svc.Name, svc.URL, err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errorf("service %q: url %q must be an absolute http or https URL", svc.Name, svc.URL)
		}
	}
	return nil
}

// ApplyEnv reads TIMEOUT (seconds), NOTIFICATION_INTERVAL (minutes) and TOKEN
// through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("TIMEOUT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errorf("TIMEOUT must be a positive number of seconds, got %q", v)
		}
		c.Timeout = time.Duration(n) * time.Second
	}
	if v, ok := lookup("NOTIFICATION_INTERVAL"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return errorf("NOTIFICATION_INTERVAL must be a positive number of minutes, got %q", v)
		}
		c.Interval = time.Duration(n) * time.Minute
	}
	if v, ok := lookup("TOKEN"); ok {
		c.Token = v
	}

	if c.Notifier.Type == "" {
		if c.Token != "" {
			c.Notifier.Type = "discord"
		} else {
			c.Notifier.Type = "log"
		}
	}
	if c.Notifier.Type == "discord" && c.Token == "" {
		return errorf("TOKEN is required for the discord notifier")
	}
	return nil
}
