package config

import (
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultPath is read when no config file is given; it may be absent.
	DefaultPath = "tripflow.yaml"

	MinPollInterval = 2 * time.Second
	MaxPollInterval = 5 * time.Second
)

type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Polling PollingConfig `yaml:"polling"`
	Server  ServerConfig  `yaml:"server"`
	NATS    NATSConfig    `yaml:"nats"`
	Log     LogConfig     `yaml:"log"`
}

type BackendConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Routes  Routes        `yaml:"routes"`
}

// Routes are relative to BaseURL; "{id}" is replaced with the instance id.
type Routes struct {
	Start   string `yaml:"start"`
	Status  string `yaml:"status"`
	Approve string `yaml:"approve"`
	Reject  string `yaml:"reject"` // optional, decisions go to Approve when empty
}

type PollingConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type NATSConfig struct {
	URL           string `yaml:"url"` // empty disables publishing
	SubjectPrefix string `yaml:"subject_prefix"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:7071/api",
			Timeout: 10 * time.Second,
			Routes: Routes{
				Start:   "/travel-planner",
				Status:  "/travel-planner/status/{id}",
				Approve: "/travel-planner/approve/{id}",
			},
		},
		Polling: PollingConfig{Interval: 3 * time.Second},
		Server:  ServerConfig{Port: "8080"},
		NATS:    NATSConfig{SubjectPrefix: "tripflow"},
		Log:     LogConfig{Level: "INFO", Format: "text"},
	}
}

// Override adjusts a loaded configuration before it is validated, e.g. from command line flags.
type Override func(*Config)

// Load builds the configuration from defaults, the YAML file at path, a .env file in the
// working directory, TRIPFLOW_* environment variables and overrides, in that order of
// precedence, and validates the result. An empty path reads DefaultPath if it exists.
func Load(path string, overrides ...Override) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	optional := path == ""
	if optional {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, errors.Wrapf(err, "read config file %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TRIPFLOW_BACKEND_URL":         &c.Backend.BaseURL,
		"TRIPFLOW_ROUTE_START":         &c.Backend.Routes.Start,
		"TRIPFLOW_ROUTE_STATUS":        &c.Backend.Routes.Status,
		"TRIPFLOW_ROUTE_APPROVE":       &c.Backend.Routes.Approve,
		"TRIPFLOW_ROUTE_REJECT":        &c.Backend.Routes.Reject,
		"TRIPFLOW_SERVER_PORT":         &c.Server.Port,
		"TRIPFLOW_NATS_URL":            &c.NATS.URL,
		"TRIPFLOW_NATS_SUBJECT_PREFIX": &c.NATS.SubjectPrefix,
		"LOG_LEVEL":                    &c.Log.Level,
		"TRIPFLOW_LOG_FORMAT":          &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"TRIPFLOW_BACKEND_TIMEOUT": &c.Backend.Timeout,
		"TRIPFLOW_POLL_INTERVAL":   &c.Polling.Interval,
	}
	for key, dst := range durations {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		d, err := parseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse %s", key)
		}
		*dst = d
	}
	return nil
}

// parseDuration accepts Go durations ("3s") and plain seconds ("3").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(strings.TrimSpace(v))
}

// Validate checks the values a session cannot work without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("backend base_url %q is not an absolute URL", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend timeout must be positive")
	}
	r := c.Backend.Routes
	if r.Start == "" || r.Status == "" || r.Approve == "" {
		return errors.New("backend routes start, status and approve are required")
	}
	for _, route := range []string{r.Status, r.Approve} {
		if !strings.Contains(route, "{id}") {
			return errors.Errorf("route %q must contain {id}", route)
		}
	}
	if r.Reject != "" && !strings.Contains(r.Reject, "{id}") {
		return errors.Errorf("route %q must contain {id}", r.Reject)
	}
	if c.Polling.Interval < MinPollInterval || c.Polling.Interval > MaxPollInterval {
		return errors.Errorf("polling interval %s must be between %s and %s",
			c.Polling.Interval, MinPollInterval, MaxPollInterval)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return errors.Errorf("server port %q is not a number", c.Server.Port)
	}
	return nil
}
