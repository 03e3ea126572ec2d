// Package config loads the daemon configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	multierror "github.com/hashicorp/go-multierror"
	validator "gopkg.in/validator.v2"
	yaml "gopkg.in/yaml.v2"

	"github.com/quentinrf/luxpipe/internal/adapters/veml6030"
	"github.com/quentinrf/luxpipe/internal/domain"
	"github.com/quentinrf/luxpipe/internal/ports"
)

const (
	RepoMemory = "memory"
	RepoSQLite = "sqlite"

	SensorMock     = "mock"
	SensorVEML6030 = "veml6030"
)

// Config holds application configuration
type Config struct {
	Port           string        `yaml:"port" validate:"nonzero"`
	MetricsAddress string        `yaml:"metricsAddress"` // empty disables /metrics
	PollInterval   time.Duration `yaml:"pollInterval"`
	WindowSize     int           `yaml:"windowSize" validate:"min=1"`
	PublishPeriod  int           `yaml:"publishPeriod" validate:"min=1"`
	SinkTimeout    time.Duration `yaml:"sinkTimeout"`
	Retention      time.Duration `yaml:"retention"` // zero disables cleanup
	RepoType       string        `yaml:"repoType"`  // "memory" | "sqlite"
	DBPath         string        `yaml:"dbPath"`    // used when RepoType=sqlite

	Sensor   SensorConfig    `yaml:"sensor"`
	Broker   BrokerConfig    `yaml:"broker"`
	TLS      TLSConfig       `yaml:"tls"` // gRPC server mTLS
	Channels []ChannelConfig `yaml:"channels"`
}

type SensorConfig struct {
	Type          string  `yaml:"type"` // "mock" | "veml6030"
	Adapter       string  `yaml:"adapter"`
	Address       uint16  `yaml:"address"`
	MockBase      float64 `yaml:"mockBase"`
	MockVariation float64 `yaml:"mockVariation"`
	MockFailRate  float64 `yaml:"mockFailRate"` // fraction of mock reads that fail, in [0, 1]
}

type BrokerConfig struct {
	Enabled  bool      `yaml:"enabled"`
	URL      string    `yaml:"url"`
	ClientID string    `yaml:"clientId"` // empty generates one
	Username string    `yaml:"username"`
	Password string    `yaml:"password"`
	TLS      TLSConfig `yaml:"tls"` // mqtts: CA alone, or cert and key for mTLS
}

// TLSConfig names certificate files. The gRPC server needs all three; a
// broker client may set only the CA.
type TLSConfig struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
	CA   string `yaml:"ca"`
}

// Enabled reports whether certificate files were configured.
func (t TLSConfig) Enabled() bool {
	return t.Cert != ""
}

// Configured reports whether any certificate file was set.
func (t TLSConfig) Configured() bool {
	return t != (TLSConfig{})
}

// ChannelConfig selects the sinks of one channel. The display sink is
// always registered.
type ChannelConfig struct {
	Name    domain.ChannelID `yaml:"name" validate:"nonzero"`
	History bool             `yaml:"history"`
	Broker  bool             `yaml:"broker"`
	Topic   string           `yaml:"topic"` // defaults to DefaultTopic(Name)
}

// DefaultTopic is the broker topic of a channel.
func DefaultTopic(channel domain.ChannelID) string {
	return "VEML6030/" + channel.String()
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{
		Port:           "50051",
		MetricsAddress: ":9100",
		PollInterval:   ports.DefaultPollInterval,
		WindowSize:     domain.DefaultWindowSize,
		PublishPeriod:  domain.DefaultPublishPeriod,
		SinkTimeout:    ports.DefaultSinkTimeout,
		Retention:      ports.DefaultRetention,
		RepoType:       RepoMemory,
		DBPath:         "./luxpipe.db",
		Sensor: SensorConfig{
			Type:          SensorMock,
			Adapter:       veml6030.DefaultAdapter,
			Address:       veml6030.DefaultAddress,
			MockBase:      500.0,
			MockVariation: 100.0,
		},
	}
	for _, ch := range domain.KnownChannels {
		cfg.Channels = append(cfg.Channels, ChannelConfig{
			Name:    ch,
			History: true,
			Broker:  true,
		})
	}
	return cfg
}

// Load builds the configuration from defaults, the YAML file at path (if
// not empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := LoadFile(&cfg, path); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}

	cfg.fillTopics()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile merges the YAML file fname into cfg and runs the struct tag
// validators.
func LoadFile(cfg *Config, fname string) error {
	data, err := os.ReadFile(fname)
	if err != nil {
		return err
	}

	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return err
	}

	return validator.Validate(cfg)
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs multierror.Error

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	duration := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs.Errors = append(errs.Errors, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}
	integer := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs.Errors = append(errs.Errors, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}

	str("PORT", &cfg.Port)
	str("METRICS_ADDR", &cfg.MetricsAddress)
	duration("POLL_INTERVAL", &cfg.PollInterval)
	integer("WINDOW_SIZE", &cfg.WindowSize)
	integer("PUBLISH_PERIOD", &cfg.PublishPeriod)
	duration("SINK_TIMEOUT", &cfg.SinkTimeout)
	duration("RETENTION", &cfg.Retention)
	str("REPO_TYPE", &cfg.RepoType)
	str("DB_PATH", &cfg.DBPath)

	str("SENSOR_TYPE", &cfg.Sensor.Type)
	str("I2C_ADAPTER", &cfg.Sensor.Adapter)
	if v, ok := lookup("I2C_ADDRESS"); ok && v != "" {
		addr, err := strconv.ParseUint(v, 0, 16)
		if err != nil {
			errs.Errors = append(errs.Errors, fmt.Errorf("I2C_ADDRESS: %w", err))
		} else {
			cfg.Sensor.Address = uint16(addr)
		}
	}

	if v, ok := lookup("MQTT_URL"); ok && v != "" {
		cfg.Broker.URL = v
		cfg.Broker.Enabled = true
	}
	str("MQTT_CLIENT_ID", &cfg.Broker.ClientID)
	str("MQTT_USERNAME", &cfg.Broker.Username)
	str("MQTT_PASSWORD", &cfg.Broker.Password)
	str("MQTT_TLS_CERT", &cfg.Broker.TLS.Cert)
	str("MQTT_TLS_KEY", &cfg.Broker.TLS.Key)
	str("MQTT_TLS_CA", &cfg.Broker.TLS.CA)

	str("TLS_CERT", &cfg.TLS.Cert)
	str("TLS_KEY", &cfg.TLS.Key)
	str("TLS_CA", &cfg.TLS.CA)

	return errs.ErrorOrNil()
}

func (c *Config) fillTopics() {
	for i := range c.Channels {
		if c.Channels[i].Topic == "" {
			c.Channels[i].Topic = DefaultTopic(c.Channels[i].Name)
		}
	}
}

// Validate reports every problem with c at once.
func (c Config) Validate() error {
	var errs multierror.Error
	add := func(format string, args ...any) {
		errs.Errors = append(errs.Errors, fmt.Errorf(format, args...))
	}

	if c.Port == "" {
		add("port must be set")
	}
	if c.PollInterval <= 0 {
		add("pollInterval must be positive, got %v", c.PollInterval)
	}
	if c.WindowSize < 1 {
		add("windowSize must be at least 1, got %d", c.WindowSize)
	}
	if c.PublishPeriod < 1 {
		add("publishPeriod must be at least 1, got %d", c.PublishPeriod)
	}
	if c.SinkTimeout <= 0 {
		add("sinkTimeout must be positive, got %v", c.SinkTimeout)
	}
	if c.Retention < 0 {
		add("retention must not be negative, got %v", c.Retention)
	}

	switch c.RepoType {
	case RepoMemory:
	case RepoSQLite:
		if c.DBPath == "" {
			add("dbPath must be set for the sqlite repository")
		}
	default:
		add("unknown repoType %q", c.RepoType)
	}

	switch c.Sensor.Type {
	case SensorMock:
		if c.Sensor.MockFailRate < 0 || c.Sensor.MockFailRate > 1 {
			add("sensor.mockFailRate must be in [0, 1], got %v", c.Sensor.MockFailRate)
		}
	case SensorVEML6030:
		if c.Sensor.Adapter == "" {
			add("sensor.adapter must be set for the veml6030 sensor")
		}
	default:
		add("unknown sensor.type %q", c.Sensor.Type)
	}

	if err := c.TLS.validate("tls"); err != nil {
		errs.Errors = append(errs.Errors, err)
	}
	if err := c.Broker.TLS.validateClient("broker.tls"); err != nil {
		errs.Errors = append(errs.Errors, err)
	}

	if len(c.Channels) == 0 {
		add("at least one channel must be configured")
	}
	seen := make(map[domain.ChannelID]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if !ch.Name.IsKnown() {
			add("%w: %q", domain.ErrUnknownChannel, ch.Name)
			continue
		}
		if seen[ch.Name] {
			add("channel %q configured twice", ch.Name)
		}
		seen[ch.Name] = true
	}

	return errs.ErrorOrNil()
}

func (t TLSConfig) validate(prefix string) error {
	if t == (TLSConfig{}) {
		return nil
	}
	if t.Cert == "" || t.Key == "" || t.CA == "" {
		return fmt.Errorf("%s: cert, key and ca must be set together", prefix)
	}
	return nil
}

// validateClient accepts a CA alone; cert and key go together.
func (t TLSConfig) validateClient(prefix string) error {
	if (t.Cert == "") != (t.Key == "") {
		return fmt.Errorf("%s: cert and key must be set together", prefix)
	}
	return nil
}

// ChannelIDs lists the configured channels in order.
func (c Config) ChannelIDs() []domain.ChannelID {
	ids := make([]domain.ChannelID, len(c.Channels))
	for i, ch := range c.Channels {
		ids[i] = ch.Name
	}
	return ids
}
