package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Telemetry.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site         SiteConfig          `yaml:"site"`
	Database     DatabaseConfig      `yaml:"database"`
	MQTT         MQTTConfig          `yaml:"mqtt"`
	API          APIConfig           `yaml:"api"`
	InfluxDB     InfluxDBConfig      `yaml:"influxdb"`
	Clock        ClockConfig         `yaml:"clock"`
	Logging      LoggingConfig       `yaml:"logging"`
	Sensors      []SensorConfig      `yaml:"sensors"`
	Measurements []MeasurementConfig `yaml:"measurements"`
	Schedules    []ScheduleConfig    `yaml:"schedules"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
// The database only holds the persisted backlog; an empty path disables it.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains the InfluxDB v2 write target and backlog settings.
type InfluxDBConfig struct {
	URL          string `yaml:"url"`
	Organization string `yaml:"organization"`
	Token        string `yaml:"token"`

	// Transport selects how writes are delivered: "http" posts line protocol
	// directly, "client" goes through influxdb-client-go.
	Transport string        `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`

	// Tags are added to every measurement, ahead of the measurement's own tags.
	Tags TagList `yaml:"tags"`

	// BacklogMaxDepth enables the backlog (1-200). Requires a clock.
	BacklogMaxDepth int `yaml:"backlog_max_depth"`

	// BacklogDrainBatch is the number of entries flushed per successful
	// publish (1-20). Requires BacklogMaxDepth.
	BacklogDrainBatch int `yaml:"backlog_drain_batch"`

	// BacklogDrainInterval drains one batch periodically even when no
	// publish is happening. Zero disables the periodic drain.
	BacklogDrainInterval time.Duration `yaml:"backlog_drain_interval"`

	// BacklogPersist saves the backlog to the database on shutdown and
	// restores it on startup.
	BacklogPersist bool `yaml:"backlog_persist"`
}

// ClockConfig controls the realtime clock used for timestamps.
type ClockConfig struct {
	Enabled bool `yaml:"enabled"`

	// MinValidYear is the earliest wall-clock year treated as synchronised.
	// Devices without an RTC boot at the epoch until NTP completes.
	MinValidYear int `yaml:"min_valid_year"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SensorConfig declares a sensor fed from an MQTT state topic.
type SensorConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Type  string `yaml:"type"` // numeric, binary, text
	Topic string `yaml:"topic"`

	// Numeric filters applied to the raw reading to produce the reported state.
	Multiply         *float64 `yaml:"multiply,omitempty"`
	Offset           float64  `yaml:"offset,omitempty"`
	AccuracyDecimals *int     `yaml:"accuracy_decimals,omitempty"`

	// Binary sensors only.
	Invert bool `yaml:"invert,omitempty"`

	// Text filters: to_upper, to_lower, trim.
	Filters []string `yaml:"filters,omitempty"`
}

// MeasurementConfig declares one line-protocol measurement.
type MeasurementConfig struct {
	ID     string  `yaml:"id"`
	Bucket string  `yaml:"bucket"`
	Name   string  `yaml:"name"`
	Tags   TagList `yaml:"tags"`

	// Policy is "omit_missing" (default) or "require_all".
	Policy string `yaml:"policy"`

	Sensors       []SensorFieldConfig `yaml:"sensors"`
	BinarySensors []BinaryFieldConfig `yaml:"binary_sensors"`
	TextSensors   []TextFieldConfig   `yaml:"text_sensors"`
}

// SensorFieldConfig maps a numeric sensor onto a field.
// A bare scalar in YAML is shorthand for sensor_id.
type SensorFieldConfig struct {
	SensorID         string `yaml:"sensor_id"`
	Name             string `yaml:"name"`
	Format           string `yaml:"format"` // float, integer, unsigned_integer
	AccuracyDecimals *int   `yaml:"accuracy_decimals"`
	RawState         bool   `yaml:"raw_state"`
}

// BinaryFieldConfig maps a binary sensor onto a field.
type BinaryFieldConfig struct {
	SensorID string `yaml:"sensor_id"`
	Name     string `yaml:"name"`
	Format   string `yaml:"format"` // boolean, integer
}

// TextFieldConfig maps a text sensor onto a field.
type TextFieldConfig struct {
	SensorID string `yaml:"sensor_id"`
	Name     string `yaml:"name"`
	RawState bool   `yaml:"raw_state"`
}

// ScheduleConfig publishes a set of measurements on a fixed interval.
// One measurement is a plain publish; more than one is a batch publish.
type ScheduleConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Measurements []string      `yaml:"measurements"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_INFLUXDB_TOKEN, GRAYLOGIC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyFieldDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-telemetry",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Transport: TransportHTTP,
			Timeout:   10 * time.Second,
		},
		Clock: ClockConfig{
			MinValidYear: 2019,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// applyFieldDefaults fills per-field defaults that YAML cannot express.
func (c *Config) applyFieldDefaults() {
	if c.InfluxDB.BacklogMaxDepth > 0 && c.InfluxDB.BacklogDrainBatch == 0 {
		c.InfluxDB.BacklogDrainBatch = 1
	}
	for i := range c.Measurements {
		m := &c.Measurements[i]
		if m.Policy == "" {
			m.Policy = PolicyOmitMissing
		}
		for j := range m.Sensors {
			if m.Sensors[j].Format == "" {
				m.Sensors[j].Format = FormatFloat
			}
		}
		for j := range m.BinarySensors {
			if m.BinarySensors[j].Format == "" {
				m.BinarySensors[j].Format = BinaryFormatBoolean
			}
		}
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.validateInfluxDB()...)
	errs = append(errs, c.validateSensors()...)
	errs = append(errs, c.validateMeasurements()...)
	errs = append(errs, c.validateSchedules()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (c *Config) validateInfluxDB() []string {
	var errs []string
	db := c.InfluxDB

	if db.URL == "" {
		errs = append(errs, "influxdb.url is required")
	} else if u, err := url.Parse(db.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("influxdb.url %q must be an http or https URL", db.URL))
	}
	if db.Organization == "" {
		errs = append(errs, "influxdb.organization is required")
	}
	if db.Transport != TransportHTTP && db.Transport != TransportClient {
		errs = append(errs, fmt.Sprintf("influxdb.transport %q must be %q or %q", db.Transport, TransportHTTP, TransportClient))
	}
	errs = append(errs, db.Tags.validate("influxdb.tags")...)

	if db.BacklogMaxDepth != 0 {
		if !c.Clock.Enabled {
			errs = append(errs, "influxdb.backlog_max_depth requires the clock to be enabled")
		}
		if db.BacklogMaxDepth < MinBacklogDepth || db.BacklogMaxDepth > MaxBacklogDepth {
			errs = append(errs, fmt.Sprintf("influxdb.backlog_max_depth must be between %d and %d", MinBacklogDepth, MaxBacklogDepth))
		}
	}
	if db.BacklogDrainBatch != 0 {
		if db.BacklogMaxDepth == 0 {
			errs = append(errs, "influxdb.backlog_drain_batch requires influxdb.backlog_max_depth to be set")
		}
		if db.BacklogDrainBatch < MinDrainBatch || db.BacklogDrainBatch > MaxDrainBatch {
			errs = append(errs, fmt.Sprintf("influxdb.backlog_drain_batch must be between %d and %d", MinDrainBatch, MaxDrainBatch))
		}
	}
	if db.BacklogDrainInterval < 0 {
		errs = append(errs, "influxdb.backlog_drain_interval cannot be negative")
	}
	if db.BacklogPersist && c.Database.Path == "" {
		errs = append(errs, "influxdb.backlog_persist requires database.path")
	}

	return errs
}

func (c *Config) validateSensors() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Sensors))

	for i, s := range c.Sensors {
		prefix := fmt.Sprintf("sensors[%d]", i)
		if s.ID == "" {
			errs = append(errs, prefix+".id is required")
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, s.ID))
		}
		seen[s.ID] = true

		switch s.Type {
		case SensorNumeric, SensorBinary, SensorText:
		default:
			errs = append(errs, fmt.Sprintf("%s.type %q must be numeric, binary, or text", prefix, s.Type))
		}
		if s.AccuracyDecimals != nil && (s.Type != SensorNumeric || *s.AccuracyDecimals < 0) {
			errs = append(errs, prefix+".accuracy_decimals is only valid as a non-negative value on numeric sensors")
		}
		for _, f := range s.Filters {
			if s.Type != SensorText || !isTextFilter(f) {
				errs = append(errs, fmt.Sprintf("%s.filters: %q is not a text filter", prefix, f))
			}
		}
	}

	return errs
}

func (c *Config) validateMeasurements() []string {
	var errs []string

	if len(c.Measurements) == 0 {
		errs = append(errs, "at least one measurement is required")
	}

	sensorTypes := make(map[string]string, len(c.Sensors))
	objectIDs := make(map[string]string, len(c.Sensors))
	for _, s := range c.Sensors {
		sensorTypes[s.ID] = s.Type
		objectIDs[s.ID] = s.objectID()
	}

	// A field without a name is keyed by its sensor's object ID.
	checkKey := func(prefix, id, name string) {
		if name != "" {
			errs = append(errs, validateFieldName(prefix, name)...)
			return
		}
		key, ok := objectIDs[id]
		if !ok {
			return
		}
		if err := ValidIdentifier(key); err != nil {
			errs = append(errs, fmt.Sprintf("%s: implicit field name from sensor %q: %v; set name", prefix, id, err))
		}
	}

	checkRef := func(prefix, id, want string) {
		got, ok := sensorTypes[id]
		switch {
		case id == "":
			errs = append(errs, prefix+".sensor_id is required")
		case !ok:
			errs = append(errs, fmt.Sprintf("%s.sensor_id %q is not a declared sensor", prefix, id))
		case got != want:
			errs = append(errs, fmt.Sprintf("%s.sensor_id %q is a %s sensor, want %s", prefix, id, got, want))
		}
	}

	seen := make(map[string]bool, len(c.Measurements))
	for i, m := range c.Measurements {
		prefix := fmt.Sprintf("measurements[%d]", i)

		if m.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if seen[m.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, m.ID))
		}
		seen[m.ID] = true

		if m.Bucket == "" {
			errs = append(errs, prefix+".bucket is required")
		}
		if err := ValidIdentifier(m.Name); err != nil {
			errs = append(errs, fmt.Sprintf("%s.name: %v", prefix, err))
		}
		errs = append(errs, m.Tags.validate(prefix+".tags")...)

		if m.Policy != PolicyOmitMissing && m.Policy != PolicyRequireAll {
			errs = append(errs, fmt.Sprintf("%s.policy %q must be %q or %q", prefix, m.Policy, PolicyOmitMissing, PolicyRequireAll))
		}
		if len(m.Sensors)+len(m.BinarySensors)+len(m.TextSensors) == 0 {
			errs = append(errs, prefix+" requires at least one of sensors, binary_sensors, text_sensors")
		}

		for j, f := range m.Sensors {
			fp := fmt.Sprintf("%s.sensors[%d]", prefix, j)
			checkRef(fp, f.SensorID, SensorNumeric)
			checkKey(fp, f.SensorID, f.Name)
			if err := validateSensorField(f); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", fp, err))
			}
		}
		for j, f := range m.BinarySensors {
			fp := fmt.Sprintf("%s.binary_sensors[%d]", prefix, j)
			checkRef(fp, f.SensorID, SensorBinary)
			checkKey(fp, f.SensorID, f.Name)
			if f.Format != BinaryFormatBoolean && f.Format != BinaryFormatInteger {
				errs = append(errs, fmt.Sprintf("%s.format %q must be %q or %q", fp, f.Format, BinaryFormatBoolean, BinaryFormatInteger))
			}
		}
		for j, f := range m.TextSensors {
			fp := fmt.Sprintf("%s.text_sensors[%d]", prefix, j)
			checkRef(fp, f.SensorID, SensorText)
			checkKey(fp, f.SensorID, f.Name)
		}
	}

	return errs
}

// validateSensorField checks format and accuracy_decimals on a numeric field.
func validateSensorField(f SensorFieldConfig) error {
	switch f.Format {
	case FormatFloat, FormatInteger, FormatUnsignedInteger:
	default:
		return fmt.Errorf("format %q must be float, integer, or unsigned_integer", f.Format)
	}
	if f.AccuracyDecimals != nil {
		if f.Format != FormatFloat {
			return fmt.Errorf("accuracy_decimals cannot be used with the '%s' format", f.Format)
		}
		if *f.AccuracyDecimals < 1 {
			return fmt.Errorf("accuracy_decimals must be a positive integer")
		}
	}
	return nil
}

func validateFieldName(prefix, name string) []string {
	if name == "" {
		return nil
	}
	if err := ValidIdentifier(name); err != nil {
		return []string{fmt.Sprintf("%s.name: %v", prefix, err)}
	}
	return nil
}

func (c *Config) validateSchedules() []string {
	var errs []string

	ids := make(map[string]bool, len(c.Measurements))
	for _, m := range c.Measurements {
		ids[m.ID] = true
	}

	for i, s := range c.Schedules {
		prefix := fmt.Sprintf("schedules[%d]", i)
		if s.Interval <= 0 {
			errs = append(errs, prefix+".interval must be positive")
		}
		if len(s.Measurements) == 0 {
			errs = append(errs, prefix+".measurements must not be empty")
		}
		for _, id := range s.Measurements {
			if !ids[id] {
				errs = append(errs, fmt.Sprintf("%s.measurements: %q is not a declared measurement", prefix, id))
			}
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
