// Package config handles loading and validating Gray Logic Telemetry configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of sensors, measurements, schedules and the InfluxDB target
//   - Default value handling
//
// All configuration errors are caught here, before any publisher is built.
// Identifiers starting with an underscore, accuracy_decimals on a non-float
// field, and backlog settings without a clock are all rejected at load time.
//
// Security Considerations:
//   - The InfluxDB token should be set via GRAYLOGIC_INFLUXDB_TOKEN
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/telemetry.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.InfluxDB.URL)
package config
