// Gray Logic Telemetry - InfluxDB v2 publisher for building sensors.
//
// The service subscribes to sensor state topics on MQTT, renders configured
// measurements as InfluxDB line protocol and writes them to InfluxDB on a
// schedule, on demand over HTTP, or on an MQTT command. Lines that fail to
// write are kept in a bounded backlog and retried after the next success.
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "graylogic-telemetry",
		Short: "Publish building sensor readings to InfluxDB v2",
		Long: `graylogic-telemetry renders sensor readings received over MQTT as
InfluxDB line protocol and writes them to an InfluxDB v2 server. Failed
writes are buffered and retried once the server accepts data again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, configPath(cfgFile))
		},
	}

	cmd.PersistentFlags().StringVar(
		&cfgFile, "config", "",
		"path to config file (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")",
	)

	cmd.AddCommand(validateCmd(&cfgFile), versionCmd())

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), versionString())
		},
	}
}

func validateCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and list the measurements it defines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return validate(cmd.OutOrStdout(), configPath(*cfgFile))
		},
	}
}

func versionString() string {
	return fmt.Sprintf("graylogic-telemetry %s (commit %s, built %s)", version, commit, date)
}

// configPath resolves the config file: the flag, then GRAYLOGIC_CONFIG,
// then the default.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// validate loads the config, builds every measurement against the sensor
// registry and prints one line per measurement.
func validate(w io.Writer, path string) error {
	cfg, err := loadConfig(path)
	if err != nil {
		return err
	}

	svc, err := buildCore(cfg, discardTransport{}, nil)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "config %s is valid: %d sensors, %d measurements\n",
		path, svc.sensors.Len(), len(svc.publisher.Measurements()))
	for _, m := range svc.publisher.Measurements() {
		fmt.Fprintf(w, "  %s\tbucket=%s\t%s\n", m.ID(), m.Bucket(), m.Prefix())
	}
	return nil
}
