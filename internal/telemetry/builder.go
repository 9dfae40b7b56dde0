package telemetry

import (
	"fmt"

	"github.com/nerrad567/gray-logic-telemetry/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-telemetry/internal/sensor"
)

// OptionsFromConfig maps the influxdb and clock sections onto Options.
// Transport, Logger and Metrics are left for the caller to set.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		URL:               cfg.InfluxDB.URL,
		Organization:      cfg.InfluxDB.Organization,
		Token:             cfg.InfluxDB.Token,
		Tags:              tagsFromConfig(cfg.InfluxDB.Tags),
		BacklogMaxDepth:   cfg.InfluxDB.BacklogMaxDepth,
		BacklogDrainBatch: cfg.InfluxDB.BacklogDrainBatch,
	}
	if cfg.Clock.Enabled {
		opts.Clock = NewSystemClock(cfg.Clock.MinValidYear)
	}
	return opts
}

// AddFromConfig adds every configured measurement to p, resolving sensor
// references against reg.
//
// Parameters:
//   - mcs: Validated measurement declarations
//   - reg: Registry holding the referenced sensors
//
// Returns:
//   - error: The first unresolvable sensor or rejected measurement
func (p *Publisher) AddFromConfig(mcs []config.MeasurementConfig, reg *sensor.Registry) error {
	for _, mc := range mcs {
		def, err := measurementDef(mc, reg)
		if err != nil {
			return err
		}
		if _, err := p.AddMeasurement(def); err != nil {
			return err
		}
	}
	return nil
}

// measurementDef builds fields in the order numeric, binary, text.
func measurementDef(mc config.MeasurementConfig, reg *sensor.Registry) (MeasurementDef, error) {
	def := MeasurementDef{
		ID:     mc.ID,
		Bucket: mc.Bucket,
		Name:   mc.Name,
		Tags:   tagsFromConfig(mc.Tags),
	}
	if mc.Policy == config.PolicyRequireAll {
		def.Policy = PolicyRequireAll
	}

	for _, fc := range mc.Sensors {
		src, err := reg.Numeric(fc.SensorID)
		if err != nil {
			return def, fmt.Errorf("measurement %s: %w", mc.ID, err)
		}
		acc := fc.AccuracyDecimals
		if acc == nil {
			if v, ok := src.AccuracyDecimals(); ok {
				acc = &v
			}
		}
		def.Fields = append(def.Fields, NewNumericField(src, NumericFieldOptions{
			Name:             fc.Name,
			Format:           numberFormat(fc.Format),
			AccuracyDecimals: acc,
			RawState:         fc.RawState,
		}))
	}

	for _, fc := range mc.BinarySensors {
		src, err := reg.Binary(fc.SensorID)
		if err != nil {
			return def, fmt.Errorf("measurement %s: %w", mc.ID, err)
		}
		format := BinaryBoolean
		if fc.Format == config.BinaryFormatInteger {
			format = BinaryInteger
		}
		def.Fields = append(def.Fields, NewBinaryField(src, fc.Name, format))
	}

	for _, fc := range mc.TextSensors {
		src, err := reg.Text(fc.SensorID)
		if err != nil {
			return def, fmt.Errorf("measurement %s: %w", mc.ID, err)
		}
		def.Fields = append(def.Fields, NewTextField(src, fc.Name, fc.RawState))
	}

	return def, nil
}

func numberFormat(s string) NumberFormat {
	switch s {
	case config.FormatInteger:
		return FormatInteger
	case config.FormatUnsignedInteger:
		return FormatUnsignedInteger
	default:
		return FormatFloat
	}
}

func tagsFromConfig(tl config.TagList) []Tag {
	if len(tl) == 0 {
		return nil
	}
	tags := make([]Tag, len(tl))
	for i, t := range tl {
		tags[i] = Tag{Key: t.Key, Value: t.Value}
	}
	return tags
}
