// Package telemetry publishes sensor readings to InfluxDB v2 as line protocol.
//
// # Model
//
// A Publisher targets one organisation. It owns a set of Measurements,
// each bound to a bucket and holding a precomputed prefix (measurement
// name plus escaped tags) and an ordered list of Fields. A Field reads one
// sensor and renders "key=value":
//
//	numeric  temp=21.5        float, fixed decimals (default 4)
//	         count=3i         integer
//	         level=7u         unsigned integer (absolute value)
//	binary   door=true        or door=1i with the integer format
//	text     mode="auto"
//
// Fields whose sensor has no reading are left out. A Measurement with no
// readings at all is skipped rather than written empty; the require_all
// policy skips it if any field is missing.
//
// # Backlog
//
// When a Clock is configured and a backlog depth is set, failed lines are
// kept in a bounded FIFO that evicts the oldest entry when full. The
// backlog turns on the first time the clock reports a valid time and
// stays on. Until then, and forever without a clock, failed lines are
// discarded; without a timestamp a delayed line would be stored under
// the wrong time. For the same reason, a line rendered while the clock is
// momentarily invalid is discarded on failure even after the latch.
//
// After every successful publish, up to the drain batch of entries are
// written, oldest first. The drain stops at the first failure and puts
// the failed entry and any untried ones back at the head, so order is
// preserved.
//
// # Errors
//
// Publish and PublishBatch never return errors. Every outcome is a
// Result with a Status of published, failed, skipped or rejected; write
// failures wrap ErrTransport.
//
// # Usage
//
//	pub, err := telemetry.NewPublisher(telemetry.Options{
//	    URL:          "http://influx:8086",
//	    Organization: "home",
//	    Transport:    transport,
//	    Clock:        telemetry.NewSystemClock(2019),
//	    BacklogMaxDepth:   50,
//	    BacklogDrainBatch: 5,
//	})
//	m, _ := pub.AddMeasurement(telemetry.MeasurementDef{
//	    ID: "env", Bucket: "climate", Name: "env",
//	    Tags:   []telemetry.Tag{{Key: "room", Value: "kitchen"}},
//	    Fields: []telemetry.Field{telemetry.NewNumericField(temp, telemetry.NumericFieldOptions{})},
//	})
//	res := pub.Publish(ctx, m)
package telemetry
