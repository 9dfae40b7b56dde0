// Package sensor holds the live readings that measurements are built from.
//
// Three variants exist: Numeric, Binary and Text. Each keeps the last
// value it was given and reports whether any value has been received at
// all, so a field can be left out of a line until its sensor reports.
//
// Numeric and Text sensors keep two values. RawState is the payload as
// received. State is the value after filters (calibration and rounding
// for numerics, case and whitespace filters for text).
//
// Readings normally arrive over MQTT; Ingester subscribes to each
// sensor's state topic and parses payloads as they come in.
package sensor
