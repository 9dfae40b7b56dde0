// Package api implements the HTTP REST API for the telemetry service.
//
// This package provides:
//   - Read endpoints for measurements, sensors and the backlog
//   - Manual publish of one or several measurements
//   - Manual backlog drain
//   - Health and system status, plus Prometheus /metrics
//   - Middleware stack (request ID, logging, recovery, body size limit)
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/system
//	GET  /api/v1/sensors
//	GET  /api/v1/measurements
//	GET  /api/v1/measurements/{id}
//	POST /api/v1/measurements/{id}/publish
//	POST /api/v1/publish
//	GET  /api/v1/backlog
//	POST /api/v1/backlog/drain
//	GET  /metrics
//
// The server operates without MQTT. Sensor values then stay empty and
// publishes are skipped, but the routes still answer.
package api
