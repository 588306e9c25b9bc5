// Package database provides the PostgreSQL connection pool used by the
// telemetry recorder. The console itself never needs it; it is opened only
// when telemetry recording is enabled.
package database
