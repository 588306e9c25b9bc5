// Package writer records vehicle telemetry.
//
// SensorWriter batches sensor readings from an in-memory queue and inserts
// them into the sensor_readings table with pgx batches. Rows are append-only;
// every reading gets its own UUID and carries the console session ID.
package writer
