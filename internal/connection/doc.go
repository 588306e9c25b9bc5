// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns the single WebSocket channel to the vehicle controller
//   - Validates operator-entered IPv4 addresses and dials ws://<ip>:<port>
//   - Sends encoded commands only while connected, never queueing them
//   - Retries the last-known-good address a bounded number of times
//   - Routes inbound camera and sensor frames to the Message Router
//   - Publishes status transitions to observers in order
package connection
