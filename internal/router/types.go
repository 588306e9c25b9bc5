package router

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrParse       = errors.New("malformed inbound message")
	ErrUnknownType = errors.New("unknown inbound message type")
)

// MessageType is the "type" discriminator of an inbound message.
type MessageType string

const (
	TypeCamera MessageType = "camera"
	TypeSensor MessageType = "sensor"
)

// Message is one decoded inbound message. Exactly one of Camera or Sensor is set,
// matching Type.
type Message struct {
	Type       MessageType
	Camera     *CameraFrame
	Sensor     *SensorReading
	ReceivedAt time.Time
}

// CameraFrame is a single JPEG frame pushed by the vehicle.
type CameraFrame struct {
	Camera  string // e.g. "camera1"
	Encoded string // base64 as received
	JPEG    []byte // decoded frame bytes
}

// SensorReading is a telemetry sample. Absent fields are nil.
type SensorReading struct {
	Depth       *float64
	Pressure    *float64
	Temperature *float64
	Battery     *int
}

// Handler receives decoded inbound messages.
type Handler func(Message)

// Stats contains inbound counters.
type Stats struct {
	Received      int64 `json:"received"`
	Routed        int64 `json:"routed"`
	Camera        int64 `json:"camera"`
	Sensor        int64 `json:"sensor"`
	ParseErrors   int64 `json:"parse_errors"`
	UnknownTypes  int64 `json:"unknown_types"`
	Replies       int64 `json:"replies"` // controller acknowledgements ({"status": ...})
	HandlerPanics int64 `json:"handler_panics"`
}

// Dropped returns the number of messages that never reached a handler.
func (s Stats) Dropped() int64 {
	return s.ParseErrors + s.UnknownTypes
}

// Wire types for JSON parsing

// envelope covers every inbound shape; fields are pointers so absence is visible.
type envelope struct {
	Type   *string          `json:"type"`
	Camera *string          `json:"camera"`
	Frame  *string          `json:"frame"`
	Data   *json.RawMessage `json:"data"`
	Status *string          `json:"status"`
}

type sensorWire struct {
	Depth       *float64 `json:"depth"`
	Pressure    *float64 `json:"pressure"`
	Temperature *float64 `json:"temperature"`
	Battery     *float64 `json:"battery"`
}
