package router

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Decode parses one inbound text frame.
//
// Camera frames need a non-empty camera id and a non-empty, valid base64 frame.
// Sensor messages need a "data" object; each reading inside it is optional.
// Anything that is not JSON fails with ErrParse, anything with another or no
// type fails with ErrUnknownType.
func Decode(data []byte, receivedAt time.Time) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	if env.Type == nil {
		return Message{}, fmt.Errorf("%w: missing type", ErrUnknownType)
	}

	switch MessageType(*env.Type) {
	case TypeCamera:
		frame, err := decodeCamera(env)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: TypeCamera, Camera: frame, ReceivedAt: receivedAt}, nil

	case TypeSensor:
		reading, err := decodeSensor(env)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: TypeSensor, Sensor: reading, ReceivedAt: receivedAt}, nil

	default:
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownType, *env.Type)
	}
}

// isReply reports whether a frame is a controller acknowledgement such as
// {"status":"success","message":"Received controller update"}.
func isReply(data []byte) bool {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	return env.Type == nil && env.Status != nil
}

func decodeCamera(env envelope) (*CameraFrame, error) {
	if env.Camera == nil || *env.Camera == "" {
		return nil, fmt.Errorf("%w: camera message without camera id", ErrParse)
	}
	if env.Frame == nil || *env.Frame == "" {
		return nil, fmt.Errorf("%w: camera message without frame", ErrParse)
	}

	jpeg, err := base64.StdEncoding.DecodeString(*env.Frame)
	if err != nil {
		return nil, fmt.Errorf("%w: frame is not base64: %v", ErrParse, err)
	}

	return &CameraFrame{
		Camera:  *env.Camera,
		Encoded: *env.Frame,
		JPEG:    jpeg,
	}, nil
}

func decodeSensor(env envelope) (*SensorReading, error) {
	if env.Data == nil {
		return nil, fmt.Errorf("%w: sensor message without data", ErrParse)
	}
	raw := bytes.TrimSpace(*env.Data)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, fmt.Errorf("%w: sensor data is not an object", ErrParse)
	}

	var wire sensorWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: sensor data: %v", ErrParse, err)
	}

	reading := &SensorReading{
		Depth:       wire.Depth,
		Pressure:    wire.Pressure,
		Temperature: wire.Temperature,
	}
	if wire.Battery != nil {
		b := int(math.Round(*wire.Battery))
		reading.Battery = &b
	}
	return reading, nil
}
