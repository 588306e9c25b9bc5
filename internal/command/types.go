package command

import (
	"errors"
	"sort"
)

// Errors
var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidValue   = errors.New("invalid value")
	ErrSerialization  = errors.New("command not serializable")
	ErrFeatureLocked  = errors.New("feature locked")
)

// Kind is the "command" discriminator on the wire.
type Kind string

const (
	KindUpdate       Kind = "update"
	KindUpdateLights Kind = "update_lights"
)

// Feature is a recognized command key.
type Feature string

const (
	ThrusterPower       Feature = "thrusterPower"
	FrontThrusters      Feature = "frontThrusters"
	VerticalThrusters   Feature = "verticalThrusters"
	LightPower          Feature = "lightPower"
	SpotlightPower      Feature = "spotlightPower"
	CameraTilt          Feature = "cameraTilt"
	DepthHold           Feature = "depthHold"
	HeadingHold         Feature = "headingHold"
	HoverMode           Feature = "hoverMode"
	CameraStabilization Feature = "cameraStabilization"
	RecordingMode       Feature = "recordingMode"
	CollisionAvoidance  Feature = "collisionAvoidance"
	LeakDetection       Feature = "leakDetection"
	BatteryOptimization Feature = "batteryOptimization"
	EmergencyMode       Feature = "emergencyMode"
	MainLight           Feature = "main_light"
	AuxLight            Feature = "aux_light"
)

// ValueType is the value type a feature accepts.
type ValueType int

const (
	ValueBool ValueType = iota
	ValueInt
)

func (t ValueType) String() string {
	if t == ValueInt {
		return "int"
	}
	return "bool"
}

// Spec describes one feature.
type Spec struct {
	Feature       Feature
	Name          string
	Kind          Kind
	Type          ValueType
	Min, Max      int  // Inclusive bounds (int features only)
	DefaultLocked bool // Locked by vehicle firmware until unlocked
}

var specs = map[Feature]Spec{
	ThrusterPower:       {Feature: ThrusterPower, Name: "Main Thruster Power", Kind: KindUpdate, Type: ValueInt, Min: 0, Max: 100},
	FrontThrusters:      {Feature: FrontThrusters, Name: "Front Thrusters", Kind: KindUpdate, Type: ValueInt, Min: 0, Max: 100},
	VerticalThrusters:   {Feature: VerticalThrusters, Name: "Vertical Thrusters", Kind: KindUpdate, Type: ValueInt, Min: 0, Max: 100},
	LightPower:          {Feature: LightPower, Name: "Main Lights", Kind: KindUpdate, Type: ValueInt, Min: 0, Max: 100},
	SpotlightPower:      {Feature: SpotlightPower, Name: "Spotlight Intensity", Kind: KindUpdate, Type: ValueInt, Min: 0, Max: 100, DefaultLocked: true},
	CameraTilt:          {Feature: CameraTilt, Name: "Camera Tilt", Kind: KindUpdate, Type: ValueInt, Min: -90, Max: 90},
	DepthHold:           {Feature: DepthHold, Name: "Depth Hold", Kind: KindUpdate, Type: ValueBool, DefaultLocked: true},
	HeadingHold:         {Feature: HeadingHold, Name: "Heading Hold", Kind: KindUpdate, Type: ValueBool, DefaultLocked: true},
	HoverMode:           {Feature: HoverMode, Name: "Hover Mode", Kind: KindUpdate, Type: ValueBool, DefaultLocked: true},
	CameraStabilization: {Feature: CameraStabilization, Name: "Camera Stabilization", Kind: KindUpdate, Type: ValueBool},
	RecordingMode:       {Feature: RecordingMode, Name: "Recording Mode", Kind: KindUpdate, Type: ValueBool},
	CollisionAvoidance:  {Feature: CollisionAvoidance, Name: "Collision Avoidance", Kind: KindUpdate, Type: ValueBool, DefaultLocked: true},
	LeakDetection:       {Feature: LeakDetection, Name: "Leak Detection", Kind: KindUpdate, Type: ValueBool},
	BatteryOptimization: {Feature: BatteryOptimization, Name: "Battery Optimization", Kind: KindUpdate, Type: ValueBool, DefaultLocked: true},
	EmergencyMode:       {Feature: EmergencyMode, Name: "Emergency Surface", Kind: KindUpdate, Type: ValueBool},
	MainLight:           {Feature: MainLight, Name: "Main Light", Kind: KindUpdateLights, Type: ValueBool},
	AuxLight:            {Feature: AuxLight, Name: "Aux Light", Kind: KindUpdateLights, Type: ValueBool},
}

// Lookup returns the spec for a feature.
func Lookup(f Feature) (Spec, bool) {
	s, ok := specs[f]
	return s, ok
}

// Features returns all recognized features sorted by key.
func Features() []Spec {
	out := make([]Spec, 0, len(specs))
	for _, s := range specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Feature < out[j].Feature })
	return out
}
