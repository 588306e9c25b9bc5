package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field is one feature/value pair of a command.
type Field struct {
	Feature Feature
	Value   any // bool or int after validation
}

// Command is an outbound command for the vehicle controller.
type Command struct {
	Kind   Kind
	Fields []Field
}

// Set builds an "update" command for an integer feature.
func Set(f Feature, v int) Command {
	return Update(f, v)
}

// Toggle builds an "update" command for a boolean feature.
func Toggle(f Feature, on bool) Command {
	return Update(f, on)
}

// Update builds a single-feature command. The kind is taken from the feature spec.
func Update(f Feature, v any) Command {
	kind := KindUpdate
	if s, ok := Lookup(f); ok {
		kind = s.Kind
	}
	return Command{Kind: kind, Fields: []Field{{Feature: f, Value: v}}}
}

// Lights builds an "update_lights" command carrying both light switches.
func Lights(main, aux bool) Command {
	return Command{
		Kind: KindUpdateLights,
		Fields: []Field{
			{Feature: MainLight, Value: main},
			{Feature: AuxLight, Value: aux},
		},
	}
}

// Parse builds a command from operator text, e.g. ("lightPower", "50") or ("depthHold", "on").
func Parse(key, raw string) (Command, error) {
	f := Feature(strings.TrimSpace(key))
	s, ok := Lookup(f)
	if !ok {
		return Command{}, fmt.Errorf("%w: %q", ErrUnknownFeature, key)
	}

	raw = strings.TrimSpace(raw)
	switch s.Type {
	case ValueInt:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s expects an integer, got %q", ErrInvalidValue, f, raw)
		}
		return Update(f, n), nil
	default:
		b, err := ParseSwitch(raw)
		if err != nil {
			return Command{}, fmt.Errorf("%w: %s expects on/off, got %q", ErrInvalidValue, f, raw)
		}
		return Update(f, b), nil
	}
}

// ParseSwitch parses on/off style booleans.
func ParseSwitch(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("not a switch value: %q", raw)
	}
}

// Validate checks the command against the feature table and normalizes values.
func (c *Command) Validate() error {
	switch c.Kind {
	case KindUpdate:
		if len(c.Fields) != 1 {
			return fmt.Errorf("%w: %s carries exactly one feature, got %d", ErrInvalidValue, c.Kind, len(c.Fields))
		}
	case KindUpdateLights:
		if len(c.Fields) == 0 || len(c.Fields) > 2 {
			return fmt.Errorf("%w: %s carries one or two light fields, got %d", ErrInvalidValue, c.Kind, len(c.Fields))
		}
	default:
		return fmt.Errorf("%w: unknown command kind %q", ErrInvalidValue, c.Kind)
	}

	seen := make(map[Feature]struct{}, len(c.Fields))
	for i := range c.Fields {
		f := &c.Fields[i]
		s, ok := Lookup(f.Feature)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownFeature, f.Feature)
		}
		if s.Kind != c.Kind {
			return fmt.Errorf("%w: %s is not part of %s", ErrInvalidValue, f.Feature, c.Kind)
		}
		if _, dup := seen[f.Feature]; dup {
			return fmt.Errorf("%w: duplicate feature %s", ErrInvalidValue, f.Feature)
		}
		seen[f.Feature] = struct{}{}

		v, err := normalize(s, f.Value)
		if err != nil {
			return err
		}
		f.Value = v
	}
	return nil
}

// Encode validates the command and returns its wire form.
func (c Command) Encode() ([]byte, error) {
	c.Fields = append([]Field(nil), c.Fields...)
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"command":`)
	kind, err := json.Marshal(string(c.Kind))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	buf.Write(kind)

	for _, f := range c.Fields {
		key, err := json.Marshal(string(f.Feature))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrSerialization, f.Feature, err)
		}
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// String returns the wire form, or a placeholder when the command is invalid.
func (c Command) String() string {
	data, err := c.Encode()
	if err != nil {
		return fmt.Sprintf("<invalid %s command: %v>", c.Kind, err)
	}
	return string(data)
}

// normalize maps JSON scalar values onto the feature's value type.
// Values that are not JSON scalars cannot be put on the wire at all.
func normalize(s Spec, v any) (any, error) {
	switch x := v.(type) {
	case bool:
		if s.Type != ValueBool {
			return nil, fmt.Errorf("%w: %s expects %s, got bool", ErrInvalidValue, s.Feature, s.Type)
		}
		return x, nil
	case int:
		return checkInt(s, int64(x), "int")
	case int8:
		return checkInt(s, int64(x), "int8")
	case int16:
		return checkInt(s, int64(x), "int16")
	case int32:
		return checkInt(s, int64(x), "int32")
	case int64:
		return checkInt(s, x, "int64")
	case uint:
		return checkUint(s, uint64(x), "uint")
	case uint8:
		return checkInt(s, int64(x), "uint8")
	case uint16:
		return checkInt(s, int64(x), "uint16")
	case uint32:
		return checkInt(s, int64(x), "uint32")
	case uint64:
		return checkUint(s, x, "uint64")
	case uintptr:
		return checkUint(s, uint64(x), "uintptr")
	case float32:
		return checkFloat(s, float64(x))
	case float64:
		return checkFloat(s, x)
	case string:
		return nil, fmt.Errorf("%w: %s expects %s, got string", ErrInvalidValue, s.Feature, s.Type)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported value type %T", ErrSerialization, s.Feature, v)
	}
}

func checkInt(s Spec, n int64, typeName string) (any, error) {
	if s.Type != ValueInt {
		return nil, fmt.Errorf("%w: %s expects %s, got %s", ErrInvalidValue, s.Feature, s.Type, typeName)
	}
	if n < int64(s.Min) || n > int64(s.Max) {
		return nil, fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidValue, s.Feature, s.Min, s.Max, n)
	}
	return int(n), nil
}

func checkUint(s Spec, n uint64, typeName string) (any, error) {
	if s.Type == ValueInt && n > math.MaxInt64 {
		return nil, fmt.Errorf("%w: %s must be between %d and %d, got %d", ErrInvalidValue, s.Feature, s.Min, s.Max, n)
	}
	return checkInt(s, int64(n), typeName)
}

func checkFloat(s Spec, f float64) (any, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%w: %s: %v has no JSON form", ErrSerialization, s.Feature, f)
	}
	if f != math.Trunc(f) {
		return nil, fmt.Errorf("%w: %s expects a whole number, got %v", ErrInvalidValue, s.Feature, f)
	}
	if s.Type == ValueInt && (f < float64(s.Min) || f > float64(s.Max)) {
		return nil, fmt.Errorf("%w: %s must be between %d and %d, got %v", ErrInvalidValue, s.Feature, s.Min, s.Max, f)
	}
	return checkInt(s, int64(f), "float64")
}
