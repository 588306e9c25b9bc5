package console

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rovlink/rovconsole/internal/bus"
	"github.com/rovlink/rovconsole/internal/command"
	"github.com/rovlink/rovconsole/internal/connection"
	"github.com/rovlink/rovconsole/internal/router"
)

// Errors
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrUsage          = errors.New("usage")
	ErrQuit           = errors.New("quit")
)

const historyLimit = 5

const helpText = `commands:
  connect <ipv4>              open the channel to the vehicle
  disconnect                  close the channel and cancel retries
  reconnect                   retry the last known good address
  set <feature> <value>       send an update, e.g. "set lightPower 50" or "set depthHold on"
  lights <on|off> <on|off>    switch the main and aux lights
  lock <feature>              block a feature
  unlock <feature>            allow a feature
  locks                       list locked features
  features                    list known features
  status                      show connection status
  telemetry                   show the latest sensor reading
  history                     show recent vehicle addresses
  quit                        leave the console`

// Execute interprets one operator line and returns the text to show.
func (c *Console) Execute(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "help", "?":
		return helpText, nil
	case "quit", "exit":
		return "", ErrQuit
	case "connect":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: connect <ipv4>", ErrUsage)
		}
		status, err := c.manager.Connect(ctx, args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s to %s", status, args[0]), nil
	case "disconnect":
		c.manager.Disconnect()
		return "disconnected", nil
	case "reconnect":
		status, err := c.manager.Reconnect(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s to %s", status, c.manager.LastAddress()), nil
	case "set":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: set <feature> <value>", ErrUsage)
		}
		cmd, err := command.Parse(args[0], args[1])
		if err != nil {
			return "", err
		}
		return c.send(cmd)
	case "lights":
		if len(args) != 2 {
			return "", fmt.Errorf("%w: lights <on|off> <on|off>", ErrUsage)
		}
		main, err := command.ParseSwitch(args[0])
		if err != nil {
			return "", fmt.Errorf("%w: main light: %v", command.ErrInvalidValue, err)
		}
		aux, err := command.ParseSwitch(args[1])
		if err != nil {
			return "", fmt.Errorf("%w: aux light: %v", command.ErrInvalidValue, err)
		}
		return c.send(command.Lights(main, aux))
	case "lock", "unlock":
		if len(args) != 1 {
			return "", fmt.Errorf("%w: %s <feature>", ErrUsage, verb)
		}
		f := command.Feature(args[0])
		var err error
		if verb == "lock" {
			err = c.locks.Lock(f)
		} else {
			err = c.locks.Unlock(f)
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %sed", f, verb), nil
	case "locks":
		locked := c.locks.LockedFeatures()
		if len(locked) == 0 {
			return "no features locked", nil
		}
		names := make([]string, len(locked))
		for i, f := range locked {
			names[i] = string(f)
		}
		return "locked: " + strings.Join(names, ", "), nil
	case "features":
		return c.features(), nil
	case "status":
		return c.statusLine(), nil
	case "telemetry":
		return c.telemetryLine(), nil
	case "history":
		return c.historyLines(ctx)
	default:
		return "", fmt.Errorf("%w: %q (try \"help\")", ErrUnknownCommand, verb)
	}
}

// send writes cmd and announces it on the bus.
func (c *Console) send(cmd command.Command) (string, error) {
	if err := c.manager.Send(cmd); err != nil {
		return "", err
	}
	c.bus.Publish(bus.TopicCommandSent, cmd)
	return "sent " + cmd.String(), nil
}

func (c *Console) features() string {
	var b strings.Builder
	for i, s := range command.Features() {
		if i > 0 {
			b.WriteByte('\n')
		}
		lock := ""
		if c.locks.Locked(s.Feature) {
			lock = " [locked]"
		}
		switch s.Type {
		case command.ValueInt:
			fmt.Fprintf(&b, "  %-22s %s (%d..%d)%s", s.Feature, s.Name, s.Min, s.Max, lock)
		default:
			fmt.Fprintf(&b, "  %-22s %s (on/off)%s", s.Feature, s.Name, lock)
		}
	}
	return b.String()
}

func (c *Console) statusLine() string {
	stats := c.manager.Stats()
	line := fmt.Sprintf("status: %s", stats.Status)
	if stats.Address != "" {
		line += " address: " + stats.Address
	}
	if last := c.manager.LastAddress(); last != "" {
		line += " last known good: " + last
	}
	r := stats.Retry
	switch {
	case r.InFlight:
		line += fmt.Sprintf(" retry: %d/%d", r.Attempts, r.Max)
	case r.Exhausted:
		line += fmt.Sprintf(" retry: exhausted after %d attempts, enter the vehicle address manually", r.Attempts)
	}
	line += fmt.Sprintf(" sent: %d dropped: %d rejected: %d",
		stats.CommandsSent, stats.CommandsDropped, stats.CommandsRejected)
	return line
}

func (c *Console) telemetryLine() string {
	msg, ok := c.LatestSensor()
	if !ok {
		return "no sensor data yet"
	}
	return FormatSensor(msg)
}

func (c *Console) historyLines(ctx context.Context) (string, error) {
	if c.history == nil {
		return "address history is disabled", nil
	}
	endpoints, err := c.history.Recent(ctx, historyLimit)
	if err != nil {
		return "", err
	}
	if len(endpoints) == 0 {
		return "no vehicle addresses on file", nil
	}
	lines := make([]string, len(endpoints))
	for i, e := range endpoints {
		lines[i] = fmt.Sprintf("  %-15s last %s (%d connections)",
			e.Address, e.LastConnectedAt.Format("2006-01-02 15:04:05"), e.ConnectCount)
	}
	return strings.Join(lines, "\n"), nil
}

// FormatSensor renders a sensor reading on one line.
func FormatSensor(msg router.Message) string {
	s := msg.Sensor
	if s == nil {
		return "no sensor data yet"
	}
	parts := []string{}
	if s.Depth != nil {
		parts = append(parts, fmt.Sprintf("depth %.2fm", *s.Depth))
	}
	if s.Pressure != nil {
		parts = append(parts, fmt.Sprintf("pressure %.3fbar", *s.Pressure))
	}
	if s.Temperature != nil {
		parts = append(parts, fmt.Sprintf("temperature %.1f°C", *s.Temperature))
	}
	if s.Battery != nil {
		parts = append(parts, fmt.Sprintf("battery %d%%", *s.Battery))
	}
	if len(parts) == 0 {
		return "empty sensor reading"
	}
	return strings.Join(parts, " ")
}

// describeStatus renders a status event for the operator.
func describeStatus(ev connection.StatusEvent) string {
	line := fmt.Sprintf("[%s] %s", ev.At.Format("15:04:05"), ev.Status)
	if ev.Address != "" {
		line += " " + ev.Address
	}
	if ev.Attempt > 0 {
		line += fmt.Sprintf(" (attempt %d)", ev.Attempt)
	}
	if ev.Err != nil {
		line += ": " + ev.Err.Error()
	}
	if errors.Is(ev.Err, connection.ErrReconnectExhausted) {
		line += "\nreconnect failed, enter the vehicle address with: connect <ipv4>"
	}
	return line
}
