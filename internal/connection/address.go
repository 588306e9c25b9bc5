package connection

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

// ipv4Pattern accepts four dot-separated octets 0-255, with up to three digits each.
var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// Address is a validated vehicle endpoint.
type Address struct {
	IP   string // canonical dotted quad, leading zeros stripped
	Port int
}

// ParseAddress validates an operator-supplied IPv4 string. Surrounding
// whitespace is rejected like any other stray character.
// A zero port selects DefaultPort.
func ParseAddress(s string, port int) (Address, error) {
	if !ipv4Pattern.MatchString(s) {
		return Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	if port == 0 {
		port = DefaultPort
	}
	if port < 1 || port > 65535 {
		return Address{}, fmt.Errorf("%w: port %d out of range", ErrInvalidAddress, port)
	}

	octets := strings.Split(s, ".")
	for i, o := range octets {
		n, _ := strconv.Atoi(o)
		octets[i] = strconv.Itoa(n)
	}
	return Address{IP: strings.Join(octets, "."), Port: port}, nil
}

// String returns the IP; this is the form persisted as last-known-good.
func (a Address) String() string {
	return a.IP
}

// URL returns the WebSocket URL of the vehicle controller.
func (a Address) URL() string {
	return "ws://" + net.JoinHostPort(a.IP, strconv.Itoa(a.Port))
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.IP == ""
}
