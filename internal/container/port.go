// SPDX-License-Identifier: MPL-2.0

package container

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// publishHost is the host address forwarded ports are bound to.
const publishHost = "127.0.0.1"

// ErrInvalidPort is returned for a port forward that cannot be published.
var ErrInvalidPort = errors.New("invalid port forward")

// PortForward publishes a container port on the host loopback interface.
type PortForward struct {
	Host      int
	Container int
}

// ParsePortForward parses "8080" or "3000:8080" (host:container).
func ParsePortForward(s string) (PortForward, error) {
	hostPart, containerPart, split := strings.Cut(strings.TrimSpace(s), ":")
	if !split {
		containerPart = hostPart
	}
	host, err := parsePortNumber(hostPart)
	if err != nil {
		return PortForward{}, fmt.Errorf("%w %q: %w", ErrInvalidPort, s, err)
	}
	cport, err := parsePortNumber(containerPart)
	if err != nil {
		return PortForward{}, fmt.Errorf("%w %q: %w", ErrInvalidPort, s, err)
	}
	return PortForward{Host: host, Container: cport}, nil
}

// NewPortForward returns a forward of port to the same host port.
func NewPortForward(port int) (PortForward, error) {
	if port < 1 || port > 65535 {
		return PortForward{}, fmt.Errorf("%w %d: out of range", ErrInvalidPort, port)
	}
	return PortForward{Host: port, Container: port}, nil
}

// String returns the host:container form stored in the devcon.ports label.
func (p PortForward) String() string {
	return fmt.Sprintf("%d:%d", p.Host, p.Container)
}

// PublishSpec returns the value of the runtime's publish flag.
func (p PortForward) PublishSpec() string {
	return publishHost + ":" + p.String()
}

// FormatPorts joins ports for the devcon.ports label.
func FormatPorts(ports []PortForward) string {
	parts := make([]string, len(ports))
	for i, p := range ports {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}

// ParsePorts reads a devcon.ports label value. Unparseable entries are skipped
// because the label may have been edited by hand.
func ParsePorts(label string) []PortForward {
	var ports []PortForward
	for part := range strings.SplitSeq(label, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		if p, err := ParsePortForward(part); err == nil {
			ports = append(ports, p)
		}
	}
	return ports
}

func parsePortNumber(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("not a port number")
	}
	if n < 1 || n > 65535 {
		return 0, errors.New("out of range")
	}
	return n, nil
}

func publishArgs(flag string, ports []PortForward) []string {
	args := make([]string, 0, 2*len(ports))
	for _, p := range ports {
		args = append(args, flag, p.PublishSpec())
	}
	return args
}
