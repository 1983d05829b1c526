package port

import (
	"fmt"
	"net"
)

// Scanner checks host ports by binding to them.
//
// A successful bind is the only reliable answer to "can Docker publish
// this port": it covers listeners of every owner without needing the
// privileges lsof or /proc/net parsing would. The result is a snapshot;
// another process can take the port between the check and the bind.
type Scanner struct {
	// host is the bind address; empty means all interfaces, which is where
	// Docker publishes ports by default.
	host string
}

// NewScanner creates a Scanner that checks all interfaces, matching the
// 0.0.0.0 bind Docker uses for a published port.
func NewScanner() *Scanner {
	return &Scanner{}
}

// IsPortAvailable reports whether port can be bound for protocol ("tcp" or
// "udp"). Unknown protocols report false, so a typo never reads as free.
func (s *Scanner) IsPortAvailable(port int, protocol string) bool {
	// JoinHostPort brackets IPv6 hosts; an empty host means all interfaces
	addr := net.JoinHostPort(s.host, fmt.Sprint(port))

	switch protocol {
	case "tcp":
		// Bind and release immediately. Close errors are irrelevant here
		// because the bind itself already answered the question.
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			return false
		}
		_ = listener.Close()
		return true

	case "udp":
		// UDP has no listen state; binding a packet socket is the equivalent
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true

	default:
		return false
	}
}

// FindAvailablePort returns the first free port in [startPort, endPort],
// both ends inclusive. The deployer uses it to suggest an alternative when
// the configured port is taken.
//
// Returns an error when every port in the range is in use.
func (s *Scanner) FindAvailablePort(startPort, endPort int, protocol string) (int, error) {
	// Linear scan: the window is small and ports near the requested one
	// make the friendliest suggestion.
	for port := startPort; port <= endPort; port++ {
		if s.IsPortAvailable(port, protocol) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available %s port found in range %d-%d", protocol, startPort, endPort)
}
