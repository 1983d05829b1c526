package port

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listenTCP occupies an OS-assigned TCP port for the duration of the test.
func listenTCP(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	addr, ok := ln.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}

func TestIsPortAvailable_FreePort(t *testing.T) {
	scanner := NewScanner()

	freePort, err := scanner.FindAvailablePort(50000, 50100, "tcp")
	require.NoError(t, err)

	assert.True(t, scanner.IsPortAvailable(freePort, "tcp"))
}

func TestIsPortAvailable_UsedPort(t *testing.T) {
	port := listenTCP(t)

	assert.False(t, NewScanner().IsPortAvailable(port, "tcp"),
		"port %d is held by the test listener", port)
}

func TestIsPortAvailable_UDP(t *testing.T) {
	conn, err := net.ListenPacket("udp", ":0")
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	udpAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	require.True(t, ok)

	assert.False(t, NewScanner().IsPortAvailable(udpAddr.Port, "udp"))
}

func TestIsPortAvailable_UnknownProtocol(t *testing.T) {
	assert.False(t, NewScanner().IsPortAvailable(50000, "sctp"))
}

func TestFindAvailablePort(t *testing.T) {
	scanner := NewScanner()

	port, err := scanner.FindAvailablePort(50000, 50100, "tcp")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, port, 50000)
	assert.LessOrEqual(t, port, 50100)
}

// TestFindAvailablePort_SkipsUsed searches a one-port range that is occupied,
// then widens the range by the next port.
func TestFindAvailablePort_SkipsUsed(t *testing.T) {
	scanner := NewScanner()
	used := listenTCP(t)

	_, err := scanner.FindAvailablePort(used, used, "tcp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available")

	if !scanner.IsPortAvailable(used+1, "tcp") {
		t.Skip("neighbouring port is busy on this host")
	}
	port, err := scanner.FindAvailablePort(used, used+1, "tcp")
	require.NoError(t, err)
	assert.Equal(t, used+1, port)
}
