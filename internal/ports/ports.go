package ports

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// FindFreePort asks the kernel for an unused loopback port.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("listen: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func Valid(port int) bool { return port >= 1 && port <= 65535 }

// Listening reports whether something accepts TCP connections on localhost:port.
func Listening(port int, timeout time.Duration) bool {
	c, err := net.DialTimeout("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}
