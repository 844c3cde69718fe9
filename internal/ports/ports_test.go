package ports

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListening(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	assert.True(t, Listening(port, time.Second))

	require.NoError(t, l.Close())
	assert.False(t, Listening(port, 200*time.Millisecond))
}

func TestFindFreePort(t *testing.T) {
	port, err := FindFreePort()
	require.NoError(t, err)
	assert.True(t, Valid(port))

	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	require.NoError(t, err)
	l.Close()
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(1))
	assert.True(t, Valid(65535))
	assert.False(t, Valid(0))
	assert.False(t, Valid(65536))
}
