// SPDX-FileCopyrightText: Copyright 2025 GNS3 Labs
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperr "github.com/gns3-labs/gns3-mcp/pkg/errors"
)

// consoleEndpoint is a loopback TCP listener standing in for a node console.
type consoleEndpoint struct {
	t        *testing.T
	listener net.Listener
	mu       sync.Mutex
	conns    []net.Conn
	received chan []byte
}

func startConsoleEndpoint(t *testing.T) *consoleEndpoint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ep := &consoleEndpoint{t: t, listener: l, received: make(chan []byte, 64)}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			ep.mu.Lock()
			ep.conns = append(ep.conns, conn)
			ep.mu.Unlock()
			go func(c net.Conn) {
				buf := make([]byte, 4096)
				for {
					n, err := c.Read(buf)
					if n > 0 {
						data := make([]byte, n)
						copy(data, buf[:n])
						ep.received <- data
					}
					if err != nil {
						return
					}
				}
			}(conn)
		}
	}()
	t.Cleanup(func() { _ = l.Close() })
	return ep
}

func (ep *consoleEndpoint) addr() (string, int) {
	addr := ep.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// write pushes scripted console output on the most recent connection.
func (ep *consoleEndpoint) write(data string) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	require.NotEmpty(ep.t, ep.conns)
	_, err := ep.conns[len(ep.conns)-1].Write([]byte(data))
	require.NoError(ep.t, err)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestConnectReusesExistingSession(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()
	defer func() { _ = m.CloseAll() }()

	id1, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)
	id2, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, m.List(), 1)
}

func TestConnectSameNodeRace(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()

	m := NewManager()
	defer func() { _ = m.CloseAll() }()

	// Hold every dial on a barrier so both callers pass the fast path
	// before either installs a session.
	var dials atomic.Int32
	barrier := make(chan struct{})
	baseDial := m.dial
	m.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		dials.Add(1)
		<-barrier
		return baseDial(ctx, addr)
	}

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			id, err := m.Connect(context.Background(), host, port, "R1")
			require.NoError(t, err)
			results <- id
		}()
	}

	waitFor(t, func() bool { return dials.Load() == 2 })
	close(barrier)

	idA := <-results
	idB := <-results
	assert.Equal(t, idA, idB, "racing callers must converge on one session id")
	assert.Len(t, m.List(), 1, "exactly one session survives the race")
}

func TestSendWritesRawBytes(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()
	defer func() { _ = m.CloseAll() }()

	id, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)

	// Raw bytes pass through untransformed; line-ending normalization is
	// the tool handler's job.
	require.NoError(t, m.Send(id, []byte("show version\r\n")))

	select {
	case got := <-ep.received:
		assert.Equal(t, "show version\r\n", string(got))
	case <-time.After(5 * time.Second):
		t.Fatal("console endpoint did not receive the payload")
	}
}

func TestDiffAdvancesCursor(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()
	defer func() { _ = m.CloseAll() }()

	_, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)
	ep.write("boot messages...\r\nlogin:")

	var first string
	waitFor(t, func() bool {
		first, err = m.GetDiffByNode("R1")
		require.NoError(t, err)
		return first != ""
	})
	assert.Contains(t, first, "login:")

	// An immediate second diff returns nothing new.
	again, err := m.GetDiffByNode("R1")
	require.NoError(t, err)
	assert.Empty(t, again)

	// Further output shows up in the next diff, never a repeat.
	ep.write("Password:")
	waitFor(t, func() bool {
		next, err := m.GetDiffByNode("R1")
		require.NoError(t, err)
		return next == "Password:"
	})
}

func TestGetOutputDoesNotAdvanceCursor(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()
	defer func() { _ = m.CloseAll() }()

	id, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)
	ep.write("hello")

	waitFor(t, func() bool {
		out, err := m.GetOutput(id)
		require.NoError(t, err)
		return out == "hello"
	})

	// The cursor stayed put, so a diff still sees everything.
	diff, err := m.GetDiff(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", diff)
}

func TestHasAccessedTerminal(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()
	defer func() { _ = m.CloseAll() }()

	id, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)

	accessed, err := m.HasAccessedTerminal(id)
	require.NoError(t, err)
	assert.False(t, accessed)

	_, err = m.GetDiff(id)
	require.NoError(t, err)

	accessed, err = m.HasAccessedTerminalByNode("R1")
	require.NoError(t, err)
	assert.True(t, accessed)
}

func TestDisconnectRemovesBothIndexes(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()

	id, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)

	require.NoError(t, m.Disconnect(id))
	assert.Empty(t, m.List())

	_, ok := m.SessionIDByNode("R1")
	assert.False(t, ok)

	err = m.Send(id, []byte("x"))
	assert.Equal(t, mcperr.CodeConsoleDisconnected, mcperr.CodeOf(err))
}

func TestDisconnectUnknownSession(t *testing.T) {
	t.Parallel()

	m := NewManager()
	err := m.Disconnect("no-such-id")
	assert.Equal(t, mcperr.CodeConsoleDisconnected, mcperr.CodeOf(err))

	err = m.DisconnectByNode("R404")
	assert.Equal(t, mcperr.CodeConsoleDisconnected, mcperr.CodeOf(err))
}

func TestCleanupExpired(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()

	id, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)

	// A fresh session survives the sweep.
	assert.Zero(t, m.CleanupExpired())

	// Backdate activity past the TTL.
	s, err := m.get(id)
	require.NoError(t, err)
	s.mu.Lock()
	s.lastActivity = time.Now().Add(-SessionTTL - time.Minute)
	s.mu.Unlock()

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Empty(t, m.List())
}

func TestCloseAll(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()

	for _, name := range []string{"R1", "R2", "R3"} {
		_, err := m.Connect(context.Background(), host, port, name)
		require.NoError(t, err)
	}
	require.Len(t, m.List(), 3)

	require.NoError(t, m.CloseAll())
	assert.Empty(t, m.List())
}

func TestConnectFailure(t *testing.T) {
	t.Parallel()

	m := NewManager()
	_, err := m.Connect(context.Background(), "127.0.0.1", 1, "R1")
	assert.Equal(t, mcperr.CodeConsoleConnectionFailed, mcperr.CodeOf(err))
}

func TestIngestionStopsOnRemoteClose(t *testing.T) {
	t.Parallel()

	ep := startConsoleEndpoint(t)
	host, port := ep.addr()
	m := NewManager()

	id, err := m.Connect(context.Background(), host, port, "R1")
	require.NoError(t, err)
	ep.write("bye")

	// Remote closes: the session drains and is marked disconnected, but
	// buffered output stays readable until the session is removed.
	ep.mu.Lock()
	_ = ep.conns[len(ep.conns)-1].Close()
	ep.mu.Unlock()

	waitFor(t, func() bool {
		info, err := m.Get(id)
		require.NoError(t, err)
		return !info.Connected
	})

	out, err := m.GetOutput(id)
	require.NoError(t, err)
	assert.Equal(t, "bye", out)

	err = m.Send(id, []byte("x"))
	assert.Equal(t, mcperr.CodeConsoleDisconnected, mcperr.CodeOf(err))
}
