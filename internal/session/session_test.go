package session

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/jpokornyiii/ntcore-client/internal/metrics"
	"github.com/jpokornyiii/ntcore-client/internal/rpc"
	"github.com/jpokornyiii/ntcore-client/internal/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer wraps the server side of a net.Pipe and offers helpers that
// mirror the byte sequences from spec.md's S1/S2 worked examples.
type fakeServer struct {
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, r: bufio.NewReader(conn)}
}

func (f *fakeServer) readByte(t *testing.T) byte {
	t.Helper()
	b, err := f.r.ReadByte()
	require.NoError(t, err)
	return b
}

func (f *fakeServer) expectClientHello(t *testing.T) {
	t.Helper()
	assert.Equal(t, byte(0x01), f.readByte(t))
	assert.Equal(t, byte(0x03), f.readByte(t))
	assert.Equal(t, byte(0x00), f.readByte(t))
	assert.Equal(t, byte(0), f.readByte(t))
}

func (f *fakeServer) expectClientHelloComplete(t *testing.T) {
	t.Helper()
	assert.Equal(t, byte(0x05), f.readByte(t))
}

func (f *fakeServer) sendServerHello(t *testing.T) {
	t.Helper()
	_, err := f.conn.Write([]byte{0x04, 0x00, 0x03, 'A', 'B', 'C'})
	require.NoError(t, err)
}

func (f *fakeServer) sendServerHelloComplete(t *testing.T) {
	t.Helper()
	_, err := f.conn.Write([]byte{0x03})
	require.NoError(t, err)
}

// sendEntryAssignment writes spec.md S2's worked example: name "abc",
// type BOOLEAN, id 42, seq 1, non-persistent flags, value true.
func (f *fakeServer) sendEntryAssignment(t *testing.T) {
	t.Helper()
	_, err := f.conn.Write([]byte{
		0x10,
		0x03, 'a', 'b', 'c',
		0x00,
		0x00, 0x2A,
		0x00, 0x01,
		0x00,
		0x01,
	})
	require.NoError(t, err)
}

func waitForState(t *testing.T, states chan State, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func newPipeDialer(conn net.Conn) Dialer {
	return func(ctx context.Context, network, address string) (net.Conn, error) {
		return conn, nil
	}
}

// === S1: handshake ===

func TestHandshakeReachesReady(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	states := make(chan State, 64)
	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 50 * time.Millisecond,
		Reconnect:         false,
		Dial:              newPipeDialer(clientConn),
	}, Events{
		ConnectionStateChanged: func(s State) {
			select {
			case states <- s:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Run(ctx) }()

	fs := newFakeServer(serverConn)
	fs.expectClientHello(t)
	fs.sendServerHello(t)
	waitForState(t, states, ReceivingInitialAssignments, time.Second)

	fs.sendServerHelloComplete(t)
	fs.expectClientHelloComplete(t)
	waitForState(t, states, Ready, time.Second)

	assert.Equal(t, Ready, sess.State())
}

// === unsupported protocol version ===

func TestUnsupportedProtocolVersionStopsSessionWithoutReconnect(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 50 * time.Millisecond,
		Reconnect:         false,
		Dial:              newPipeDialer(clientConn),
	}, Events{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	fs := newFakeServer(serverConn)
	fs.expectClientHello(t)

	_, err := fs.conn.Write([]byte{0x02, 0x04, 0x00})
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrUnsupportedProtocolVersion)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after PROTO_VERSION_UNSUPPORTED")
	}
}

// === entry assignment dispatch ===

func TestHandshakeThenEntryAssignmentDelivered(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	states := make(chan State, 64)
	assigned := make(chan table.Entry, 1)

	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 50 * time.Millisecond,
		Reconnect:         false,
		Dial:              newPipeDialer(clientConn),
	}, Events{
		ConnectionStateChanged: func(s State) {
			select {
			case states <- s:
			default:
			}
		},
		EntryAssigned: func(e table.Entry) {
			assigned <- e
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Run(ctx) }()

	fs := newFakeServer(serverConn)
	fs.expectClientHello(t)
	fs.sendServerHello(t)
	waitForState(t, states, ReceivingInitialAssignments, time.Second)

	fs.sendEntryAssignment(t)

	select {
	case e := <-assigned:
		assert.Equal(t, "abc", e.Name)
		assert.Equal(t, uint16(42), e.ID)
		assert.Equal(t, uint16(1), e.Seq)
	case <-time.After(time.Second):
		t.Fatal("EntryAssigned callback did not fire")
	}

	fs.sendServerHelloComplete(t)
	fs.expectClientHelloComplete(t)
	waitForState(t, states, Ready, time.Second)

	entry, ok := sess.Table().Get(42)
	require.True(t, ok)
	assert.Equal(t, "abc", entry.Name)
}

// === keep-alive ===

func TestKeepAliveSentWhenIdle(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 20 * time.Millisecond,
		Reconnect:         false,
		Dial:              newPipeDialer(clientConn),
	}, Events{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Run(ctx) }()

	fs := newFakeServer(serverConn)
	fs.expectClientHello(t)

	b := fs.readByte(t)
	assert.Equal(t, byte(0x00), b)
}

// === metrics wiring ===

func TestEntryAssignmentAndDeleteUpdateEntriesTrackedGauge(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	states := make(chan State, 64)
	m := metrics.New(prometheus.NewRegistry())

	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 50 * time.Millisecond,
		Reconnect:         false,
		Dial:              newPipeDialer(clientConn),
		Metrics:           m,
	}, Events{
		ConnectionStateChanged: func(s State) {
			select {
			case states <- s:
			default:
			}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Run(ctx) }()

	fs := newFakeServer(serverConn)
	fs.expectClientHello(t)
	fs.sendServerHello(t)
	waitForState(t, states, ReceivingInitialAssignments, time.Second)

	fs.sendEntryAssignment(t)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EntriesTracked) == 1
	}, time.Second, 10*time.Millisecond)

	_, err := fs.conn.Write([]byte{0x13, 0x00, 0x2A})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.EntriesTracked) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRunRecordsReconnectAttemptsWithIncreasingAttemptNumber(t *testing.T) {
	_, clientConn := net.Pipe()
	clientConn.Close()

	m := metrics.New(prometheus.NewRegistry())
	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 50 * time.Millisecond,
		Reconnect:         true,
		Backoff:           BackoffConfig{Initial: time.Millisecond, Cap: 2 * time.Millisecond, Factor: 2, Jitter: 0},
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			return nil, assert.AnError
		},
		Metrics: m,
	}, Events{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sess.Run(ctx) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ReconnectAttemptsTotal) >= 3
	}, time.Second, 10*time.Millisecond)
}

// === close ===

func TestCloseStopsRunAndCancelsPendingRPCs(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer serverConn.Close()
	defer clientConn.Close()

	sess := New(Config{
		ServerAddress:     "test",
		ServerPort:        1735,
		KeepAliveInterval: 50 * time.Millisecond,
		Reconnect:         true,
		Backoff:           DefaultBackoffConfig(),
		Dial:              newPipeDialer(clientConn),
	}, Events{})

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	_, resultCh := sess.BeginRPC(1)

	fs := newFakeServer(serverConn)
	fs.expectClientHello(t)

	sess.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}

	select {
	case res := <-resultCh:
		assert.Equal(t, rpc.Cancelled, res.Outcome)
	case <-time.After(time.Second):
		t.Fatal("pending RPC was not cancelled on Close")
	}
}
