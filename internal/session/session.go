// Package session drives the client-side ntcore connection: the state
// machine of spec §4.6, the keep-alive timer, and the reconnect loop. It
// owns the entry table and RPC registry for the lifetime of one logical
// connection and exposes a thread-safe facade to embedders while the
// reader/writer goroutines do all table/state mutation on a single
// cooperative loop, per spec §5.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpokornyiii/ntcore-client/internal/logger"
	"github.com/jpokornyiii/ntcore-client/internal/metrics"
	"github.com/jpokornyiii/ntcore-client/internal/rpc"
	"github.com/jpokornyiii/ntcore-client/internal/table"
	"github.com/jpokornyiii/ntcore-client/internal/transport"
	"github.com/jpokornyiii/ntcore-client/internal/wire"
	"github.com/rs/xid"
)

// State is a node of the session state machine (spec §4.6).
type State int

const (
	Disconnected State = iota
	Connecting
	AwaitingServerHello
	ReceivingInitialAssignments
	Ready
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case AwaitingServerHello:
		return "AWAITING_SERVER_HELLO"
	case ReceivingInitialAssignments:
		return "RECEIVING_INITIAL_ASSIGNMENTS"
	case Ready:
		return "READY"
	case Disconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// ErrTransportClosed is returned/surfaced when the underlying connection
// closes, whether cleanly or due to a read/write error.
var ErrTransportClosed = errors.New("session: transport closed")

// ErrUnsupportedProtocolVersion is surfaced when the server rejects our
// handshake with PROTO_VERSION_UNSUPPORTED.
var ErrUnsupportedProtocolVersion = errors.New("session: unsupported protocol version")

// ErrBackpressure is returned by Send in non-blocking mode when the
// outbound queue is full.
var ErrBackpressure = errors.New("session: outbound queue full")

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("session: closed")

// Dialer opens the underlying transport. Production code plugs in
// net.Dialer.DialContext; tests plug in an in-memory pipe.
type Dialer func(ctx context.Context, network, address string) (net.Conn, error)

// Config parameterizes one Session.
type Config struct {
	ServerAddress     string
	ServerPort        int
	ClientIdent       string
	KeepAliveInterval time.Duration
	RPCTimeout        time.Duration
	Reconnect         bool
	Backoff           BackoffConfig
	OutboundQueueSize int
	NonBlockingSend   bool
	Dial              Dialer

	// Metrics records Prometheus instrumentation for this session; nil
	// disables recording (every Metrics method is nil-safe).
	Metrics *metrics.Metrics
}

// Events is the set of callbacks an embedder may set to observe session
// activity (spec §6). Any subset may be left nil.
type Events struct {
	ConnectionStateChanged func(State)
	EntryAssigned          func(table.Entry)
	EntryUpdated           func(entry table.Entry, prevValue wire.Value)
	EntryFlagsUpdated      func(table.Entry)
	EntryDeleted           func(id uint16, name string)
	EntriesCleared         func()
	RPCResponse            func(defID, uniqueID uint16, results []wire.Value)
}

// Session is one logical ntcore connection, including its automatic
// reconnect behavior.
type Session struct {
	cfg    Config
	events Events

	// id uniquely identifies this Session for the lifetime of the process;
	// it ties together every log line for one logical connection across
	// reconnects, distinct from the per-attempt transport.
	id string

	table *table.Table
	calls *rpc.Registry

	mu    sync.RWMutex
	state State

	outbound chan wire.Message

	closeOnce  sync.Once
	closed     chan struct{}
	wg         sync.WaitGroup
	connCancel context.CancelFunc

	serverIdentity       string
	clientPreviouslySeen bool
}

func (s *Session) setConnCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.connCancel = cancel
	s.mu.Unlock()
}

func (s *Session) cancelConn() {
	s.mu.Lock()
	cancel := s.connCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// New creates a Session. Call Run to start it.
func New(cfg Config, events Events) *Session {
	if cfg.Dial == nil {
		d := &net.Dialer{}
		cfg.Dial = d.DialContext
	}
	if cfg.OutboundQueueSize <= 0 {
		cfg.OutboundQueueSize = 256
	}
	return &Session{
		cfg:      cfg,
		events:   events,
		id:       uuid.NewString(),
		table:    table.New(),
		calls:    rpc.New(),
		state:    Disconnected,
		outbound: make(chan wire.Message, cfg.OutboundQueueSize),
		closed:   make(chan struct{}),
	}
}

// ID returns the session's process-lifetime correlation id, used to tie
// together log lines across reconnects.
func (s *Session) ID() string {
	return s.id
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Table returns the session's entry table for read access. Callers should
// treat it as a snapshot source (Table.Snapshot, Table.Get); mutation
// happens only on the session's internal loop.
func (s *Session) Table() *table.Table {
	return s.table
}

// Run drives the session until ctx is cancelled or Close is called. When
// cfg.Reconnect is true, an unexpected transport drop triggers backoff and
// retry instead of returning.
func (s *Session) Run(ctx context.Context) error {
	boff := newReconnectBackoff(s.cfg.Backoff)
	attempt := 0

	for {
		reachedReady, err := s.runOnce(ctx)
		if reachedReady {
			boff.Reset()
			attempt = 0
		}

		select {
		case <-s.closed:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if errors.Is(err, ErrUnsupportedProtocolVersion) {
			return err
		}
		if !s.cfg.Reconnect {
			return err
		}

		attempt++
		s.cfg.Metrics.IncReconnectAttempts()
		delay := boff.Next()
		logger.Warn("session reconnecting", logger.Err(err), logger.Attempt(attempt), logger.DurationMs(float64(delay.Milliseconds())))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		}
	}
}

// runOnce performs one connection attempt: dial, handshake, steady-state
// read/write, until the transport drops or ctx is cancelled. reachedReady
// reports whether the session got far enough to reset reconnect backoff.
func (s *Session) runOnce(ctx context.Context) (reachedReady bool, err error) {
	s.calls.CancelAll()
	s.setState(Connecting)

	addr := fmt.Sprintf("%s:%d", s.cfg.ServerAddress, s.cfg.ServerPort)
	conn, err := s.cfg.Dial(ctx, "tcp", addr)
	if err != nil {
		s.setState(Disconnected)
		return false, fmt.Errorf("session: dial: %w", err)
	}
	defer conn.Close()

	drainOutbound(s.outbound)

	connCtx, cancel := context.WithCancel(ctx)
	s.setConnCancel(cancel)
	defer func() {
		cancel()
		s.setConnCancel(nil)
	}()

	errs := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- s.readLoop(connCtx, conn)
	}()
	go func() {
		defer wg.Done()
		errs <- s.writeLoop(connCtx, conn)
	}()

	s.setState(AwaitingServerHello)
	if err := s.send(wire.ClientHello(s.cfg.ClientIdent)); err != nil {
		cancel()
		wg.Wait()
		s.setState(Disconnected)
		return false, err
	}

	err = <-errs
	cancel()
	wg.Wait()
	s.calls.CancelAll()
	reachedReady = s.State() == Ready || s.State() == ReceivingInitialAssignments
	s.setState(Disconnected)
	return reachedReady, err
}

func drainOutbound(ch chan wire.Message) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	logger.Debug("session state changed", logger.SessionID(s.id), logger.SessionState(st))
	if s.events.ConnectionStateChanged != nil {
		s.events.ConnectionStateChanged(st)
	}
}

// send enqueues an outbound message, honoring NonBlockingSend.
func (s *Session) send(m wire.Message) error {
	if s.cfg.NonBlockingSend {
		select {
		case s.outbound <- m:
			return nil
		default:
			return ErrBackpressure
		}
	}
	select {
	case s.outbound <- m:
		return nil
	case <-s.closed:
		return ErrClosed
	}
}

// readLoop consumes bytes from conn via internal/transport and dispatches
// each decoded message to the table/registry/event callbacks.
func (s *Session) readLoop(ctx context.Context, conn net.Conn) error {
	idleTimeout := s.cfg.KeepAliveInterval * 3
	if idleTimeout <= 0 {
		idleTimeout = 3 * time.Second
	}

	err := transport.ReadLoop(ctx, conn, idleTimeout, s.table, s.cfg.Metrics, s.handleMessage)
	if errors.Is(err, transport.ErrClosed) {
		return fmt.Errorf("%w", ErrTransportClosed)
	}
	return err
}

// handleMessage applies one decoded server message to session state and
// fires the corresponding embedder callback.
func (s *Session) handleMessage(msg wire.Message) error {
	switch msg.Type {
	case wire.MsgKeepAlive:
		return nil

	case wire.MsgServerHello:
		if s.State() != AwaitingServerHello {
			return newProtocolError("unexpected SERVER_HELLO")
		}
		s.serverIdentity = msg.ServerIdentity
		s.clientPreviouslySeen = msg.ClientPreviouslySeen()
		s.setState(ReceivingInitialAssignments)
		return nil

	case wire.MsgProtoVersionUnsupported:
		return ErrUnsupportedProtocolVersion

	case wire.MsgServerHelloComplete:
		if s.State() != ReceivingInitialAssignments {
			return newProtocolError("unexpected SERVER_HELLO_COMPLETE")
		}
		if err := s.send(wire.ClientHelloComplete()); err != nil {
			return err
		}
		s.setState(Ready)
		return nil

	case wire.MsgEntryAssignment:
		entry, _, err := s.table.ApplyAssignment(msg)
		if err != nil {
			return err
		}
		s.cfg.Metrics.SetEntriesTracked(s.table.Len())
		if s.events.EntryAssigned != nil {
			s.events.EntryAssigned(entry)
		}
		return nil

	case wire.MsgEntryUpdate:
		prev, accepted := s.table.ApplyUpdate(msg)
		if accepted && s.events.EntryUpdated != nil {
			entry, _ := s.table.Get(msg.EntryID)
			s.events.EntryUpdated(entry, prev)
		}
		return nil

	case wire.MsgEntryFlagsUpdate:
		if s.table.ApplyFlagsUpdate(msg) && s.events.EntryFlagsUpdated != nil {
			entry, _ := s.table.Get(msg.EntryID)
			s.events.EntryFlagsUpdated(entry)
		}
		return nil

	case wire.MsgEntryDelete:
		entry, ok := s.table.ApplyDelete(msg.EntryID)
		if ok {
			s.cfg.Metrics.SetEntriesTracked(s.table.Len())
			if s.events.EntryDeleted != nil {
				s.events.EntryDeleted(entry.ID, entry.Name)
			}
		}
		return nil

	case wire.MsgClearAllEntries:
		s.table.ApplyClearAll()
		s.cfg.Metrics.SetEntriesTracked(0)
		if s.events.EntriesCleared != nil {
			s.events.EntriesCleared()
		}
		return nil

	case wire.MsgRPCResponse:
		s.calls.Complete(msg.RPCDefID, msg.RPCUniqueID, msg.RPCValues)
		if s.events.RPCResponse != nil {
			s.events.RPCResponse(msg.RPCDefID, msg.RPCUniqueID, msg.RPCValues)
		}
		return nil

	default:
		return newProtocolError(fmt.Sprintf("unexpected message type %v in this state", msg.Type))
	}
}

func newProtocolError(reason string) error {
	return &wire.Error{Kind: wire.Malformed, Op: reason}
}

// writeLoop drains the outbound queue via internal/transport, interleaving
// the keep-alive ticker.
func (s *Session) writeLoop(ctx context.Context, conn net.Conn) error {
	err := transport.WriteLoop(ctx, conn, s.outbound, s.cfg.KeepAliveInterval, s.cfg.Metrics)
	if errors.Is(err, transport.ErrClosed) {
		return fmt.Errorf("%w", ErrTransportClosed)
	}
	return err
}

// Send queues a client-origin message for transmission. It fails with
// ErrClosed after Close, or with ErrBackpressure when NonBlockingSend is set
// and the queue is full; it does not check the session state: a message queued while
// connected is written by the writer loop as soon as it is dequeued, even
// before Ready, and messages still queued when a new connection is dialed
// are discarded.
func (s *Session) Send(m wire.Message) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return s.send(m)
}

// BeginRPC allocates a pending RPC call slot and returns its uniqueId and a
// channel that receives the eventual Result. A short-lived correlation
// token (not sent on the wire, which only carries the uint16 uniqueId) is
// logged alongside it so a call's debug log lines can be grepped together
// without confusing two calls that happen to share a uniqueId across
// reconnects.
func (s *Session) BeginRPC(defID uint16) (uint16, <-chan rpc.Result) {
	uniqueID, done := s.calls.Begin(defID)
	logger.Debug("rpc call started",
		logger.SessionID(s.id),
		logger.DefinitionID(defID),
		logger.UniqueID(uniqueID),
		"correlation_id", xid.New().String(),
	)
	return uniqueID, done
}

// TimeoutRPC marks a pending call as timed out; call this when the
// caller-visible RPCTimeout elapses without a response.
func (s *Session) TimeoutRPC(defID, uniqueID uint16) bool {
	return s.calls.Timeout(defID, uniqueID)
}

// Close tears down the session: pending RPC calls are cancelled, the
// current connection (if any) is dropped, and Run returns.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(Disconnecting)
		close(s.closed)
		s.calls.CancelAll()
		s.cancelConn()
	})
}
