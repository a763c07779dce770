// Package client is the embedder-facing API for the ntcore telemetry
// protocol client: connect/close, entry accessors, RPC invocation, and the
// seven callbacks described in spec §6.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jpokornyiii/ntcore-client/internal/bytesize"
	"github.com/jpokornyiii/ntcore-client/internal/metrics"
	"github.com/jpokornyiii/ntcore-client/internal/rpc"
	"github.com/jpokornyiii/ntcore-client/internal/session"
	"github.com/jpokornyiii/ntcore-client/internal/table"
	"github.com/jpokornyiii/ntcore-client/internal/wire"
	"github.com/jpokornyiii/ntcore-client/pkg/config"
)

// State mirrors the session state machine for embedders that don't want to
// import internal/session directly.
type State = session.State

const (
	Disconnected                = session.Disconnected
	Connecting                  = session.Connecting
	AwaitingServerHello         = session.AwaitingServerHello
	ReceivingInitialAssignments = session.ReceivingInitialAssignments
	Ready                       = session.Ready
	Disconnecting               = session.Disconnecting
)

// Callbacks is the set of embedder-visible events (spec §6). Any subset may
// be left nil.
type Callbacks struct {
	ConnectionStateChanged func(State)
	EntryAssigned          func(table.Entry)
	EntryUpdated           func(entry table.Entry, prevValue wire.Value)
	EntryFlagsUpdated      func(table.Entry)
	EntryDeleted           func(id uint16, name string)
	EntriesCleared         func()
	RPCResponse            func(defID, uniqueID uint16, results []wire.Value)
}

// RPCOutcome is the terminal state of one CallRPC invocation.
type RPCOutcome = rpc.Outcome

const (
	Completed = rpc.Completed
	Cancelled = rpc.Cancelled
	TimedOut  = rpc.TimedOut
)

// Client is one ntcore connection as seen by an embedding application. It
// wraps internal/session.Session, translating its table/rpc internals into
// the stable public surface.
type Client struct {
	cfg     *config.Config
	sess    *session.Session
	metrics *metrics.Metrics
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Client from cfg, wiring cb's callbacks into the underlying
// session. m, if non-nil, receives connection-state, entry-count,
// keep-alive, byte, decode-error, and RPC metrics as the session runs; pass
// nil to disable metrics (every Metrics method is nil-safe). Callers
// typically construct m via metrics.New only when cfg.Metrics.Enabled.
func New(cfg *config.Config, cb Callbacks, m *metrics.Metrics) *Client {
	events := session.Events{
		ConnectionStateChanged: func(s session.State) {
			if m != nil {
				m.SetConnectionState(int(s))
			}
			if cb.ConnectionStateChanged != nil {
				cb.ConnectionStateChanged(s)
			}
		},
		EntryAssigned:     cb.EntryAssigned,
		EntryUpdated:      cb.EntryUpdated,
		EntryFlagsUpdated: cb.EntryFlagsUpdated,
		EntryDeleted:      cb.EntryDeleted,
		EntriesCleared:    cb.EntriesCleared,
		RPCResponse:       cb.RPCResponse,
	}

	sess := session.New(session.Config{
		ServerAddress:     cfg.ServerAddress,
		ServerPort:        cfg.ServerPort,
		ClientIdent:       cfg.ClientIdent,
		KeepAliveInterval: cfg.KeepAliveInterval,
		RPCTimeout:        cfg.RPCTimeout,
		Reconnect:         cfg.Reconnect,
		Backoff: session.BackoffConfig{
			Initial: cfg.ReconnectBackoff.Initial,
			Cap:     cfg.ReconnectBackoff.Cap,
			Factor:  cfg.ReconnectBackoff.Factor,
			Jitter:  cfg.ReconnectBackoff.Jitter,
		},
		OutboundQueueSize: cfg.OutboundQueueSize,
		NonBlockingSend:   cfg.NonBlockingSend,
		Metrics:           m,
	}, events)

	return &Client{cfg: cfg, sess: sess, metrics: m}
}

// Connect starts the session's connect/handshake/reconnect loop in the
// background. It returns immediately, without waiting for the dial or the
// handshake; embedders should watch ConnectionStateChanged for Ready.
func (c *Client) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		_ = c.sess.Run(ctx)
	}()
}

// Close tears down the connection and waits for the background loop to
// exit.
func (c *Client) Close() {
	c.sess.Close()
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.sess.State()
}

// Entries returns a snapshot of every currently known entry.
func (c *Client) Entries() []table.Entry {
	return c.sess.Table().Snapshot()
}

// Entry returns the entry with the given id, if known.
func (c *Client) Entry(id uint16) (table.Entry, bool) {
	return c.sess.Table().Get(id)
}

// EntryByName returns the entry with the given name, if known.
func (c *Client) EntryByName(name string) (table.Entry, bool) {
	return c.sess.Table().GetByName(name)
}

// Propose submits a client-origin value for name, building an
// ENTRY_ASSIGNMENT (new name) or ENTRY_UPDATE (known name) per spec §4.5,
// and queues it for send.
func (c *Client) Propose(name string, typ wire.EntryType, value wire.Value, persistent bool) error {
	msg, _ := c.sess.Table().Propose(name, typ, value, wire.NewEntryFlags(persistent))
	return c.sess.Send(msg)
}

// Delete requests deletion of the entry with the given id.
func (c *Client) Delete(id uint16) error {
	return c.sess.Send(wire.EntryDelete(id))
}

// CallRPC invokes the RPC definition at defID with params, blocking until a
// response arrives, ctx is cancelled, or cfg.RPCTimeout elapses.
func (c *Client) CallRPC(ctx context.Context, defID uint16, params []wire.Value) ([]wire.Value, RPCOutcome, error) {
	if size := rpcPayloadSize(params); c.cfg.MaxRPCPayloadSize > 0 && bytesize.ByteSize(size) > c.cfg.MaxRPCPayloadSize {
		return nil, Cancelled, fmt.Errorf("client: rpc %d: payload %s exceeds max_rpc_payload_size %s", defID, bytesize.ByteSize(size), c.cfg.MaxRPCPayloadSize)
	}

	uniqueID, resultCh := c.sess.BeginRPC(defID)

	if err := c.sess.Send(wire.RPCExecute(defID, uniqueID, params)); err != nil {
		c.sess.TimeoutRPC(defID, uniqueID)
		return nil, TimedOut, err
	}

	timeout := c.cfg.RPCTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	start := time.Now()
	select {
	case res := <-resultCh:
		c.recordOutcome(res.Outcome, start)
		if res.Outcome != Completed {
			return nil, res.Outcome, fmt.Errorf("client: rpc %d/%d: %v", defID, uniqueID, res.Outcome)
		}
		return res.Values, Completed, nil

	case <-timer.C:
		c.sess.TimeoutRPC(defID, uniqueID)
		res := <-resultCh
		c.recordOutcome(res.Outcome, start)
		return nil, res.Outcome, fmt.Errorf("client: rpc %d/%d: %v", defID, uniqueID, res.Outcome)

	case <-ctx.Done():
		c.sess.TimeoutRPC(defID, uniqueID)
		return nil, Cancelled, ctx.Err()
	}
}

// rpcPayloadSize estimates the encoded size of an RPC call's parameter
// values, used to enforce cfg.MaxRPCPayloadSize before a call is sent.
func rpcPayloadSize(params []wire.Value) int {
	n := 0
	for _, v := range params {
		switch v.Type {
		case wire.TypeBoolean:
			n++
		case wire.TypeDouble:
			n += 8
		case wire.TypeString:
			n += len(v.Str)
		case wire.TypeRaw:
			n += len(v.RawBytes)
		case wire.TypeBooleanArray:
			n += len(v.BoolArray)
		case wire.TypeDoubleArray:
			n += 8 * len(v.DoubleArray)
		case wire.TypeStringArray:
			for _, s := range v.StringArray {
				n += len(s)
			}
		}
	}
	return n
}

func (c *Client) recordOutcome(outcome RPCOutcome, start time.Time) {
	if c.metrics == nil {
		return
	}
	label := outcome.String()
	switch outcome {
	case Completed:
		label = "completed"
	case Cancelled:
		label = "cancelled"
	case TimedOut:
		label = "timed_out"
	}
	c.metrics.RecordRPCCall(label, time.Since(start).Seconds())
}
