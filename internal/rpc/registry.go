// Package rpc implements the client-side call registry that correlates
// outgoing RPC_EXECUTE invocations with their RPC_RESPONSE (spec §4.7).
package rpc

import (
	"sync"

	"github.com/jpokornyiii/ntcore-client/internal/wire"
)

// Outcome tags how a pending call finished.
type Outcome int

const (
	Completed Outcome = iota
	Cancelled
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "Completed"
	case Cancelled:
		return "Cancelled"
	case TimedOut:
		return "TimedOut"
	default:
		return "Unknown"
	}
}

// Result is delivered on a call's completion channel exactly once.
type Result struct {
	Outcome Outcome
	Values  []wire.Value
}

type callKey struct {
	defID    uint16
	uniqueID uint16
}

type pendingCall struct {
	done chan Result
}

// Registry tracks in-flight RPC calls keyed by (definitionId, uniqueId).
// It owns uniqueId allocation: a fresh id is monotonic modulo 2^16 per
// definition, skipping ids already in flight for that definition.
type Registry struct {
	mu      sync.Mutex
	pending map[callKey]*pendingCall
	next    map[uint16]uint16 // next candidate uniqueId per definitionId
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		pending: make(map[callKey]*pendingCall),
		next:    make(map[uint16]uint16),
	}
}

// Begin allocates a uniqueId for defID and registers a pending slot,
// returning the chosen uniqueId and a channel that receives exactly one
// Result when the call completes (by response, cancellation, or timeout;
// the caller is responsible for enforcing its own timeout via context and
// calling Timeout on expiry).
func (r *Registry) Begin(defID uint16) (uniqueID uint16, done <-chan Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate := r.next[defID]
	for {
		key := callKey{defID: defID, uniqueID: candidate}
		if _, inFlight := r.pending[key]; !inFlight {
			break
		}
		candidate++
	}

	ch := make(chan Result, 1)
	r.pending[callKey{defID: defID, uniqueID: candidate}] = &pendingCall{done: ch}
	r.next[defID] = candidate + 1

	return candidate, ch
}

// Complete delivers a RPC_RESPONSE's results to the matching pending call.
// An unmatched (defID, uniqueID) is reported via ok=false; the caller
// should log and discard per spec §4.7.
func (r *Registry) Complete(defID, uniqueID uint16, values []wire.Value) (ok bool) {
	r.mu.Lock()
	call, found := r.pending[callKey{defID: defID, uniqueID: uniqueID}]
	if found {
		delete(r.pending, callKey{defID: defID, uniqueID: uniqueID})
	}
	r.mu.Unlock()

	if !found {
		return false
	}
	call.done <- Result{Outcome: Completed, Values: values}
	return true
}

// Timeout completes a pending call with TimedOut if it is still pending.
// Any later response for the same key is silently discarded by Complete
// (it will find no matching entry). Returns whether the call was still
// pending.
func (r *Registry) Timeout(defID, uniqueID uint16) bool {
	r.mu.Lock()
	call, found := r.pending[callKey{defID: defID, uniqueID: uniqueID}]
	if found {
		delete(r.pending, callKey{defID: defID, uniqueID: uniqueID})
	}
	r.mu.Unlock()

	if !found {
		return false
	}
	call.done <- Result{Outcome: TimedOut}
	return true
}

// CancelAll completes every pending call with Cancelled; called on session
// drop (spec §4.7, §5 Cancellation).
func (r *Registry) CancelAll() {
	r.mu.Lock()
	pending := r.pending
	r.pending = make(map[callKey]*pendingCall)
	r.mu.Unlock()

	for _, call := range pending {
		call.done <- Result{Outcome: Cancelled}
	}
}

// Len reports the number of in-flight calls, for metrics/diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
