// Package table implements the client-local mirror of the server's entry
// namespace: id/name indexing, sequence-number ordering, flag handling,
// and the clear-all sentinel (spec §4.5).
package table

import (
	"sync"

	"github.com/jpokornyiii/ntcore-client/internal/wire"
)

// Entry is the client-local view of one namespace entry.
type Entry struct {
	Name  string
	Type  wire.EntryType
	ID    uint16
	Seq   uint16
	Flags wire.EntryFlags
	Value wire.Value
}

// Table is the authoritative client-local mirror of the server's entry
// table: indexed by id (primary, once assigned) and by name (secondary).
// All methods are safe for concurrent use; callers outside the owning
// event-loop goroutine should use Snapshot rather than reading entries by
// reference.
type Table struct {
	mu      sync.RWMutex
	byID    map[uint16]*Entry
	byName  map[string]*Entry
}

// New returns an empty table.
func New() *Table {
	return &Table{
		byID:   make(map[uint16]*Entry),
		byName: make(map[string]*Entry),
	}
}

// wrapDistance computes the forward distance from a to b on a 16-bit
// wrapping counter: (b - a) mod 2^16.
func wrapDistance(a, b uint16) uint16 {
	return b - a
}

// seqAccepted implements the half-range wrap-around acceptance rule from
// spec §4.5/§8.3: accept iff (s' - s) mod 2^16 is in [1, 2^15].
func seqAccepted(stored, incoming uint16) bool {
	d := wrapDistance(stored, incoming)
	return d >= 1 && d <= 0x8000
}

// LookupRPCDefinition implements wire.RPCDefLookup: resolve an RPC
// definition by the entry id that carries it.
func (t *Table) LookupRPCDefinition(defID uint16) (*wire.RPCDefinition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.byID[defID]
	if !ok || e.Type != wire.TypeRPC || e.Value.RPCDef == nil {
		return nil, false
	}
	return e.Value.RPCDef, true
}

// Get returns a copy of the entry with the given id.
func (t *Table) Get(id uint16) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// GetByName returns a copy of the entry with the given name.
func (t *Table) GetByName(name string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.byName[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Snapshot returns a copy of every entry currently tracked, safe to read
// without holding the table's lock.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Entry, 0, len(t.byID))
	for _, e := range t.byID {
		out = append(out, *e)
	}
	return out
}

// Len reports the number of tracked entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// AssignmentResult distinguishes a fresh insert from an in-place replace
// or a name rebind, so the session layer can fire the right callback.
type AssignmentResult int

const (
	Inserted AssignmentResult = iota
	Replaced
	Rebound
)

// ApplyAssignment applies a server-sent ENTRY_ASSIGNMENT (spec §4.5).
//
// msg.ID == wire.UnassignedID is a protocol error: the spec resolves the
// open question of §4.9/§9 by treating a server-originated 0xFFFF as fatal
// — clients never legitimately receive the "awaiting id" sentinel back
// from the server.
func (t *Table) ApplyAssignment(msg wire.Message) (Entry, AssignmentResult, error) {
	if msg.EntryID == wire.UnassignedID {
		return Entry{}, 0, &wire.Error{Kind: wire.Malformed, Op: "entry_assignment: server sent unassigned id"}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry := &Entry{
		Name:  msg.EntryName,
		Type:  msg.EntryType,
		ID:    msg.EntryID,
		Seq:   msg.EntrySeq,
		Flags: msg.EntryFlags,
		Value: msg.EntryValue,
	}

	result := Inserted

	// If an entry with this name already exists at a different id, the
	// server's new assignment wins: drop the stale id mapping and rebind
	// the name.
	if existing, ok := t.byName[msg.EntryName]; ok && existing.ID != msg.EntryID {
		delete(t.byID, existing.ID)
		result = Rebound
	}

	if _, ok := t.byID[msg.EntryID]; ok {
		if result != Rebound {
			result = Replaced
		}
	}

	t.byID[msg.EntryID] = entry
	t.byName[msg.EntryName] = entry

	return *entry, result, nil
}

// ApplyUpdate applies a server-sent ENTRY_UPDATE (spec §4.5). A missing
// entry is silently ignored (the protocol tolerates stale updates racing a
// delete). A stale seq is dropped without modifying the stored value.
// Returns the entry's value before the update (for embedder callbacks)
// and whether the update was accepted.
func (t *Table) ApplyUpdate(msg wire.Message) (prev wire.Value, accepted bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[msg.EntryID]
	if !ok {
		return wire.Value{}, false
	}

	if !seqAccepted(e.Seq, msg.EntrySeq) {
		return e.Value, false
	}

	prev = e.Value
	e.Type = msg.EntryType
	e.Value = msg.EntryValue
	e.Seq = msg.EntrySeq
	return prev, true
}

// ApplyFlagsUpdate applies a server-sent ENTRY_FLAGS_UPDATE. Seq is left
// untouched per spec §4.5. A missing entry is ignored.
func (t *Table) ApplyFlagsUpdate(msg wire.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[msg.EntryID]
	if !ok {
		return false
	}
	e.Flags = msg.EntryFlags
	return true
}

// ApplyDelete removes the entry with the given id. Deleting an unknown id
// is a no-op; returns whether an entry was actually removed.
func (t *Table) ApplyDelete(id uint16) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return Entry{}, false
	}
	delete(t.byID, id)
	delete(t.byName, e.Name)
	return *e, true
}

// ApplyClearAll removes every tracked entry, including pending
// client-side placeholder (unassigned-id) entries.
func (t *Table) ApplyClearAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.byID = make(map[uint16]*Entry)
	t.byName = make(map[string]*Entry)
}

// Propose builds the outbound message for a client-originated write and,
// for a brand-new name, placeholder-inserts it locally with
// wire.UnassignedID so PropositionByClient is visible to local readers
// before the server's authoritative echo arrives (spec §4.5/§9: writes
// become authoritative only on server echo, to avoid diverging
// names/ids).
//
// If name is already known, Propose builds an ENTRY_UPDATE with the
// stored seq incremented by one; the caller applies the optimistic local
// mutation, if desired, via the returned Entry — Propose itself does not
// mutate an existing entry, only a brand-new placeholder.
func (t *Table) Propose(name string, typ wire.EntryType, value wire.Value, flags wire.EntryFlags) (wire.Message, Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.byName[name]; ok {
		nextSeq := existing.Seq + 1
		msg := wire.EntryUpdate(existing.ID, nextSeq, typ, value)
		return msg, *existing
	}

	placeholder := &Entry{
		Name:  name,
		Type:  typ,
		ID:    wire.UnassignedID,
		Seq:   1,
		Flags: flags,
		Value: value,
	}
	t.byName[name] = placeholder

	msg := wire.EntryAssignment(name, typ, wire.UnassignedID, 1, flags, value)
	return msg, *placeholder
}
