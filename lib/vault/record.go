// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/yai-labs/yai/lib/command"
)

// Record is a view over the Size bytes of one Vault. The memory is
// either a private heap buffer ([New]) or a shared mapping owned by a
// [Segment]. Record never allocates or frees the underlying memory.
type Record struct {
	mem []byte
}

// New returns a zeroed record backed by private memory. Used by tests
// and by tools that inspect a copied-out record.
func New() *Record {
	// Back the record with uint64 words so the 64-bit clock is
	// naturally aligned for atomic access.
	words := make([]uint64, Size/8)
	return &Record{mem: unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), Size)}
}

// View wraps mem as a record. mem must hold at least Size bytes and
// start on an 8-byte boundary (any mmap result does).
func View(mem []byte) (*Record, error) {
	if len(mem) < Size {
		return nil, fmt.Errorf("vault: record needs %d bytes, have %d", Size, len(mem))
	}
	if uintptr(unsafe.Pointer(&mem[0]))%8 != 0 {
		return nil, fmt.Errorf("vault: record memory is not 8-byte aligned")
	}
	return &Record{mem: mem[:Size:Size]}, nil
}

// Bytes returns the raw record memory. Writes through the returned
// slice bypass every guard.
func (r *Record) Bytes() []byte { return r.mem }

func (r *Record) word(offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[offset]))
}

func (r *Record) load(offset int) uint32 { return atomic.LoadUint32(r.word(offset)) }

func (r *Record) store(offset int, value uint32) { atomic.StoreUint32(r.word(offset), value) }

// Status returns the raw lifecycle state. The kernel package gives the
// values meaning.
func (r *Record) Status() uint32 { return r.load(offStatus) }

// StoreStatus writes the lifecycle state. Only the kernel FSM and the
// engine's emergency path call this.
func (r *Record) StoreStatus(status uint32) { r.store(offStatus, status) }

// EnergyQuota returns the energy budget.
func (r *Record) EnergyQuota() uint32 { return r.load(offEnergyQuota) }

// SetEnergyQuota replaces the energy budget.
func (r *Record) SetEnergyQuota(quota uint32) { r.store(offEnergyQuota, quota) }

// EnergyConsumed returns the energy spent so far.
func (r *Record) EnergyConsumed() uint32 { return r.load(offEnergyConsumed) }

// ResetEnergy zeroes the consumed counter. Used when a workspace is
// re-provisioned with a fresh budget.
func (r *Record) ResetEnergy() { r.store(offEnergyConsumed, 0) }

// lockMask selects the authority_lock byte within its 32-bit word,
// whatever the host byte order. The three bytes after it are padding
// and always zero.
var lockMask = binary.NativeEndian.Uint32([]byte{0xff, 0, 0, 0})

// lockTrue is the word value with authority_lock set to true.
var lockTrue = binary.NativeEndian.Uint32([]byte{1, 0, 0, 0})

// AuthorityLocked reports whether the governance lock is engaged.
func (r *Record) AuthorityLocked() bool {
	return r.load(offAuthorityLock)&lockMask != 0
}

// SetAuthorityLock engages or clears the governance lock.
func (r *Record) SetAuthorityLock(locked bool) {
	if locked {
		r.store(offAuthorityLock, lockTrue)
	} else {
		r.store(offAuthorityLock, 0)
	}
}

// WorkspaceID returns the owning workspace id.
func (r *Record) WorkspaceID() string {
	return readFixed(r.mem[offWorkspaceID : offWorkspaceID+WorkspaceIDCapacity])
}

// TraceID returns the trace id of the most recent request.
func (r *Record) TraceID() string {
	return readFixed(r.mem[offTraceID : offTraceID+TraceIDCapacity])
}

// SetTraceID records the trace id of the request being processed.
func (r *Record) SetTraceID(traceID string) {
	writeFixed(r.mem[offTraceID:offTraceID+TraceIDCapacity], traceID)
}

// LastCommandID returns the command most recently posted to the mailbox.
func (r *Record) LastCommandID() command.ID { return command.ID(r.load(offLastCommandID)) }

// CommandSeq returns the mailbox write sequence.
func (r *Record) CommandSeq() uint32 { return r.load(offCommandSeq) }

// LastProcessedSeq returns the mailbox read sequence.
func (r *Record) LastProcessedSeq() uint32 { return r.load(offLastProcessedSeq) }

// LastResult returns the result code of the last processed command.
func (r *Record) LastResult() uint32 { return r.load(offLastResult) }

// SetLastResult records a result code.
func (r *Record) SetLastResult(result uint32) { r.store(offLastResult, result) }

// Response returns the contents of the response buffer.
func (r *Record) Response() string {
	return readFixed(r.mem[offResponse : offResponse+ResponseCapacity])
}

// SetResponse writes a textual response, truncated to fit.
func (r *Record) SetResponse(response string) {
	writeFixed(r.mem[offResponse:offResponse+ResponseCapacity], response)
}

// LastError returns the contents of the error buffer.
func (r *Record) LastError() string {
	return readFixed(r.mem[offLastError : offLastError+ErrorCapacity])
}

// ClearError empties the error buffer.
func (r *Record) ClearError() {
	clear(r.mem[offLastError : offLastError+ErrorCapacity])
}

// LogicalClock returns the number of accepted FSM transitions.
func (r *Record) LogicalClock() uint64 {
	return atomic.LoadUint64((*uint64)(unsafe.Pointer(&r.mem[offLogicalClock])))
}

// TickClock increments the logical clock and returns the new value.
func (r *Record) TickClock() uint64 {
	return atomic.AddUint64((*uint64)(unsafe.Pointer(&r.mem[offLogicalClock])), 1)
}

// Snapshot is a point-in-time copy of a record, shaped for JSON status
// responses and CLI output.
type Snapshot struct {
	Status           uint32 `json:"status"`
	EnergyQuota      uint32 `json:"energy_quota"`
	EnergyConsumed   uint32 `json:"energy_consumed"`
	WorkspaceID      string `json:"ws_id"`
	TraceID          string `json:"trace_id,omitempty"`
	AuthorityLock    bool   `json:"authority_lock"`
	LastCommandID    uint32 `json:"last_command_id"`
	CommandSeq       uint32 `json:"command_seq"`
	LastProcessedSeq uint32 `json:"last_processed_seq"`
	LastResult       uint32 `json:"last_result"`
	Response         string `json:"response,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LogicalClock     uint64 `json:"logical_clock"`
}

// Snapshot copies every field. Fields are read one at a time, so a
// concurrent writer can make the snapshot inconsistent across fields
// (never within one).
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		Status:           r.Status(),
		EnergyQuota:      r.EnergyQuota(),
		EnergyConsumed:   r.EnergyConsumed(),
		WorkspaceID:      r.WorkspaceID(),
		TraceID:          r.TraceID(),
		AuthorityLock:    r.AuthorityLocked(),
		LastCommandID:    uint32(r.LastCommandID()),
		CommandSeq:       r.CommandSeq(),
		LastProcessedSeq: r.LastProcessedSeq(),
		LastResult:       r.LastResult(),
		Response:         r.Response(),
		LastError:        r.LastError(),
		LogicalClock:     r.LogicalClock(),
	}
}

// writeFixed stores s in field as printable text: bytes outside the
// printable ASCII range become '?', the value is truncated to leave
// room for the terminating NUL, and the rest of the field is zeroed.
func writeFixed(field []byte, s string) {
	limit := min(len(s), len(field)-1)
	for i := 0; i < limit; i++ {
		c := s[i]
		if c < 0x20 || c > 0x7e {
			c = '?'
		}
		field[i] = c
	}
	clear(field[limit:])
}

func readFixed(field []byte) string {
	if index := bytes.IndexByte(field, 0); index >= 0 {
		return string(field[:index])
	}
	return string(field)
}
