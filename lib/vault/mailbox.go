// Copyright 2026 The YAI Authors
// SPDX-License-Identifier: Apache-2.0

package vault

import (
	"sync/atomic"

	"github.com/yai-labs/yai/lib/command"
)

// The mailbox is a single-slot command channel inside the record. The
// writer stores last_command_id and then bumps command_seq; the reader
// notices command_seq != last_processed_seq, processes the command, and
// publishes the result followed by last_processed_seq. Ordering of the
// two stores on each side is what makes the slot safe to poll.

// PostCommand places id in the mailbox and returns the new sequence.
func PostCommand(r *Record, id command.ID) uint32 {
	r.store(offLastCommandID, uint32(id))
	return atomic.AddUint32(r.word(offCommandSeq), 1)
}

// PendingCommand returns the command waiting in the mailbox, if any.
func PendingCommand(r *Record) (command.ID, uint32, bool) {
	seq := r.CommandSeq()
	if seq == r.LastProcessedSeq() {
		return 0, seq, false
	}
	return r.LastCommandID(), seq, true
}

// CompleteCommand publishes the result for seq.
func CompleteCommand(r *Record, seq, result uint32) {
	r.SetLastResult(result)
	r.store(offLastProcessedSeq, seq)
}

// QueueDepth returns how many posted commands the reader has not yet
// acknowledged.
func QueueDepth(r *Record) uint32 {
	seq, processed := r.CommandSeq(), r.LastProcessedSeq()
	if seq >= processed {
		return seq - processed
	}
	return 0
}
