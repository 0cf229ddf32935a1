// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package buffer implements the agent's bounded, sequence-ordered stores:
// the observation buffer (with optional file-backed durability), the
// current-state index, and the asset buffer.
package buffer

import (
	"sort"
	"sync"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/model"
	"github.com/mtconnect-go/mtcagent/sequence"
)

// ObservationBuffer is a bounded, append-only log of sequenced observations.
// Appends assign sequence numbers through the single allocator; reads scan
// by sequence range. In durable mode every record is also written to
// paginated files so a restart can replay recent history.
type ObservationBuffer struct {
	mu       sync.RWMutex
	records  []model.Observation // ascending by sequence
	size     int
	batch    int // eviction granularity, page aligned
	alloc    *sequence.Allocator
	pages    *pageStore // nil in memory-only mode
	index    *CurrentStateIndex
	listener event.Listener
}

// NewObservationBuffer builds the buffer. When cfg.Durable is set, existing
// pages under cfg.Directory are replayed first, rebuilding the given
// current-state index, and corrupted pages are skipped with a fault event.
// The sequence allocator resumes above both the replayed history and the
// persisted checkpoint so numbers are never reused.
//
// The index is updated under the buffer's write lock on every append, so a
// reader can never observe a sequence in the buffer whose index update is
// not yet visible.
func NewObservationBuffer(cfg Config, checkpoint uint64, index *CurrentStateIndex, listener event.Listener) (*ObservationBuffer, error) {
	if listener == nil {
		listener = event.NopListener{}
	}
	b := &ObservationBuffer{
		size:     cfg.Size,
		batch:    cfg.PageSize,
		index:    index,
		listener: listener,
	}

	last := checkpoint
	if cfg.Durable {
		pages, err := newPageStore(cfg.Directory, cfg.PageSize)
		if err != nil {
			return nil, err
		}
		b.pages = pages
		recovered := pages.load(listener)
		if n := len(recovered); n > 0 {
			if n > cfg.Size {
				recovered = recovered[n-cfg.Size:]
			}
			b.records = recovered
			if seq := recovered[len(recovered)-1].Sequence; seq > last {
				last = seq
			}
		}
	}
	b.alloc = sequence.NewAllocator(last)

	// Trusted replay: records were validated when first accepted, so the
	// index is rebuilt without re-running validation.
	for _, rec := range b.records {
		b.index.Update(rec)
	}
	return b, nil
}

// Append assigns the next sequence number, stores the record, and triggers
// retention eviction when the buffer is over capacity. A durable write
// failure never fails the append; it is reported through the listener and
// retried on the next flush cycle.
func (b *ObservationBuffer) Append(obs model.Observation) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	obs.Sequence = b.alloc.Next()
	b.records = append(b.records, obs)
	if b.pages != nil {
		b.pages.append(obs)
	}
	b.index.Update(obs)
	b.evictLocked()
	return obs.Sequence
}

// evictLocked trims the oldest records once capacity is exceeded. Eviction
// is page-granular so durable files are dropped whole; the same batch size
// applies in memory-only mode to amortize the copy.
func (b *ObservationBuffer) evictLocked() {
	for len(b.records) > b.size {
		var evicted int
		if b.pages != nil {
			first, last, count, fault := b.pages.evictOldest()
			if fault != nil {
				b.listener.OnBufferFault(*fault)
			}
			if count == 0 {
				return
			}
			evicted = b.dropThroughLocked(last)
			b.listener.OnRetentionCompleted(event.RetentionCompleted{
				From: first, To: last, Evicted: evicted,
			})
			continue
		}

		n := b.batch
		if over := len(b.records) - b.size; over > n {
			n = over
		}
		if n > len(b.records) {
			n = len(b.records)
		}
		from, to := b.records[0].Sequence, b.records[n-1].Sequence
		b.records = append([]model.Observation(nil), b.records[n:]...)
		evicted = n
		b.listener.OnRetentionCompleted(event.RetentionCompleted{
			From: from, To: to, Evicted: evicted,
		})
	}
}

// dropThroughLocked removes records with sequence <= last and returns the
// number removed.
func (b *ObservationBuffer) dropThroughLocked(last uint64) int {
	n := sort.Search(len(b.records), func(i int) bool {
		return b.records[i].Sequence > last
	})
	if n == 0 {
		return 0
	}
	b.records = append([]model.Observation(nil), b.records[n:]...)
	return n
}

// Window reports the retained sequence bounds. For an empty buffer First
// equals Next: the only requestable position is the upcoming sequence.
func (b *ObservationBuffer) Window() model.SequenceWindow {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.windowLocked()
}

func (b *ObservationBuffer) windowLocked() model.SequenceWindow {
	next := b.alloc.Last() + 1
	w := model.SequenceWindow{First: next, Last: b.alloc.Last(), Next: next}
	if len(b.records) > 0 {
		w.First = b.records[0].Sequence
		w.Last = b.records[len(b.records)-1].Sequence
	}
	return w
}

// Len returns the number of retained records.
func (b *ObservationBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Scan visits retained records with from <= sequence <= to in ascending
// order until fn returns false. to == 0 means no upper bound. Each call
// re-scans from the requested position; no cursor is retained. Scanning
// holds a read lock only; ingestion is blocked just for the duration of
// the visit.
func (b *ObservationBuffer) Scan(from, to uint64, fn func(model.Observation) bool) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	w := b.windowLocked()
	if from < w.First || from > w.Next {
		return &RangeError{From: from, Window: w}
	}

	start := sort.Search(len(b.records), func(i int) bool {
		return b.records[i].Sequence >= from
	})
	for _, rec := range b.records[start:] {
		if to != 0 && rec.Sequence > to {
			return nil
		}
		if !fn(rec) {
			return nil
		}
	}
	return nil
}

// Range returns up to count records with sequence in [from, to] in
// ascending order. count <= 0 means no count limit; to == 0 means no upper
// bound. A from outside the retained window yields a RangeError carrying
// the window so the caller can retry.
func (b *ObservationBuffer) Range(from, to uint64, count int) ([]model.Observation, error) {
	var out []model.Observation
	err := b.Scan(from, to, func(obs model.Observation) bool {
		out = append(out, obs)
		return count <= 0 || len(out) < count
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Flush writes dirty durable pages. Failures are reported through the
// listener and retried on the next call. No-op in memory-only mode.
func (b *ObservationBuffer) Flush() {
	if b.pages == nil {
		return
	}
	for _, fault := range b.pages.flush() {
		b.listener.OnBufferFault(fault)
	}
}

// LastSequence returns the most recently issued sequence number.
func (b *ObservationBuffer) LastSequence() uint64 {
	return b.alloc.Last()
}

// Reset discards all retained records and durable files.
func (b *ObservationBuffer) Reset() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
	if b.pages != nil {
		return b.pages.removeAll()
	}
	return nil
}
