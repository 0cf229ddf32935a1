// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mtconnect-go/mtcagent/event"
	"github.com/mtconnect-go/mtcagent/model"
)

const pageSuffix = ".page"

// page is one durable unit of the observation log: a contiguous run of
// sequenced records backed by a single file named after its first sequence.
// Records are retained in memory until the file write succeeds so a failed
// flush can be retried on the next cycle.
type page struct {
	first   uint64
	last    uint64
	count   int
	path    string
	records []model.Observation
	sealed  bool
	flushed bool
}

// pageStore owns the on-disk half of the observation buffer: an append-only
// series of fixed-size pages plus one active partial page. Only the active
// page and any not-yet-flushed sealed pages are held in memory.
type pageStore struct {
	mu       sync.Mutex
	dir      string
	pageSize int
	pages    []*page // ascending by first sequence; last entry may be active
}

func newPageStore(dir string, pageSize int) (*pageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create buffer directory: %w", err)
	}
	return &pageStore{dir: dir, pageSize: pageSize}, nil
}

func (p *pageStore) pagePath(first uint64) string {
	return filepath.Join(p.dir, fmt.Sprintf("obs-%020d%s", first, pageSuffix))
}

// append adds a record to the active page, sealing it when full. Sealed
// pages stop being rewritten after their next successful flush.
func (p *pageStore) append(obs model.Observation) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var active *page
	if n := len(p.pages); n > 0 && !p.pages[n-1].sealed {
		active = p.pages[n-1]
	} else {
		active = &page{first: obs.Sequence, path: p.pagePath(obs.Sequence)}
		p.pages = append(p.pages, active)
	}

	active.records = append(active.records, obs)
	active.last = obs.Sequence
	active.count = len(active.records)
	active.flushed = false
	if active.count >= p.pageSize {
		active.sealed = true
	}
}

// flush writes every dirty page to disk, returning one fault per failed
// page. Failed pages stay dirty and are retried on the next flush.
func (p *pageStore) flush() []event.BufferFault {
	p.mu.Lock()
	defer p.mu.Unlock()

	var faults []event.BufferFault
	for _, pg := range p.pages {
		if pg.flushed {
			continue
		}
		if err := writePage(pg); err != nil {
			faults = append(faults, event.BufferFault{Path: pg.path, Err: err})
			continue
		}
		pg.flushed = true
		if pg.sealed {
			// Sealed and on disk: the in-memory copy is no longer needed.
			pg.records = nil
		}
	}
	return faults
}

func writePage(pg *page) error {
	data, err := encodeFrame(pg.records)
	if err != nil {
		return err
	}
	tmp := pg.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, pg.path)
}

// oldest returns the first page, if any.
func (p *pageStore) oldest() (*page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pages) == 0 {
		return nil, false
	}
	return p.pages[0], true
}

// evictOldest drops the first page and deletes its backing file. Returns
// the evicted range and a fault if the file could not be removed.
func (p *pageStore) evictOldest() (first, last uint64, count int, fault *event.BufferFault) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pages) == 0 {
		return 0, 0, 0, nil
	}
	pg := p.pages[0]
	p.pages = p.pages[1:]
	if err := os.Remove(pg.path); err != nil && !os.IsNotExist(err) {
		fault = &event.BufferFault{Path: pg.path, Err: err}
	}
	return pg.first, pg.last, pg.count, fault
}

// load replays every page file in the directory in sequence order. A page
// that cannot be read or decoded is skipped with a fault; recovery accepts
// the data loss and keeps going. The returned records seed the in-memory
// ring and the page list is rebuilt so retention keeps tracking the files.
func (p *pageStore) load(listener event.Listener) []model.Observation {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		listener.OnBufferFault(event.BufferFault{Path: p.dir, Err: err})
		return nil
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), pageSuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names) // zero-padded first sequence sorts numerically

	p.mu.Lock()
	defer p.mu.Unlock()

	var all []model.Observation
	for _, name := range names {
		path := filepath.Join(p.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			listener.OnBufferFault(event.BufferFault{Path: path, Err: err})
			continue
		}
		var records []model.Observation
		if err := decodeFrame(data, &records); err != nil {
			listener.OnBufferFault(event.BufferFault{Path: path, Err: err})
			continue
		}
		if len(records) == 0 {
			continue
		}
		pg := &page{
			first:   records[0].Sequence,
			last:    records[len(records)-1].Sequence,
			count:   len(records),
			path:    path,
			sealed:  len(records) >= p.pageSize,
			flushed: true,
		}
		if !pg.sealed {
			// The partial page keeps accepting records after restart.
			pg.records = records
		}
		p.pages = append(p.pages, pg)
		all = append(all, records...)
	}
	return all
}

// removeAll deletes every page file. Used by the reset operation.
func (p *pageStore) removeAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, pg := range p.pages {
		if err := os.Remove(pg.path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	p.pages = nil
	return firstErr
}
