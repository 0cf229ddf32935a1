// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

const informationFileName = "agent.json"

// CheckpointMargin is added to the persisted sequence checkpoint on
// restart. The checkpoint is written periodically rather than on every
// append, so the margin guarantees the resumed allocator never re-issues a
// sequence that an earlier run already handed out.
const CheckpointMargin = 1000

// Information is the persisted identity of one agent installation: the
// instance ID distinguishing this run from previous ones, the stable agent
// UUID, the sequence checkpoint, and the time the device model last changed.
type Information struct {
	InstanceID            int64     `json:"instanceId"`
	UUID                  string    `json:"uuid"`
	Sequence              uint64    `json:"sequence"`
	DeviceModelChangeTime time.Time `json:"deviceModelChangeTime"`
}

// InformationFile owns the on-disk agent information record.
type InformationFile struct {
	mu   sync.Mutex
	path string
	info Information
}

// LoadInformation reads the agent information record from dir, creating a
// fresh identity when none exists. The instance ID is always renewed: a new
// instance ID marks a new run, which is what invalidates stale sequence
// numbers held by clients of a previous run.
func LoadInformation(dir string) (*InformationFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	f := &InformationFile{path: filepath.Join(dir, informationFileName)}

	data, err := os.ReadFile(f.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		f.info = Information{UUID: uuid.NewString()}
	case err != nil:
		return nil, fmt.Errorf("failed to read agent information: %w", err)
	default:
		if err := json.Unmarshal(data, &f.info); err != nil {
			// A corrupt record costs the old identity, not startup.
			f.info = Information{UUID: uuid.NewString()}
		}
	}

	f.info.InstanceID = time.Now().Unix()
	if f.info.Sequence > 0 {
		f.info.Sequence += CheckpointMargin
	}
	if err := f.save(); err != nil {
		return nil, err
	}
	return f, nil
}

// Information returns a copy of the current record.
func (f *InformationFile) Information() Information {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

// Checkpoint records the highest issued sequence and persists the record.
func (f *InformationFile) Checkpoint(seq uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if seq <= f.info.Sequence {
		return nil
	}
	f.info.Sequence = seq
	return f.save()
}

// TouchDeviceModel records a device model change time and persists it.
func (f *InformationFile) TouchDeviceModel(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info.DeviceModelChangeTime = t
	return f.save()
}

// Reset removes the persisted record. The next load produces a fresh
// identity starting at sequence zero.
func (f *InformationFile) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (f *InformationFile) save() error {
	data, err := json.MarshalIndent(&f.info, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write agent information: %w", err)
	}
	return os.Rename(tmp, f.path)
}
