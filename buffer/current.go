// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"sort"
	"sync"

	"github.com/mtconnect-go/mtcagent/model"
)

// CurrentStateIndex maps each data item to its latest observation, or to
// its set of active conditions. Writers (ingestion) and readers (queries,
// every streaming tick) run concurrently; the index is read-mostly and
// guarded by a single RWMutex.
type CurrentStateIndex struct {
	mu     sync.RWMutex
	latest map[string]model.Observation            // dataItemId -> latest SAMPLE/EVENT
	active map[string]map[string]model.Observation // dataItemId -> nativeCode -> condition
}

func NewCurrentStateIndex() *CurrentStateIndex {
	return &CurrentStateIndex{
		latest: make(map[string]model.Observation),
		active: make(map[string]map[string]model.Observation),
	}
}

// Update folds an accepted observation into the index. SAMPLE and EVENT
// replace the prior entry unconditionally. CONDITION entries accumulate by
// nativeCode; a NORMAL with no nativeCode clears the whole set, a NORMAL
// with a nativeCode clears only the matching entry, and UNAVAILABLE
// replaces the set.
func (c *CurrentStateIndex) Update(obs model.Observation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if obs.Category != model.CategoryCondition {
		c.latest[obs.DataItemID] = obs
		return
	}

	set := c.active[obs.DataItemID]
	if set == nil {
		set = make(map[string]model.Observation)
		c.active[obs.DataItemID] = set
	}

	switch obs.Condition.Level {
	case model.ConditionNormal:
		if obs.Condition.NativeCode == "" {
			clear(set)
			set[""] = obs
			return
		}
		delete(set, obs.Condition.NativeCode)
		if len(set) == 0 || onlyNormal(set) {
			clear(set)
			set[""] = obs
		}
	case model.ConditionUnavailable:
		clear(set)
		set[""] = obs
	default:
		delete(set, "") // an active fault or warning displaces the normal marker
		set[obs.Condition.NativeCode] = obs
	}
}

func onlyNormal(set map[string]model.Observation) bool {
	for _, obs := range set {
		if obs.Condition.Level != model.ConditionNormal {
			return false
		}
	}
	return true
}

// Latest returns the latest SAMPLE or EVENT observation for a data item.
func (c *CurrentStateIndex) Latest(dataItemID string) (model.Observation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.latest[dataItemID]
	return obs, ok
}

// ActiveConditions returns the active condition set for a data item in
// sequence order.
func (c *CurrentStateIndex) ActiveConditions(dataItemID string) []model.Observation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedConditions(c.active[dataItemID])
}

// ChangeID returns the content hash of the latest SAMPLE/EVENT entry for a
// data item, used by ingestion de-duplication. Conditions are never
// deduplicated so they are not consulted here.
func (c *CurrentStateIndex) ChangeID(dataItemID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obs, ok := c.latest[dataItemID]
	if !ok {
		return "", false
	}
	return obs.ChangeID, true
}

// Snapshot returns the current observation per data item, plus the active
// condition sets, sorted ascending by sequence. When dataItemIDs is
// non-empty only those items are included.
func (c *CurrentStateIndex) Snapshot(dataItemIDs []string) []model.Observation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var filter map[string]struct{}
	if len(dataItemIDs) > 0 {
		filter = make(map[string]struct{}, len(dataItemIDs))
		for _, id := range dataItemIDs {
			filter[id] = struct{}{}
		}
	}
	include := func(id string) bool {
		if filter == nil {
			return true
		}
		_, ok := filter[id]
		return ok
	}

	var out []model.Observation
	for id, obs := range c.latest {
		if include(id) {
			out = append(out, obs)
		}
	}
	for id, set := range c.active {
		if include(id) {
			out = append(out, sortedConditions(set)...)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

// Reset discards all state.
func (c *CurrentStateIndex) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.latest)
	clear(c.active)
}

func sortedConditions(set map[string]model.Observation) []model.Observation {
	if len(set) == 0 {
		return nil
	}
	out := make([]model.Observation, 0, len(set))
	for _, obs := range set {
		out = append(out, obs)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}
