// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"encoding/hex"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/mtconnect-go/mtcagent/model"
)

var changeIDEncMode cbor.EncMode

func init() {
	var err error
	changeIDEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// changeIDPayload is the hashed content of an observation: the value, and
// for conditions the condition fields. Timestamp and sequence are excluded
// so a repeated reading with a fresh timestamp still hashes identically.
type changeIDPayload struct {
	Value     model.Value     `cbor:"1,keyasint"`
	Condition model.Condition `cbor:"2,keyasint,omitempty"`
}

// changeID derives the content hash used for consecutive-duplicate
// suppression. Deterministic encoding keeps the hash stable across map
// ordering and process restarts.
func changeID(obs *model.Observation) string {
	payload := changeIDPayload{Value: obs.Value}
	if obs.Category == model.CategoryCondition {
		payload.Condition = obs.Condition
	}
	data, err := changeIDEncMode.Marshal(&payload)
	if err != nil {
		// The payload is a closed struct of encodable fields; Marshal cannot
		// fail for any value the validator admits.
		panic(err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
