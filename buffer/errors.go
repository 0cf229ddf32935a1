// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package buffer

import (
	"fmt"
	"net/http"

	"github.com/mtconnect-go/mtcagent/model"
)

// RangeError reports a request for sequences outside the retained window.
// The window bounds are included so the caller can self-correct and retry.
type RangeError struct {
	From   uint64
	Window model.SequenceWindow
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("sequence %d is outside the retained window [%d, %d]",
		e.From, e.Window.First, e.Window.Last)
}

func (e *RangeError) StatusCode() int {
	return http.StatusBadRequest
}

// AssetNotFoundError reports a lookup for an asset ID that is not stored.
type AssetNotFoundError struct {
	AssetID string
}

func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("asset %q not found", e.AssetID)
}

func (e *AssetNotFoundError) StatusCode() int {
	return http.StatusNotFound
}
