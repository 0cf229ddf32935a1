// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package format

import "encoding/json"

// JSON renders documents as application/json.
type JSON struct{}

var _ Formatter = JSON{}

func (JSON) Key() string { return "json" }

func (JSON) MediaType() string { return "application/json" }

func (JSON) Format(doc any, opts Options) ([]byte, error) {
	if opts.Pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
