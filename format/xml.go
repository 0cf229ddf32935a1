// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package format

import "encoding/xml"

// XML renders documents as application/xml with a standard declaration.
// Element naming follows the struct tags on the model package, which carry
// MTConnect document element names.
type XML struct{}

var _ Formatter = XML{}

func (XML) Key() string { return "xml" }

func (XML) MediaType() string { return "application/xml" }

func (XML) Format(doc any, opts Options) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if opts.Pretty {
		data, err = xml.MarshalIndent(doc, "", "  ")
	} else {
		data, err = xml.Marshal(doc)
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(data))
	out = append(out, xml.Header...)
	out = append(out, data...)
	return out, nil
}

func (XML) Decode(data []byte, v any) error {
	return xml.Unmarshal(data, v)
}
