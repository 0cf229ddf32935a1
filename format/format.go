// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

// Package format renders response documents to wire encodings. Formatters
// are looked up by key from an explicitly constructed registry so tests can
// build isolated registries instead of sharing ambient state.
package format

import (
	"fmt"
	"sort"
	"strings"
)

// Options adjusts formatter output per request.
type Options struct {
	// Pretty indents the output for human consumption.
	Pretty bool
}

// Formatter renders documents for one encoding and parses externally
// supplied documents in that encoding.
type Formatter interface {
	// Key is the short name clients select the formatter by, e.g. "json".
	Key() string

	// MediaType is the content type reported with formatted payloads.
	MediaType() string

	// Format renders a response document.
	Format(doc any, opts Options) ([]byte, error)

	// Decode parses an externally supplied document body into v.
	Decode(data []byte, v any) error
}

// UnknownFormatError reports a request for a formatter key that is not
// registered.
type UnknownFormatError struct {
	Key       string
	Available []string
}

func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown document format %q, available: %s", e.Key, strings.Join(e.Available, ", "))
}

// Registry holds the formatters constructed at startup.
type Registry struct {
	byKey      map[string]Formatter
	defaultKey string
}

// NewRegistry builds a registry over the given formatters. The first
// formatter is the default used when a request names no format.
func NewRegistry(formatters ...Formatter) *Registry {
	r := &Registry{byKey: make(map[string]Formatter, len(formatters))}
	for i, f := range formatters {
		if i == 0 {
			r.defaultKey = f.Key()
		}
		r.byKey[f.Key()] = f
	}
	return r
}

// Lookup returns the formatter for key, or the default formatter when key
// is empty.
func (r *Registry) Lookup(key string) (Formatter, error) {
	if key == "" {
		key = r.defaultKey
	}
	f, ok := r.byKey[strings.ToLower(key)]
	if !ok {
		return nil, &UnknownFormatError{Key: key, Available: r.Keys()}
	}
	return f, nil
}

// LookupMediaType returns the formatter that produces the given media
// type, if one is registered.
func (r *Registry) LookupMediaType(mediaType string) (Formatter, bool) {
	for _, f := range r.byKey {
		if strings.EqualFold(f.MediaType(), mediaType) {
			return f, true
		}
	}
	return nil, false
}

// Keys lists the registered formatter keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
