// SPDX-FileCopyrightText: 2026 The mtcagent Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"io"
	"net/http"
)

// Boundary separates chunks in a multipart/x-mixed-replace response.
const Boundary = "mtcagent_chunk"

// MediaType is the Content-Type header value for a streaming response.
const MediaType = "multipart/x-mixed-replace;boundary=" + Boundary

// MultipartSink frames chunks as multipart/x-mixed-replace sections over an
// http.ResponseWriter, flushing after every chunk so long-poll clients see
// data immediately.
type MultipartSink struct {
	w       io.Writer
	flusher http.Flusher
}

// NewMultipartSink prepares w for streaming. The response Content-Type is
// set here; callers must not have written a body yet.
func NewMultipartSink(w http.ResponseWriter) *MultipartSink {
	w.Header().Set("Content-Type", MediaType)
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)
	return &MultipartSink{w: w, flusher: flusher}
}

func (s *MultipartSink) WriteChunk(payload []byte, contentType string) error {
	_, err := fmt.Fprintf(s.w, "--%s\r\nContent-Type: %s\r\nContent-Length: %d\r\n\r\n",
		Boundary, contentType, len(payload))
	if err != nil {
		return err
	}
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, "\r\n"); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
