// Package sinks provides destinations for encoded task results.
package sinks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/infracollect/archivekit/internal/pipeline"
)

// StreamSink writes every result to one writer, in the order they arrive.
type StreamSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStreamSink(w io.Writer) pipeline.Sink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Name() string {
	return "stream"
}

func (s *StreamSink) Kind() string {
	return "stream"
}

func (s *StreamSink) Write(_ context.Context, path string, data io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.Copy(s.w, data); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}

func (s *StreamSink) Close(context.Context) error {
	return nil
}
