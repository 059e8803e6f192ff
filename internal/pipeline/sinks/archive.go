package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/infracollect/archivekit/internal/pipeline"
)

// ArchiveSink gathers every write into one bundle and hands the bundle to
// the inner sink on Close.
type ArchiveSink struct {
	inner       pipeline.Sink
	archiver    pipeline.Archiver
	archiveName string
}

// NewArchiveSink wraps inner. The archiver's extension is appended to
// archiveName unless it already ends with it.
func NewArchiveSink(inner pipeline.Sink, archiver pipeline.Archiver, archiveName string) *ArchiveSink {
	if ext := archiver.Extension(); !strings.HasSuffix(archiveName, ext) {
		archiveName += ext
	}
	return &ArchiveSink{
		inner:       inner,
		archiver:    archiver,
		archiveName: archiveName,
	}
}

func (s *ArchiveSink) Name() string {
	return fmt.Sprintf("archive(%s)->%s", s.archiveName, s.inner.Name())
}

func (s *ArchiveSink) Kind() string {
	return "archive"
}

func (s *ArchiveSink) Write(ctx context.Context, path string, data io.Reader) error {
	if err := s.archiver.AddFile(ctx, path, data); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	return nil
}

// Close builds the bundle, writes it to the inner sink and closes the inner
// sink. The inner sink is closed even when the bundle could not be built.
func (s *ArchiveSink) Close(ctx context.Context) error {
	reader, err := s.archiver.Close(ctx)
	if err != nil {
		return errors.Join(
			fmt.Errorf("failed to finalize archive: %w", err),
			s.inner.Close(ctx),
		)
	}

	if err := s.inner.Write(ctx, s.archiveName, reader); err != nil {
		return errors.Join(
			fmt.Errorf("failed to write archive to sink: %w", err),
			s.inner.Close(ctx),
		)
	}

	if err := s.inner.Close(ctx); err != nil {
		return fmt.Errorf("failed to close inner sink: %w", err)
	}

	return nil
}
