// Package tasks implements the list, extract and compress job tasks on top
// of an engine session.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/infracollect/archivekit/internal/archive"
	"github.com/infracollect/archivekit/internal/hostfs"
	"github.com/infracollect/archivekit/internal/session"
	"go.uber.org/zap"
)

const EngineCollectorKind = "engine"

type EngineConfig struct {
	// Module is passed to Loader.Load.
	Module string
	Loader session.Loader
	// FS defaults to the host filesystem.
	FS *hostfs.FS
	// Fetcher resolves remote sources. Nil rejects them.
	Fetcher *Fetcher
	// Progress receives extract and compress progress in addition to the
	// debug log.
	Progress archive.Progress
}

// Engine is the collector that owns the engine session for a job's tasks.
type Engine struct {
	cfg     EngineConfig
	logger  *zap.Logger
	session *session.Session
	archive *archive.Archive
}

func NewEngine(cfg EngineConfig, logger *zap.Logger) (*Engine, error) {
	if cfg.Module == "" {
		return nil, errors.New("engine module is required")
	}
	if cfg.Loader == nil {
		return nil, errors.New("engine loader is required")
	}
	if cfg.FS == nil {
		cfg.FS = hostfs.OS()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

func (e *Engine) Name() string {
	return fmt.Sprintf("%s(%s)", EngineCollectorKind, e.cfg.Module)
}

func (e *Engine) Kind() string {
	return EngineCollectorKind
}

func (e *Engine) Start(context.Context) error {
	if e.session != nil {
		return nil
	}
	s, err := session.Open(e.cfg.Loader, e.cfg.Module, e.logger)
	if err != nil {
		return err
	}
	e.session = s
	e.archive = archive.New(s, e.cfg.FS, e.logger)
	return nil
}

func (e *Engine) Close(context.Context) error {
	if e.session == nil {
		return nil
	}
	err := e.session.Close()
	e.session = nil
	e.archive = nil
	return err
}

// Archive returns the operations bound to the session. It fails until Start
// has succeeded.
func (e *Engine) Archive() (*archive.Archive, error) {
	if e.archive == nil {
		return nil, fmt.Errorf("%s is not started", e.Name())
	}
	return e.archive, nil
}

func (e *Engine) FS() *hostfs.FS {
	return e.cfg.FS
}

// Resolve makes source available on the host filesystem. The returned
// cleanup func must always be called.
func (e *Engine) Resolve(ctx context.Context, source string) (string, func(), error) {
	if !IsRemote(source) {
		return source, func() {}, nil
	}
	if e.cfg.Fetcher == nil {
		return "", func() {}, fmt.Errorf("remote source %s is not allowed", source)
	}
	return e.cfg.Fetcher.Fetch(ctx, source)
}

func (e *Engine) progress() archive.Progress {
	return e.cfg.Progress
}
