// Package session loads an engine module and creates archive handlers from
// it.
package session

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
	"go.uber.org/zap"
)

// Session is a loaded engine module and its resolved factory. It is safe for
// concurrent use.
type Session struct {
	path    string
	logger  *zap.Logger
	module  Module
	factory engine.CreateObjectFunc

	mu     sync.RWMutex
	closed bool
}

// Open loads the module at path with loader and resolves its factory. All
// failures are *ModuleLoadError.
func Open(loader Loader, path string, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session")

	module, err := loader.Load(path)
	if err != nil {
		return nil, &ModuleLoadError{Path: path, Err: err}
	}

	factory, err := resolveFactory(module)
	if err != nil {
		_ = module.Close()
		return nil, &ModuleLoadError{Path: path, Symbol: engine.CreateObjectSymbol, Err: err}
	}

	if sym, err := module.Lookup(engine.SetLoggerSymbol); err == nil {
		if setLogger, ok := resolveSetLogger(sym); ok {
			setLogger(zapr.NewLogger(logger.Named("engine")))
		} else {
			logger.Warn("ignoring engine logger hook with unexpected type",
				zap.String("module_path", path),
				zap.String("type", fmt.Sprintf("%T", sym)),
			)
		}
	}

	logger.Debug("loaded engine module", zap.String("module_path", path))

	return &Session{
		path:    path,
		logger:  logger,
		module:  module,
		factory: factory,
	}, nil
}

func resolveFactory(module Module) (engine.CreateObjectFunc, error) {
	sym, err := module.Lookup(engine.CreateObjectSymbol)
	if err != nil {
		return nil, err
	}

	switch fn := sym.(type) {
	case func(clsid, iid capability.GUID) (capability.Unknown, error):
		return fn, nil
	case engine.CreateObjectFunc:
		return fn, nil
	case *func(clsid, iid capability.GUID) (capability.Unknown, error):
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	case *engine.CreateObjectFunc:
		if fn != nil && *fn != nil {
			return *fn, nil
		}
	default:
		return nil, fmt.Errorf("unexpected type %T", sym)
	}
	return nil, fmt.Errorf("symbol is nil")
}

func resolveSetLogger(sym any) (func(logr.Logger), bool) {
	switch fn := sym.(type) {
	case func(logr.Logger):
		return fn, fn != nil
	case *func(logr.Logger):
		if fn != nil && *fn != nil {
			return *fn, true
		}
	}
	return nil, false
}

// Path returns the path the module was loaded from.
func (s *Session) Path() string {
	return s.path
}

// CreateObject asks the engine for class clsid viewed through iid. The
// caller owns one reference on the result. Failures are *CreationError and
// leave the session usable.
func (s *Session) CreateObject(clsid, iid capability.GUID) (obj capability.Unknown, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, &CreationError{Class: clsid, Interface: iid, Err: ErrClosed}
	}

	defer func() {
		if r := recover(); r != nil {
			obj = nil
			err = &CreationError{Class: clsid, Interface: iid, Err: fmt.Errorf("%w: engine panicked: %v", capability.ErrFail, r)}
		}
	}()

	obj, err = s.factory(clsid, iid)
	if err != nil {
		return nil, &CreationError{Class: clsid, Interface: iid, Err: err}
	}
	if obj == nil {
		return nil, &CreationError{Class: clsid, Interface: iid, Err: fmt.Errorf("%w: engine returned no object", capability.ErrFail)}
	}

	s.logger.Debug("created engine object",
		zap.Stringer("class", clsid),
		zap.Stringer("interface", iid),
	)

	return obj, nil
}

func createTyped[T any](s *Session, clsid, iid capability.GUID) (T, error) {
	var zero T

	obj, err := s.CreateObject(clsid, iid)
	if err != nil {
		return zero, err
	}

	typed, ok := obj.(T)
	if !ok {
		obj.Release()
		return zero, &CreationError{Class: clsid, Interface: iid, Err: fmt.Errorf("%w: got %T", capability.ErrNoInterface, obj)}
	}
	return typed, nil
}

// NewReader creates the archive reader for format.
func (s *Session) NewReader(format formats.Format) (engine.InArchive, error) {
	return createTyped[engine.InArchive](s, formats.Lookup(format).ReaderClass, engine.IIDInArchive)
}

// NewWriter creates the archive writer for format.
func (s *Session) NewWriter(format formats.Format) (engine.OutArchive, error) {
	return createTyped[engine.OutArchive](s, formats.Lookup(format).WriterClass, engine.IIDOutArchive)
}

// Close unloads the module. Objects already created stay valid for as long
// as the module's code does.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.module.Close(); err != nil {
		return fmt.Errorf("failed to unload engine module %s: %w", s.path, err)
	}
	return nil
}
