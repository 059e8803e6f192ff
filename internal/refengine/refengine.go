// Package refengine is an in-process engine implementing the engine ABI for
// zip, tar, gzip and bzip2 (read only). It is served by the static loader as
// "builtin" and built as a standalone module by cmd/refengine.
package refengine

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/engine"
	"github.com/infracollect/archivekit/pkg/formats"
)

// ModuleName is the name the reference engine is registered under.
const ModuleName = "builtin"

var (
	logMu  sync.RWMutex
	logger = logr.Discard()
)

// SetLogger replaces the engine's logger.
func SetLogger(l logr.Logger) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = l.WithName("refengine")
}

func log() logr.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	return logger
}

type class struct {
	newReader func() inFormat
	newWriter func() outFormat
}

var classes = map[capability.GUID]class{
	formats.Lookup(formats.Zip).ReaderClass:   {newReader: newZipIn, newWriter: newZipOut},
	formats.Lookup(formats.Tar).ReaderClass:   {newReader: newTarIn, newWriter: newTarOut},
	formats.Lookup(formats.GZip).ReaderClass:  {newReader: newGzipIn, newWriter: newGzipOut},
	formats.Lookup(formats.BZip2).ReaderClass: {newReader: newBzip2In},
}

// Formats returns the formats the engine can read and write.
func Formats() (readable, writable []formats.Format) {
	for _, d := range formats.All() {
		c, ok := classes[d.ReaderClass]
		if !ok {
			continue
		}
		if c.newReader != nil {
			readable = append(readable, d.Format)
		}
		if c.newWriter != nil {
			writable = append(writable, d.Format)
		}
	}
	return readable, writable
}

// CreateObject instantiates class clsid viewed through iid. The caller owns
// one reference on the result.
func CreateObject(clsid, iid capability.GUID) (capability.Unknown, error) {
	c, ok := classes[clsid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", capability.ErrClassNotAvailable, clsid)
	}

	var obj capability.Unknown
	switch iid {
	case engine.IIDInArchive:
		if c.newReader == nil {
			return nil, fmt.Errorf("%w: %s cannot be read", capability.ErrClassNotAvailable, clsid)
		}
		obj = newReader(c.newReader())
	case engine.IIDOutArchive:
		if c.newWriter == nil {
			return nil, fmt.Errorf("%w: %s cannot be written", capability.ErrClassNotAvailable, clsid)
		}
		obj = newWriter(c.newWriter())
	default:
		return nil, capability.ErrNoInterface
	}

	return obj.QueryInterface(iid)
}

// Symbols returns the module's exported symbols, for registration with a
// static loader.
func Symbols() map[string]any {
	return map[string]any{
		engine.CreateObjectSymbol: CreateObject,
		engine.SetLoggerSymbol:    SetLogger,
	}
}
