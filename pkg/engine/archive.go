package engine

import (
	"math"

	"github.com/infracollect/archivekit/pkg/capability"
	"github.com/infracollect/archivekit/pkg/variant"
)

// AskMode tells an extract callback what the engine will do with an item.
type AskMode int32

const (
	AskExtract AskMode = iota
	AskTest
	AskSkip
)

// OperationResult is the per-item outcome reported by the engine.
type OperationResult int32

const (
	ResultOK OperationResult = iota
	ResultUnsupportedMethod
	ResultDataError
	ResultCRCError
	ResultUnavailable
	ResultUnexpectedEnd
	ResultDataAfterEnd
	ResultIsNotArc
	ResultHeadersError
	ResultWrongPassword
)

var resultNames = [...]string{
	ResultOK:                "ok",
	ResultUnsupportedMethod: "unsupported_method",
	ResultDataError:         "data_error",
	ResultCRCError:          "crc_error",
	ResultUnavailable:       "unavailable",
	ResultUnexpectedEnd:     "unexpected_end",
	ResultDataAfterEnd:      "data_after_end",
	ResultIsNotArc:          "is_not_arc",
	ResultHeadersError:      "headers_error",
	ResultWrongPassword:     "wrong_password",
}

func (r OperationResult) String() string {
	if r >= 0 && int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// NoArchiveIndex marks an update item that has no counterpart in an existing
// archive.
const NoArchiveIndex uint32 = math.MaxUint32

// UpdateItemInfo describes how the writer should treat an update item.
type UpdateItemInfo struct {
	NewData        bool
	NewProperties  bool
	IndexInArchive uint32
}

// Progress receives byte totals from the engine.
type Progress interface {
	capability.Unknown
	SetTotal(total uint64) error
	SetCompleted(completed uint64) error
}

// ArchiveOpenCallback is handed to InArchive.Open. Either pointer may be nil
// when the engine does not know the value.
type ArchiveOpenCallback interface {
	capability.Unknown
	OpenSetTotal(files, bytes *uint64) error
	OpenSetCompleted(files, bytes *uint64) error
}

// ArchiveExtractCallback is handed to InArchive.Extract.
type ArchiveExtractCallback interface {
	Progress
	// GetStream returns the output stream for item index, or nil to skip its
	// data. The engine releases the returned stream when done with it.
	GetStream(index uint32, mode AskMode) (SequentialOutStream, error)
	PrepareOperation(mode AskMode) error
	SetOperationResult(result OperationResult) error
}

// ArchiveUpdateCallback is handed to OutArchive.UpdateItems.
type ArchiveUpdateCallback interface {
	Progress
	GetUpdateItemInfo(index uint32) (UpdateItemInfo, error)
	// GetProperty returns an owned variant; the engine resets it.
	GetProperty(index uint32, prop PropID) (variant.Variant, error)
	// GetStream returns the source stream for item index, or nil for items
	// without data. The engine releases the returned stream.
	GetStream(index uint32) (SequentialInStream, error)
	SetOperationResult(result OperationResult) error
}

// CryptoGetTextPassword supplies a password for reading encrypted content.
type CryptoGetTextPassword interface {
	capability.Unknown
	CryptoGetTextPassword() (string, error)
}

// CryptoGetTextPassword2 supplies an optional password for writing.
type CryptoGetTextPassword2 interface {
	capability.Unknown
	CryptoGetTextPassword2() (defined bool, password string, err error)
}

// CompressProgressInfo receives input/output byte counts while compressing.
type CompressProgressInfo interface {
	capability.Unknown
	SetRatioInfo(inSize, outSize *uint64) error
}

// InArchive reads an archive.
type InArchive interface {
	capability.Unknown
	Open(stream InStream, maxCheckStartPosition uint64, callback ArchiveOpenCallback) error
	Close() error
	NumberOfItems() (uint32, error)
	// GetProperty returns an owned variant; the caller resets it. A property
	// the item does not have is reported as an empty variant.
	GetProperty(index uint32, prop PropID) (variant.Variant, error)
	GetArchiveProperty(prop PropID) (variant.Variant, error)
	// Extract processes the items in indices, or every item when indices is
	// nil.
	Extract(indices []uint32, testMode bool, callback ArchiveExtractCallback) error
}

// OutArchive builds an archive.
type OutArchive interface {
	capability.Unknown
	UpdateItems(out SequentialOutStream, numItems uint32, callback ArchiveUpdateCallback) error
}

// Symbols resolved in an engine module.
const (
	CreateObjectSymbol = "CreateObject"
	SetLoggerSymbol    = "SetLogger"
)

// CreateObjectFunc instantiates class clsid viewed through interface iid.
type CreateObjectFunc func(clsid, iid capability.GUID) (capability.Unknown, error)
