// Package engine declares the binary boundary between the host and a loaded
// compression engine: the capability interfaces, their identities, property
// ids and the factory symbol an engine module exports.
//
// An engine module exports
//
//	func CreateObject(clsid, iid capability.GUID) (capability.Unknown, error)
//
// under CreateObjectSymbol, and optionally
//
//	func SetLogger(logr.Logger)
//
// under SetLoggerSymbol.
//
// Streams follow the engine convention rather than io's: a Read that returns
// 0 bytes and a nil error is end of stream, and both reads and writes may be
// partial. NewReader and NewWriter adapt them to io.Reader and io.Writer.
package engine
