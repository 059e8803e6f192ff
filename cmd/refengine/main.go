// Command refengine builds the reference engine as a loadable module:
//
//	go build -buildmode=plugin -o refengine.so ./cmd/refengine
//	archivekit --loader plugin --engine ./refengine.so list backup.zip
package main

import (
	"github.com/go-logr/logr"
	"github.com/infracollect/archivekit/internal/refengine"
	"github.com/infracollect/archivekit/pkg/capability"
)

func CreateObject(clsid, iid capability.GUID) (capability.Unknown, error) {
	return refengine.CreateObject(clsid, iid)
}

func SetLogger(l logr.Logger) {
	refengine.SetLogger(l)
}

func main() {}
