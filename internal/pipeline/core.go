// Package pipeline runs archive tasks in order and hands their results to a
// sink.
package pipeline

import "context"

type Named interface {
	Name() string
	Kind() string
}

type Closer interface {
	Close(context.Context) error
}

// ISO8601Basic is a timestamp layout without colons, safe for object keys
// and file names.
const ISO8601Basic = "20060102T150405Z"
