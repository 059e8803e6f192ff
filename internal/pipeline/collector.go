package pipeline

import "context"

// Collector is a long-lived resource shared by the steps that reference it,
// such as a loaded engine session.
type Collector interface {
	Named
	Closer
	Start(context.Context) error
}
