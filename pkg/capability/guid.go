package capability

import "github.com/google/uuid"

// GUID identifies a capability interface or an engine class.
type GUID = uuid.UUID

// IIDUnknown is the canonical base identity every object answers to.
var IIDUnknown = MustGUID("00000000-0000-0000-C000-000000000046")

// MustGUID parses s and panics if it is not a valid identity. It is meant for
// package-level identity tables.
func MustGUID(s string) GUID {
	return uuid.MustParse(s)
}
