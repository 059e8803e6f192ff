// Package capability implements the reference-counted object model shared by
// the host and a loaded compression engine.
//
// Every object that crosses the engine boundary implements Unknown: it can be
// asked for a capability by 128-bit identity, and it is kept alive by an atomic
// reference count. Go interfaces stand in for the capability vtables; the
// identity lookup is a dispatch table declared when the object is initialized.
//
// An object embeds Object and declares its capabilities in Init. A freshly
// constructed object holds no references. Whoever keeps it calls AddRef, and
// every AddRef is paired with exactly one Release:
//
//	type counter struct {
//		capability.Object
//		n int
//	}
//
//	c := &counter{}
//	c.Init(c, nil, iidCounter)
//	c.AddRef()
//	defer c.Release()
//
// QueryInterface acquires the reference it returns, so its result must be
// released as well.
package capability
