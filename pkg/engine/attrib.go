package engine

import "io/fs"

// Attribute bits carried by PropAttrib. The low 16 bits follow the Windows
// layout; when AttribUnixExtension is set the high 16 bits hold a Unix mode.
const (
	AttribReadOnly      uint32 = 0x01
	AttribHidden        uint32 = 0x02
	AttribDirectory     uint32 = 0x10
	AttribArchive       uint32 = 0x20
	AttribUnixExtension uint32 = 0x8000
)

// AttributesFromMode encodes mode as engine attribute bits.
func AttributesFromMode(mode fs.FileMode) uint32 {
	attrib := AttribUnixExtension | uint32(mode.Perm())<<16
	if mode.IsDir() {
		attrib |= AttribDirectory | uint32(0o040000)<<16
	} else {
		attrib |= AttribArchive | uint32(0o100000)<<16
	}
	if mode.Perm()&0o200 == 0 {
		attrib |= AttribReadOnly
	}
	return attrib
}

// PermFromAttributes returns the Unix permission bits encoded in attrib, if
// any.
func PermFromAttributes(attrib uint32) (fs.FileMode, bool) {
	if attrib&AttribUnixExtension == 0 {
		return 0, false
	}
	return fs.FileMode(attrib>>16) & fs.ModePerm, true
}
