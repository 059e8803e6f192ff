package engine

import "fmt"

// PropID selects an archive or item property.
type PropID uint32

const (
	PropNoProperty PropID = iota
	PropMainSubfile
	PropHandlerItemIndex
	PropPath
	PropName
	PropExtension
	PropIsDir
	PropSize
	PropPackSize
	PropAttrib
	PropCTime
	PropATime
	PropMTime
	PropSolid
	PropCommented
	PropEncrypted
	PropSplitBefore
	PropSplitAfter
	PropDictionarySize
	PropCRC
	PropType
	PropIsAnti
	PropMethod
	PropHostOS
	PropFileSystem
	PropUser
	PropGroup
	PropBlock
	PropComment
	PropPosition
	PropPrefix
)

// PropPhysicalSize is the size of the archive container itself.
const PropPhysicalSize PropID = 44

var propNames = map[PropID]string{
	PropNoProperty:       "none",
	PropMainSubfile:      "main_subfile",
	PropHandlerItemIndex: "handler_item_index",
	PropPath:             "path",
	PropName:             "name",
	PropExtension:        "extension",
	PropIsDir:            "is_dir",
	PropSize:             "size",
	PropPackSize:         "pack_size",
	PropAttrib:           "attrib",
	PropCTime:            "ctime",
	PropATime:            "atime",
	PropMTime:            "mtime",
	PropSolid:            "solid",
	PropCommented:        "commented",
	PropEncrypted:        "encrypted",
	PropSplitBefore:      "split_before",
	PropSplitAfter:       "split_after",
	PropDictionarySize:   "dictionary_size",
	PropCRC:              "crc",
	PropType:             "type",
	PropIsAnti:           "is_anti",
	PropMethod:           "method",
	PropHostOS:           "host_os",
	PropFileSystem:       "file_system",
	PropUser:             "user",
	PropGroup:            "group",
	PropBlock:            "block",
	PropComment:          "comment",
	PropPosition:         "position",
	PropPrefix:           "prefix",
	PropPhysicalSize:     "physical_size",
}

func (p PropID) String() string {
	if name, ok := propNames[p]; ok {
		return name
	}
	return fmt.Sprintf("prop(%d)", uint32(p))
}
