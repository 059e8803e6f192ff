package engine

import "github.com/infracollect/archivekit/pkg/capability"

// Capability interface identities.
var (
	IIDSequentialInStream     = capability.MustGUID("23170F69-40C1-278A-0000-000300010000")
	IIDSequentialOutStream    = capability.MustGUID("23170F69-40C1-278A-0000-000300020000")
	IIDInStream               = capability.MustGUID("23170F69-40C1-278A-0000-000300030000")
	IIDOutStream              = capability.MustGUID("23170F69-40C1-278A-0000-000300040000")
	IIDStreamGetSize          = capability.MustGUID("23170F69-40C1-278A-0000-000300060000")
	IIDProgress               = capability.MustGUID("23170F69-40C1-278A-0000-000000050000")
	IIDCompressProgressInfo   = capability.MustGUID("23170F69-40C1-278A-0000-000400040000")
	IIDCryptoGetTextPassword  = capability.MustGUID("23170F69-40C1-278A-0000-000500100000")
	IIDCryptoGetTextPassword2 = capability.MustGUID("23170F69-40C1-278A-0000-000500110000")
	IIDArchiveOpenCallback    = capability.MustGUID("23170F69-40C1-278A-0000-000600100000")
	IIDArchiveExtractCallback = capability.MustGUID("23170F69-40C1-278A-0000-000600200000")
	IIDInArchive              = capability.MustGUID("23170F69-40C1-278A-0000-000600600000")
	IIDArchiveUpdateCallback  = capability.MustGUID("23170F69-40C1-278A-0000-000600800000")
	IIDOutArchive             = capability.MustGUID("23170F69-40C1-278A-0000-000600A00000")
)
