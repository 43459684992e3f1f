package macho

import (
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/pkg/object"
)

// fileType maps a Mach-O filetype to the object model. MH_FVMLIB has no
// counterpart and, like every unknown value, becomes an object file.
func fileType(t types.HeaderFileType) object.FileType {
	switch t {
	case types.MH_OBJECT:
		return object.Object
	case types.MH_EXECUTE:
		return object.Execute
	case types.MH_CORE:
		return object.Core
	case types.MH_PRELOAD:
		return object.Preload
	case types.MH_DYLIB:
		return object.Dylib
	case types.MH_DYLINKER:
		return object.Dylinker
	case types.MH_BUNDLE:
		return object.Bundle
	default:
		return object.Object
	}
}
