package macho

import (
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/pkg/object"
)

// A SectionHeader is a 32- or 64-bit Mach-O section header. Addr and Size are
// widened to 64 bits.
type SectionHeader struct {
	Name     string
	Seg      string
	Addr     uint64
	Size     uint64
	Offset   uint32
	Align    uint32
	Reloff   uint32
	Nreloc   uint32
	Flags    types.SectionFlag
	Reserve1 uint32
	Reserve2 uint32
	Reserve3 uint32
}

type sectionKind struct {
	typ  object.SectionType
	name string
}

// textSections are the __TEXT sections that get materialized; every other
// section is parsed and dropped.
var textSections = map[string]sectionKind{
	"__text":          {object.Text, "Program"},
	"__symbol_stub":   {object.SymbolStubs, "Symbol Stubs"},
	"__stubs":         {object.SymbolStubs, "Symbol Stubs"},
	"__cstring":       {object.CString, "C-Strings"},
	"__objc_methname": {object.CString, "ObjC Method Names"},
}

func (sh SectionHeader) kind() (sectionKind, bool) {
	if sh.Seg != "__TEXT" {
		return sectionKind{}, false
	}
	k, ok := textSections[sh.Name]
	return k, ok
}

// names of the sections synthesized from load commands
const (
	stringsSectionName    = "Strings"
	symbolsSectionName    = "Symbols"
	dynSymbolsSectionName = "Dynamic Symbols"
	funcStartsSectionName = "Function Starts"
	codeSigSectionName    = "Code Signature"
)

var versionMinSections = map[types.LoadCmd]sectionKind{
	types.LC_VERSION_MIN_MACOSX:   {object.VersionMinMacOSX, "Version Min (macOS)"},
	types.LC_VERSION_MIN_IPHONEOS: {object.VersionMinIPhoneOS, "Version Min (iOS)"},
	types.LC_VERSION_MIN_WATCHOS:  {object.VersionMinWatchOS, "Version Min (watchOS)"},
	types.LC_VERSION_MIN_TVOS:     {object.VersionMinTvOS, "Version Min (tvOS)"},
}
