package macho

import (
	"github.com/apex/log"
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/google/uuid"
)

// A loadCmdHandler decodes one load command. The cursor is positioned just
// after cmd and cmdsize; handlers may stop anywhere inside the command.
type loadCmdHandler func(p *parser, lc loadCmd)

// loadCmdHandlers lists every known command. A nil handler marks a command
// that is consumed as opaque bytes.
var loadCmdHandlers = map[types.LoadCmd]loadCmdHandler{
	types.LC_SEGMENT:    (*parser).segment,
	types.LC_SEGMENT_64: (*parser).segment,

	types.LC_DYLD_INFO:      (*parser).dyldInfo,
	types.LC_DYLD_INFO_ONLY: (*parser).dyldInfo,

	types.LC_SYMTAB:   (*parser).symtab,
	types.LC_DYSYMTAB: (*parser).dysymtab,

	types.LC_LOAD_DYLIB:        (*parser).dylib,
	types.LC_ID_DYLIB:          (*parser).dylib,
	types.LC_LOAD_WEAK_DYLIB:   (*parser).dylib,
	types.LC_REEXPORT_DYLIB:    (*parser).dylib,
	types.LC_LAZY_LOAD_DYLIB:   (*parser).dylib,
	types.LC_LOAD_UPWARD_DYLIB: (*parser).dylib,

	types.LC_LOAD_DYLINKER:    (*parser).dylinker,
	types.LC_ID_DYLINKER:      (*parser).dylinker,
	types.LC_DYLD_ENVIRONMENT: (*parser).dylinker,

	types.LC_UUID: (*parser).uuidCmd,

	types.LC_VERSION_MIN_MACOSX:   (*parser).versionMin,
	types.LC_VERSION_MIN_IPHONEOS: (*parser).versionMin,
	types.LC_VERSION_MIN_WATCHOS:  (*parser).versionMin,
	types.LC_VERSION_MIN_TVOS:     (*parser).versionMin,

	types.LC_SOURCE_VERSION: (*parser).sourceVersion,
	types.LC_MAIN:           (*parser).entryPoint,

	types.LC_FUNCTION_STARTS:          (*parser).linkEditData,
	types.LC_CODE_SIGNATURE:           (*parser).linkEditData,
	types.LC_SEGMENT_SPLIT_INFO:       (*parser).linkEditData,
	types.LC_DYLIB_CODE_SIGN_DRS:      (*parser).linkEditData,
	types.LC_LINKER_OPTIMIZATION_HINT: (*parser).linkEditData,
	types.LC_DYLD_EXPORTS_TRIE:        (*parser).linkEditData,
	types.LC_DYLD_CHAINED_FIXUPS:      (*parser).linkEditData,
	types.LC_DATA_IN_CODE:             (*parser).linkEditData,

	types.LC_THREAD:     (*parser).thread,
	types.LC_UNIXTHREAD: (*parser).thread,

	types.LC_RPATH: (*parser).rpath,

	types.LC_BUILD_VERSION: (*parser).buildVersion,

	types.LC_SYMSEG:             nil,
	types.LC_SUB_FRAMEWORK:      nil,
	types.LC_SUB_UMBRELLA:       nil,
	types.LC_SUB_CLIENT:         nil,
	types.LC_SUB_LIBRARY:        nil,
	types.LC_LOADFVMLIB:         nil,
	types.LC_IDFVMLIB:           nil,
	types.LC_IDENT:              nil,
	types.LC_FVMFILE:            nil,
	types.LC_PREPAGE:            nil,
	types.LC_PREBOUND_DYLIB:     nil,
	types.LC_ROUTINES:           nil,
	types.LC_ROUTINES_64:        nil,
	types.LC_TWOLEVEL_HINTS:     nil,
	types.LC_PREBIND_CKSUM:      nil,
	types.LC_ENCRYPTION_INFO:    nil,
	types.LC_ENCRYPTION_INFO_64: nil,
	types.LC_LINKER_OPTION:      nil,
	types.LC_NOTE:               nil,
}

func (p *parser) segment(lc loadCmd) {
	seg := object.Segment{Name: p.name16("segname")}
	seg.Addr = p.uptr("vmaddr")
	seg.Memsz = p.uptr("vmsize")
	seg.Offset = p.uptr("fileoff")
	seg.Filesz = p.uptr("filesize")
	seg.Maxprot = p.u32("maxprot")
	seg.Prot = p.u32("initprot")
	seg.Nsect = p.u32("nsects")
	seg.Flags = p.u32("flags")
	if p.err != nil {
		return
	}
	p.obj.Segments = append(p.obj.Segments, seg)

	for i := uint32(0); i < seg.Nsect; i++ {
		var sh SectionHeader
		sh.Name = p.name16("sectname")
		sh.Seg = p.name16("segname")
		sh.Addr = p.uptr("addr")
		sh.Size = p.uptr("size")
		sh.Offset = p.u32("offset")
		sh.Align = p.u32("align")
		sh.Reloff = p.u32("reloff")
		sh.Nreloc = p.u32("nreloc")
		sh.Flags = types.SectionFlag(p.u32("flags"))
		sh.Reserve1 = p.u32("reserved1")
		sh.Reserve2 = p.u32("reserved2")
		if p.is64 {
			sh.Reserve3 = p.u32("reserved3")
		}
		if p.err != nil {
			return
		}

		k, ok := sh.kind()
		if !ok || sh.Flags.IsZerofill() {
			log.WithFields(log.Fields{
				"segment": sh.Seg,
				"section": sh.Name,
			}).Debug("Ignoring section")
			continue
		}
		p.obj.AddSection(object.NewSection(k.typ, k.name, sh.Addr, sh.Size, p.abs(sh.Offset)))
	}
}

func (p *parser) dyldInfo(lc loadCmd) {
	for _, name := range []string{"rebase", "bind", "weak_bind", "lazy_bind", "export"} {
		off := p.u32(name + "_off")
		size := p.u32(name + "_size")
		if p.err != nil {
			return
		}
		p.obj.LinkEdit = append(p.obj.LinkEdit, object.LinkEditData{
			Command: lc.cmd.String() + " " + name,
			Offset:  off,
			Size:    size,
		})
	}
}

func (p *parser) symtab(lc loadCmd) {
	p.symoff = p.u32("symoff")
	p.nsyms = p.u32("nsyms")
	stroff := p.u32("stroff")
	strsize := p.u32("strsize")
	if p.err != nil {
		return
	}
	off := p.abs(stroff)
	p.obj.AddSection(object.NewSection(object.String, stringsSectionName, uint64(off), uint64(strsize), off))
}

func (p *parser) dysymtab(lc loadCmd) {
	var fields [18]uint32
	for i := range fields {
		fields[i] = p.u32("dysymtab field")
	}
	p.indirectoff = fields[12]
	p.nindirects = fields[13]
}

// lcString reads the trailing string of a command whose string offset is
// relative to the start of the command. An offset outside the command yields
// an empty string.
func (p *parser) lcString(lc loadCmd, nameOffset uint32, what string) string {
	if p.err != nil {
		return ""
	}
	if nameOffset < loadCmdHdrSize || nameOffset > lc.size {
		log.WithFields(log.Fields{
			"cmd":    lc.cmd.String(),
			"offset": nameOffset,
			"size":   lc.size,
		}).Debugf("Ignoring %s outside the load command", what)
		return ""
	}
	p.seek(lc.start+int64(nameOffset), what)
	return cstring(p.bytes(int64(lc.size-nameOffset), what))
}

func (p *parser) dylib(lc loadCmd) {
	nameOffset := p.u32("dylib name offset")
	d := object.LoadDylib{Command: lc.cmd.String()}
	d.Timestamp = p.u32("timestamp")
	d.CurrentVersion = p.u32("current_version")
	d.CompatVersion = p.u32("compatibility_version")
	d.Path = p.lcString(lc, nameOffset, "dylib name")
	if p.err != nil {
		return
	}
	p.obj.Dylibs = append(p.obj.Dylibs, d)
}

func (p *parser) dylinker(lc loadCmd) {
	name := p.lcString(lc, p.u32("dylinker name offset"), "dylinker name")
	if p.err != nil || lc.cmd == types.LC_DYLD_ENVIRONMENT {
		return
	}
	p.obj.Dylinker = name
}

func (p *parser) uuidCmd(lc loadCmd) {
	b := p.bytes(16, "uuid")
	if p.err != nil {
		return
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		p.err = errMalformed("uuid: %v", err)
		return
	}
	p.obj.UUID = id
}

// versionMin exposes the two version words as an 8 byte section so they can
// be patched like any other bytes.
func (p *parser) versionMin(lc loadCmd) {
	target := p.r.Pos()
	version := p.u32("version")
	sdk := p.u32("sdk")
	if p.err != nil {
		return
	}
	k := versionMinSections[lc.cmd]
	p.obj.AddSection(object.NewSection(k.typ, k.name, uint64(target), 8, target))
	p.obj.VersionMins = append(p.obj.VersionMins, object.VersionMin{Platform: k.typ, Version: version, SDK: sdk})
}

func (p *parser) sourceVersion(lc loadCmd) {
	p.obj.SourceVersion = p.u64("source version")
}

func (p *parser) entryPoint(lc loadCmd) {
	p.obj.EntryOffset = p.u64("entryoff")
	p.obj.StackSize = p.u64("stacksize")
}

func (p *parser) linkEditData(lc loadCmd) {
	off := p.u32("dataoff")
	size := p.u32("datasize")
	if p.err != nil {
		return
	}
	switch lc.cmd {
	case types.LC_FUNCTION_STARTS:
		p.obj.AddSection(object.NewSection(object.FuncStarts, funcStartsSectionName, uint64(p.abs(off)), uint64(size), p.abs(off)))
	case types.LC_CODE_SIGNATURE:
		p.obj.AddSection(object.NewSection(object.CodeSig, codeSigSectionName, uint64(p.abs(off)), uint64(size), p.abs(off)))
	}
	p.obj.LinkEdit = append(p.obj.LinkEdit, object.LinkEditData{Command: lc.cmd.String(), Offset: off, Size: size})
}

// thread skips the register state of the first flavor, clamped to cmdsize;
// any further flavors are covered by cmdsize.
func (p *parser) thread(lc loadCmd) {
	p.u32("flavor")
	count := p.u32("count")
	if p.err != nil {
		return
	}
	n := int64(count) * 4
	if remaining := lc.start + int64(lc.size) - p.r.Pos(); n > remaining {
		n = max(remaining, 0)
	}
	p.bytes(n, "thread state")
}

func (p *parser) rpath(lc loadCmd) {
	path := p.lcString(lc, p.u32("rpath offset"), "rpath")
	if p.err != nil {
		return
	}
	p.obj.Rpaths = append(p.obj.Rpaths, path)
}

func (p *parser) buildVersion(lc loadCmd) {
	bv := object.BuildVersion{
		Platform: p.u32("platform"),
		Minos:    p.u32("minos"),
		SDK:      p.u32("sdk"),
		NumTools: p.u32("ntools"),
	}
	if p.err != nil {
		return
	}
	p.obj.BuildVersions = append(p.obj.BuildVersions, bv)
}
