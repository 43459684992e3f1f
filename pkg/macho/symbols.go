package macho

import (
	"github.com/apex/log"
	"github.com/blacktop/machedit/pkg/object"
)

// stubSize is the size of one x86 indirect jump stub (jmp *addr(%rip)).
const stubSize = 6

// An Nlist is a Mach-O symbol table entry, widened to 64 bits.
type Nlist struct {
	Name  uint32
	Type  uint8
	Sect  uint8
	Desc  uint16
	Value uint64
}

func (p *parser) readNlist() Nlist {
	var n Nlist
	n.Name = p.u32("n_strx")
	n.Type = p.u8("n_type")
	n.Sect = p.u8("n_sect")
	n.Desc = p.u16("n_desc")
	n.Value = p.uptr("n_value")
	return n
}

func (p *parser) readSymbols() {
	if p.nsyms == 0 {
		return
	}
	start := p.abs(p.symoff)
	p.seek(start, "symbol table")
	st := p.obj.SymbolTable()
	for i := uint32(0); i < p.nsyms; i++ {
		n := p.readNlist()
		if p.err != nil {
			return
		}
		st.Add(object.SymbolEntry{Index: n.Name, Value: n.Value})
	}
	size := p.r.Pos() - start
	p.obj.AddSection(object.NewSection(object.Symbols, symbolsSectionName, uint64(start), uint64(size), start))
}

func (p *parser) readIndirectSymbols() {
	if p.nindirects == 0 {
		return
	}
	start := p.abs(p.indirectoff)
	p.seek(start, "indirect symbol table")
	dt := p.obj.DynSymbolTable()
	for i := uint32(0); i < p.nindirects; i++ {
		idx := p.u32("indirect symbol")
		if p.err != nil {
			return
		}
		dt.Add(object.SymbolEntry{Index: idx})
	}
	size := p.r.Pos() - start
	p.obj.AddSection(object.NewSection(object.DynSymbols, dynSymbolsSectionName, uint64(start), uint64(size), start))
}

// fillSections loads the bytes of every materialized section.
func (p *parser) fillSections() {
	for _, s := range p.obj.Sections() {
		p.seek(s.FileOffset(), s.Name())
		data := p.bytes(int64(s.Size()), s.Name())
		if p.err != nil {
			return
		}
		s.SetData(data)
	}
}

func (p *parser) resolveSymbols() {
	strs := p.obj.Section(object.String)
	if strs == nil {
		return
	}
	data := strs.Data()
	syms := p.obj.SymbolTable().Symbols()
	for i := range syms {
		if int(syms[i].Index) >= len(data) {
			continue
		}
		syms[i].Name = cstring(data[syms[i].Index:])
	}
}

// resolveIndirectSymbols names each indirect entry after the symbol it points
// at and gives it the address of its stub.
func (p *parser) resolveIndirectSymbols() {
	stubs := p.obj.Section(object.SymbolStubs)
	syms := p.obj.SymbolTable().Symbols()
	if stubs == nil || len(syms) == 0 {
		return
	}
	dyn := p.obj.DynSymbolTable().Symbols()
	for i := range dyn {
		// local and absolute markers (0x80000000, 0x40000000) fall out here
		if int(dyn[i].Index) >= len(syms) {
			continue
		}
		dyn[i].Name = syms[dyn[i].Index].Name
		dyn[i].Value = stubs.Address() + uint64(i)*stubSize
	}
	log.WithField("count", len(dyn)).Debug("Resolved indirect symbols")
}
