package object

import (
	"sync"
	"time"
)

// SectionType classifies the byte ranges materialized from a binary.
type SectionType int

const (
	Text SectionType = iota
	SymbolStubs
	CString
	String
	Symbols
	DynSymbols
	FuncStarts
	CodeSig
	VersionMinMacOSX
	VersionMinIPhoneOS
	VersionMinWatchOS
	VersionMinTvOS
)

var sectionTypeStrings = map[SectionType]string{
	Text:               "Text",
	SymbolStubs:        "SymbolStubs",
	CString:            "CString",
	String:             "String",
	Symbols:            "Symbols",
	DynSymbols:         "DynSymbols",
	FuncStarts:         "FuncStarts",
	CodeSig:            "CodeSig",
	VersionMinMacOSX:   "VersionMinMacOSX",
	VersionMinIPhoneOS: "VersionMinIPhoneOS",
	VersionMinWatchOS:  "VersionMinWatchOS",
	VersionMinTvOS:     "VersionMinTvOS",
}

func (t SectionType) String() string {
	if s, ok := sectionTypeStrings[t]; ok {
		return s
	}
	return "Unknown"
}

// IsVersionMin reports whether t is one of the 8-byte version-min sections.
func (t SectionType) IsVersionMin() bool {
	switch t {
	case VersionMinMacOSX, VersionMinIPhoneOS, VersionMinWatchOS, VersionMinTvOS:
		return true
	}
	return false
}

// IsCode reports whether t holds machine code.
func (t SectionType) IsCode() bool {
	return t == Text || t == SymbolStubs
}

// IsMapped reports whether sections of type t carry a virtual address. The
// other types are addressed by their file offset.
func (t SectionType) IsMapped() bool {
	return t == Text || t == SymbolStubs || t == CString
}

// Region is a pending edit inside a section's data, relative to its start.
type Region struct {
	Position int
	Length   int
}

func (r Region) end() int { return r.Position + r.Length }

func (r Region) contains(o Region) bool {
	return r.Position <= o.Position && o.end() <= r.end()
}

// touches is true for overlapping or directly adjacent regions.
func (r Region) touches(o Region) bool {
	return r.Position <= o.end() && o.Position <= r.end()
}

func (r Region) union(o Region) Region {
	start, end := min(r.Position, o.Position), max(r.end(), o.end())
	return Region{Position: start, Length: end - start}
}

// Section is a named, typed byte range of a BinaryObject.
//
// All methods are safe for concurrent use; writes to one section are
// serialized by its own lock.
type Section struct {
	mu sync.RWMutex

	typ    SectionType
	name   string
	addr   uint64
	size   uint64
	offset int64

	data     []byte
	regions  []Region
	modified time.Time
	disasm   *Disassembly
}

// NewSection creates an empty section. offset is the absolute file offset of
// the section's first byte.
func NewSection(typ SectionType, name string, addr, size uint64, offset int64) *Section {
	return &Section{
		typ:    typ,
		name:   name,
		addr:   addr,
		size:   size,
		offset: offset,
	}
}

func (s *Section) Type() SectionType { return s.typ }
func (s *Section) Name() string      { return s.name }
func (s *Section) Address() uint64   { return s.addr }
func (s *Section) FileOffset() int64 { return s.offset }

func (s *Section) Size() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// SetSize adjusts the declared size. Parsers use this for sections whose
// extent is only known once their contents have been read.
func (s *Section) SetSize(size uint64) {
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
}

// Data returns the section bytes. The slice must not be modified; use
// SetSubData to patch.
func (s *Section) Data() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// SetData replaces the section bytes without recording a modification.
func (s *Section) SetData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	s.disasm = nil
}

// SetSubData overwrites data starting at pos and records the edit. Writes
// with a negative pos or a pos at or past the end of the data are ignored.
// Bytes that would run past the end of the section are dropped.
func (s *Section) SetSubData(data []byte, pos int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pos < 0 || pos >= len(s.data) || len(data) == 0 {
		return
	}
	n := copy(s.data[pos:], data)

	s.addRegion(Region{Position: pos, Length: n})
	s.modified = time.Now()
	s.disasm = nil
}

// addRegion merges r into the region list. Regions wholly covered by r are
// dropped, partially overlapping or adjacent ones are folded into r, and
// regions that enclose r are left alone.
func (s *Section) addRegion(r Region) {
	for {
		merged := false
		kept := s.regions[:0]
		for _, old := range s.regions {
			switch {
			case r.contains(old):
			case old.contains(r):
				kept = append(kept, old)
			case old.touches(r):
				r = r.union(old)
				merged = true
			default:
				kept = append(kept, old)
			}
		}
		s.regions = kept
		if !merged {
			break
		}
	}
	s.regions = append(s.regions, r)
}

// IsModified reports whether the section has pending edits.
func (s *Section) IsModified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.regions) > 0
}

// ModifiedRegions returns a copy of the pending edit list.
func (s *Section) ModifiedRegions() []Region {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Region(nil), s.regions...)
}

// RegionData returns a copy of the bytes currently covered by r.
func (s *Section) RegionData(r Region) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r.Position < 0 || r.end() > len(s.data) {
		return nil
	}
	return append([]byte(nil), s.data[r.Position:r.end()]...)
}

// ClearModified forgets pending edits, e.g. after they have been committed.
func (s *Section) ClearModified() {
	s.mu.Lock()
	s.regions = nil
	s.mu.Unlock()
}

// ModifiedAt returns when the section was last patched.
func (s *Section) ModifiedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// HasAddress reports whether addr falls inside the section. Both ends are
// inclusive.
func (s *Section) HasAddress(addr uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr <= addr && addr <= s.addr+s.size
}

// SetDisassembly caches a decoder result for the current bytes.
func (s *Section) SetDisassembly(d *Disassembly) {
	s.mu.Lock()
	s.disasm = d
	s.mu.Unlock()
}

// Disassembly returns the cached decoder result or nil.
func (s *Section) Disassembly() *Disassembly {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disasm
}
