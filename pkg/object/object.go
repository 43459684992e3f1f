// Package object is the in-memory model of a parsed binary: architecture
// slices, their sections and their symbol tables.
package object

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// CPUType identifies the architecture of a BinaryObject.
type CPUType int

const (
	X86 CPUType = iota
	X86_64
	X86_64H
	ARM
	ARMV6
	ARMV7
	ARMV7S
	ARMV7K
	ARM64
	ARM64E
	ARM64_32
	PPC
	PPC64
)

var cpuTypeStrings = map[CPUType]string{
	X86:      "x86",
	X86_64:   "x86_64",
	X86_64H:  "x86_64h",
	ARM:      "arm",
	ARMV6:    "armv6",
	ARMV7:    "armv7",
	ARMV7S:   "armv7s",
	ARMV7K:   "armv7k",
	ARM64:    "arm64",
	ARM64E:   "arm64e",
	ARM64_32: "arm64_32",
	PPC:      "ppc",
	PPC64:    "ppc64",
}

func (c CPUType) String() string {
	if s, ok := cpuTypeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("CPUType(%d)", int(c))
}

// IsX86 reports whether c belongs to the Intel family.
func (c CPUType) IsX86() bool { return c == X86 || c == X86_64 || c == X86_64H }

// IsARM64 reports whether c is one of the AArch64 variants.
func (c CPUType) IsARM64() bool { return c == ARM64 || c == ARM64E || c == ARM64_32 }

// FileType is the kind of image a BinaryObject came from.
type FileType int

const (
	Object FileType = iota
	Execute
	Core
	Preload
	Dylib
	Dylinker
	Bundle
)

var fileTypeStrings = [...]string{
	Object:   "OBJECT",
	Execute:  "EXECUTE",
	Core:     "CORE",
	Preload:  "PRELOAD",
	Dylib:    "DYLIB",
	Dylinker: "DYLINKER",
	Bundle:   "BUNDLE",
}

func (f FileType) String() string {
	if f >= 0 && int(f) < len(fileTypeStrings) {
		return fileTypeStrings[f]
	}
	return fmt.Sprintf("FileType(%d)", int(f))
}

type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

func (e Endianness) String() string {
	if e == BigEndian {
		return "big"
	}
	return "little"
}

// ByteOrder returns the encoding/binary order for e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Segment is a segment load command as found in the header.
type Segment struct {
	Name    string
	Addr    uint64
	Memsz   uint64
	Offset  uint64
	Filesz  uint64
	Maxprot uint32
	Prot    uint32
	Nsect   uint32
	Flags   uint32
}

// LoadDylib is a dylib load command (load, id, weak, reexport, lazy or upward).
type LoadDylib struct {
	Command        string
	Path           string
	Timestamp      uint32
	CurrentVersion uint32
	CompatVersion  uint32
}

// VersionMin is a decoded version-min load command. Both versions use the
// nibble packed xxxx.yy.zz encoding.
type VersionMin struct {
	Platform SectionType
	Version  uint32
	SDK      uint32
}

// BuildVersion is a decoded build version load command.
type BuildVersion struct {
	Platform uint32
	Minos    uint32
	SDK      uint32
	NumTools uint32
}

// LinkEditData is a load command pointing at a blob in __LINKEDIT.
type LinkEditData struct {
	Command string
	Offset  uint32
	Size    uint32
}

// BinaryObject is one architecture slice of a binary.
type BinaryObject struct {
	cpu        CPUType
	cpuSubtype uint32
	bits       int
	endian     Endianness
	fileType   FileType

	sections []*Section
	symtab   SymbolTable
	dynsym   SymbolTable

	// Raw header values, kept for display.
	RawCPU    uint32
	RawSubCPU uint32
	Flags     uint32

	Segments      []Segment
	Dylibs        []LoadDylib
	Rpaths        []string
	Dylinker      string
	UUID          uuid.UUID
	EntryOffset   uint64
	StackSize     uint64
	SourceVersion uint64
	VersionMins   []VersionMin
	BuildVersions []BuildVersion
	LinkEdit      []LinkEditData
}

// New returns an x86, 32-bit, little-endian executable object.
func New() *BinaryObject {
	return &BinaryObject{
		cpu:      X86,
		bits:     32,
		endian:   LittleEndian,
		fileType: Execute,
	}
}

// NewWith returns an object with explicit header values.
func NewWith(cpu CPUType, bits int, endian Endianness, fileType FileType) *BinaryObject {
	o := &BinaryObject{bits: bits, endian: endian, fileType: fileType}
	o.SetCPUType(cpu)
	return o
}

func (o *BinaryObject) CPUType() CPUType { return o.cpu }

// SetCPUType sets the architecture. Selecting X86_64 also sets the bit width
// to 64.
func (o *BinaryObject) SetCPUType(cpu CPUType) {
	o.cpu = cpu
	if cpu == X86_64 {
		o.bits = 64
	}
}

func (o *BinaryObject) CPUSubtype() uint32         { return o.cpuSubtype }
func (o *BinaryObject) SetCPUSubtype(sub uint32)   { o.cpuSubtype = sub }
func (o *BinaryObject) Bits() int                  { return o.bits }
func (o *BinaryObject) SetBits(bits int)           { o.bits = bits }
func (o *BinaryObject) Endianness() Endianness     { return o.endian }
func (o *BinaryObject) SetEndianness(e Endianness) { o.endian = e }
func (o *BinaryObject) FileType() FileType         { return o.fileType }
func (o *BinaryObject) SetFileType(t FileType)     { o.fileType = t }

// AddSection takes ownership of s.
func (o *BinaryObject) AddSection(s *Section) {
	o.sections = append(o.sections, s)
}

// Sections returns all sections in the order they were added.
func (o *BinaryObject) Sections() []*Section {
	return o.sections
}

// SectionsByType returns every section of type t.
func (o *BinaryObject) SectionsByType(t SectionType) []*Section {
	return o.SectionsByTypes(t)
}

// SectionsByTypes returns every section whose type is one of ts.
func (o *BinaryObject) SectionsByTypes(ts ...SectionType) []*Section {
	var out []*Section
	for _, s := range o.sections {
		for _, t := range ts {
			if s.Type() == t {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Section returns the first section of type t, or nil.
func (o *BinaryObject) Section(t SectionType) *Section {
	for _, s := range o.sections {
		if s.Type() == t {
			return s
		}
	}
	return nil
}

// SectionByName returns the first section called name, or nil.
func (o *BinaryObject) SectionByName(name string) *Section {
	for _, s := range o.sections {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// SymbolTable returns the primary symbol table.
func (o *BinaryObject) SymbolTable() *SymbolTable { return &o.symtab }

// DynSymbolTable returns the indirect symbol table.
func (o *BinaryObject) DynSymbolTable() *SymbolTable { return &o.dynsym }

// SectionAt returns the first mapped section containing addr.
func (o *BinaryObject) SectionAt(addr uint64) *Section {
	for _, s := range o.sections {
		if !s.Type().IsMapped() {
			continue
		}
		if s.HasAddress(addr) {
			return s
		}
	}
	return nil
}

// OffsetForAddress converts a virtual address into an absolute file offset.
func (o *BinaryObject) OffsetForAddress(addr uint64) (int64, error) {
	s := o.SectionAt(addr)
	if s == nil {
		return 0, fmt.Errorf("address %#x is not inside a known section", addr)
	}
	return s.FileOffset() + int64(addr-s.Address()), nil
}

// IsModified reports whether any section carries pending edits.
func (o *BinaryObject) IsModified() bool {
	for _, s := range o.sections {
		if s.IsModified() {
			return true
		}
	}
	return false
}

func (o *BinaryObject) String() string {
	return fmt.Sprintf("%s %d-bit %s-endian %s", o.cpu, o.bits, o.endian, o.fileType)
}
