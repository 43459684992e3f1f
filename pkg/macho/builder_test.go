package macho

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/blacktop/go-macho/types"
)

// payloadOff is where builder places section and link-edit data, relative to
// the start of the slice.
const payloadOff = 0x400

// builder assembles small Mach-O images for tests.
type builder struct {
	order  binary.AppendByteOrder
	is64   bool
	cpu    types.CPU
	subcpu types.CPUSubtype
	ftype  types.HeaderFileType

	ncmds   uint32
	cmds    []byte
	payload []byte
}

func newBuilder(order binary.AppendByteOrder, is64 bool, cpu types.CPU) *builder {
	return &builder{order: order, is64: is64, cpu: cpu, ftype: types.MH_EXECUTE}
}

func (b *builder) u32(buf []byte, v uint32) []byte { return b.order.AppendUint32(buf, v) }

func (b *builder) uptr(buf []byte, v uint64) []byte {
	if b.is64 {
		return b.order.AppendUint64(buf, v)
	}
	return b.order.AppendUint32(buf, uint32(v))
}

func name16(s string) []byte {
	var n [16]byte
	copy(n[:], s)
	return n[:]
}

// data appends p to the payload and returns its slice-relative offset.
func (b *builder) data(p []byte) uint32 {
	off := payloadOff + len(b.payload)
	b.payload = append(b.payload, p...)
	return uint32(off)
}

// rawCmd appends a command with an arbitrary cmdsize.
func (b *builder) rawCmd(cmd types.LoadCmd, size uint32, body []byte) {
	b.cmds = b.u32(b.cmds, uint32(cmd))
	b.cmds = b.u32(b.cmds, size)
	b.cmds = append(b.cmds, body...)
	b.ncmds++
}

func (b *builder) cmd(cmd types.LoadCmd, body []byte) {
	for len(body)%4 != 0 {
		body = append(body, 0)
	}
	b.rawCmd(cmd, uint32(loadCmdHdrSize+len(body)), body)
}

type testSection struct {
	seg, name string
	addr      uint64
	data      []byte
	flags     types.SectionFlag
}

func (b *builder) segment(segname string, sects ...testSection) {
	var body []byte
	body = append(body, name16(segname)...)
	body = b.uptr(body, 0) // vmaddr
	body = b.uptr(body, 0) // vmsize
	body = b.uptr(body, 0) // fileoff
	body = b.uptr(body, 0) // filesize
	body = b.u32(body, 7)  // maxprot
	body = b.u32(body, 5)  // initprot
	body = b.u32(body, uint32(len(sects)))
	body = b.u32(body, 0) // flags
	for _, s := range sects {
		off := b.data(s.data)
		body = append(body, name16(s.name)...)
		body = append(body, name16(s.seg)...)
		body = b.uptr(body, s.addr)
		body = b.uptr(body, uint64(len(s.data)))
		body = b.u32(body, off)
		body = b.u32(body, 0) // align
		body = b.u32(body, 0) // reloff
		body = b.u32(body, 0) // nreloc
		body = b.u32(body, uint32(s.flags))
		body = b.u32(body, 0)
		body = b.u32(body, 0)
		if b.is64 {
			body = b.u32(body, 0)
		}
	}
	if b.is64 {
		b.cmd(types.LC_SEGMENT_64, body)
	} else {
		b.cmd(types.LC_SEGMENT, body)
	}
}

type testNlist struct {
	strx  uint32
	value uint64
}

func (b *builder) symtab(syms []testNlist, strtab []byte) {
	var tab []byte
	for _, s := range syms {
		tab = b.u32(tab, s.strx)
		tab = append(tab, 0x0f, 1) // N_SECT|N_EXT, section 1
		tab = b.order.AppendUint16(tab, 0)
		tab = b.uptr(tab, s.value)
	}
	var symoff uint32
	if len(tab) > 0 {
		symoff = b.data(tab)
	}
	stroff := b.data(strtab)

	var body []byte
	body = b.u32(body, symoff)
	body = b.u32(body, uint32(len(syms)))
	body = b.u32(body, stroff)
	body = b.u32(body, uint32(len(strtab)))
	b.cmd(types.LC_SYMTAB, body)
}

func (b *builder) dysymtab(indirect []uint32) {
	var tab []byte
	for _, i := range indirect {
		tab = b.u32(tab, i)
	}
	var fields [18]uint32
	if len(tab) > 0 {
		fields[12] = b.data(tab)
		fields[13] = uint32(len(indirect))
	}
	var body []byte
	for _, f := range fields {
		body = b.u32(body, f)
	}
	b.cmd(types.LC_DYSYMTAB, body)
}

func (b *builder) versionMin(cmd types.LoadCmd, version, sdk uint32) {
	var body []byte
	body = b.u32(body, version)
	body = b.u32(body, sdk)
	b.cmd(cmd, body)
}

func (b *builder) uuid(id [16]byte) {
	b.cmd(types.LC_UUID, id[:])
}

// lcStr appends a command whose body is a string offset followed by fields
// and the NUL terminated string.
func (b *builder) lcStr(cmd types.LoadCmd, fields []uint32, s string) {
	var body []byte
	body = b.u32(body, uint32(loadCmdHdrSize+4+4*len(fields)))
	for _, f := range fields {
		body = b.u32(body, f)
	}
	body = append(body, s...)
	body = append(body, 0)
	b.cmd(cmd, body)
}

func (b *builder) headerSize() int {
	if b.is64 {
		return fileHeaderSize64
	}
	return fileHeaderSize32
}

func (b *builder) bytes() []byte {
	var out []byte
	if b.is64 {
		out = b.u32(out, 0xfeedfacf)
	} else {
		out = b.u32(out, 0xfeedface)
	}
	out = b.u32(out, uint32(b.cpu))
	out = b.u32(out, uint32(b.subcpu))
	out = b.u32(out, uint32(b.ftype))
	out = b.u32(out, b.ncmds)
	out = b.u32(out, uint32(len(b.cmds)))
	out = b.u32(out, uint32(types.NoUndefs|types.DyldLink|types.TwoLevel|types.PIE))
	if b.is64 {
		out = b.u32(out, 0)
	}
	out = append(out, b.cmds...)
	if len(out) > payloadOff {
		panic(fmt.Sprintf("load commands overflow payload: %d bytes", len(out)))
	}
	out = append(out, make([]byte, payloadOff-len(out))...)
	return append(out, b.payload...)
}

// fatSliceAlign is the slice alignment used by fat.
const fatSliceAlign = 0x1000

type fatSlice struct {
	cpu    types.CPU
	subcpu types.CPUSubtype
	data   []byte
}

// fat wraps slices in a big-endian universal header, each slice page aligned.
func fat(slices ...fatSlice) []byte {
	be := binary.BigEndian
	var hdr []byte
	hdr = be.AppendUint32(hdr, uint32(0xcafebabe))
	hdr = be.AppendUint32(hdr, uint32(len(slices)))

	off := fatSliceAlign
	var body []byte
	for _, s := range slices {
		hdr = be.AppendUint32(hdr, uint32(s.cpu))
		hdr = be.AppendUint32(hdr, uint32(s.subcpu))
		hdr = be.AppendUint32(hdr, uint32(off))
		hdr = be.AppendUint32(hdr, uint32(len(s.data)))
		hdr = be.AppendUint32(hdr, 12)

		pad := off - fatSliceAlign - len(body)
		body = append(body, make([]byte, pad)...)
		body = append(body, s.data...)
		off += (len(s.data) + fatSliceAlign - 1) / fatSliceAlign * fatSliceAlign
	}
	hdr = append(hdr, make([]byte, fatSliceAlign-len(hdr))...)
	return append(hdr, body...)
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o755); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
