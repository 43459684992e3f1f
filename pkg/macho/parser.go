package macho

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/apex/log"
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/internal/magic"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/blacktop/machedit/pkg/reader"
)

// parser walks one architecture slice. Reads are sticky: after the first
// failure every read returns zero and err holds the cause.
type parser struct {
	r    *reader.Reader
	base int64 // absolute offset of the slice
	size int64 // bytes in the slice, clipped to the file

	obj  *object.BinaryObject
	is64 bool
	err  error

	symoff, nsyms           uint32
	indirectoff, nindirects uint32
}

func (p *parser) fail(format string, args ...any) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: "+format, append([]any{ErrTruncated}, args...)...)
	}
}

func errMalformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
}

// avail fails the parse unless n more bytes lie inside the slice.
func (p *parser) avail(n int64, what string) bool {
	if p.err != nil {
		return false
	}
	if pos := p.r.Pos(); n < 0 || pos+n > p.end() {
		p.fail("reading %d bytes of %s at %#x", n, what, pos)
		return false
	}
	return true
}

func (p *parser) u16(what string) uint16 {
	if !p.avail(2, what) {
		return 0
	}
	v, ok := p.r.Uint16()
	if !ok {
		p.fail("reading %s at %#x", what, p.r.Pos())
	}
	return v
}

func (p *parser) u32(what string) uint32 {
	if !p.avail(4, what) {
		return 0
	}
	v, ok := p.r.Uint32()
	if !ok {
		p.fail("reading %s at %#x", what, p.r.Pos())
	}
	return v
}

func (p *parser) u64(what string) uint64 {
	if !p.avail(8, what) {
		return 0
	}
	v, ok := p.r.Uint64()
	if !ok {
		p.fail("reading %s at %#x", what, p.r.Pos())
	}
	return v
}

// uptr reads a 32- or 64-bit field depending on the slice's width.
func (p *parser) uptr(what string) uint64 {
	if p.is64 {
		return p.u64(what)
	}
	return uint64(p.u32(what))
}

func (p *parser) u8(what string) uint8 {
	if !p.avail(1, what) {
		return 0
	}
	v, ok := p.r.UChar()
	if !ok {
		p.fail("reading %s at %#x", what, p.r.Pos())
	}
	return v
}

// bytes reads exactly n bytes.
func (p *parser) bytes(n int64, what string) []byte {
	if !p.avail(n, what) {
		return nil
	}
	return p.r.Read(int(n))
}

func (p *parser) name16(what string) string {
	return cstring(p.bytes(16, what))
}

func (p *parser) seek(off int64, what string) {
	if p.err != nil {
		return
	}
	if off < p.base || off > p.end() || !p.r.SeekTo(off) {
		p.fail("seeking to %s at %#x", what, off)
	}
}

// end is the absolute offset one past the slice.
func (p *parser) end() int64 {
	return p.base + p.size
}

// abs converts a slice-relative file offset into an absolute one.
func (p *parser) abs(off uint32) int64 {
	return p.base + int64(off)
}

func (p *parser) parseHeader(ctx context.Context) (*object.BinaryObject, types.FileHeader, error) {
	var hdr types.FileHeader

	p.seek(p.base, "slice header")
	p.r.SetByteOrder(binary.LittleEndian)
	m := magic.Magic(p.u32("magic"))
	if p.err != nil {
		return nil, hdr, p.err
	}
	if !m.IsMachO() || m.IsFat() {
		return nil, hdr, fmt.Errorf("%w: bad slice magic %#08x at %#x", ErrNotMachO, uint32(m), p.base)
	}
	p.is64 = m.Is64()
	endian := object.LittleEndian
	if m.IsSwapped() {
		endian = object.BigEndian
	}
	p.r.SetByteOrder(endian.ByteOrder())

	hdr.Magic = types.Magic32
	if p.is64 {
		hdr.Magic = types.Magic64
	}
	hdr.CPU = types.CPU(p.u32("cputype"))
	hdr.SubCPU = types.CPUSubtype(p.u32("cpusubtype"))
	hdr.Type = types.HeaderFileType(p.u32("filetype"))
	hdr.NCommands = p.u32("ncmds")
	hdr.SizeCommands = p.u32("sizeofcmds")
	hdr.Flags = types.HeaderFlag(p.u32("flags"))
	if p.is64 {
		hdr.Reserved = p.u32("reserved")
	}
	if p.err != nil {
		return nil, hdr, p.err
	}

	p.obj = object.New()
	p.obj.SetEndianness(endian)
	if p.is64 {
		p.obj.SetBits(64)
	} else {
		p.obj.SetBits(32)
	}
	p.obj.SetCPUType(cpuType(hdr.CPU, hdr.SubCPU))
	p.obj.SetCPUSubtype(uint32(hdr.SubCPU & cpuSubtypeMask))
	p.obj.SetFileType(fileType(hdr.Type))
	p.obj.RawCPU = uint32(hdr.CPU)
	p.obj.RawSubCPU = uint32(hdr.SubCPU)
	p.obj.Flags = uint32(hdr.Flags)

	log.WithFields(log.Fields{
		"offset": fmt.Sprintf("%#x", p.base),
		"cpu":    p.obj.CPUType(),
		"type":   hdr.Type,
		"ncmds":  hdr.NCommands,
	}).Debug("Parsing Mach-O header")

	if err := p.loadCommands(ctx, hdr.NCommands); err != nil {
		return nil, hdr, err
	}
	for _, pass := range []func(){p.readSymbols, p.readIndirectSymbols, p.fillSections, p.resolveSymbols, p.resolveIndirectSymbols} {
		if err := ctx.Err(); err != nil {
			return nil, hdr, err
		}
		pass()
		if p.err != nil {
			return nil, hdr, p.err
		}
	}
	return p.obj, hdr, nil
}

// loadCmd is the 8 byte prefix shared by every load command.
type loadCmd struct {
	cmd   types.LoadCmd
	size  uint32
	start int64
}

// loadCommands runs exactly ncmds iterations. Whatever a handler consumes,
// the cursor is left at the start of the next command.
func (p *parser) loadCommands(ctx context.Context, ncmds uint32) error {
	for i := uint32(0); i < ncmds; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lc := loadCmd{start: p.r.Pos()}
		lc.cmd = types.LoadCmd(p.u32("cmd"))
		lc.size = p.u32("cmdsize")
		if p.err != nil {
			return fmt.Errorf("load command %d: %w", i, p.err)
		}
		if lc.size < loadCmdHdrSize {
			return fmt.Errorf("%w: load command %d (%s) has cmdsize %d", ErrMalformed, i, lc.cmd, lc.size)
		}
		end := lc.start + int64(lc.size)
		if end > p.end() {
			return fmt.Errorf("%w: load command %d (%s) runs past end of slice", ErrTruncated, i, lc.cmd)
		}

		if handle, ok := loadCmdHandlers[lc.cmd]; ok {
			if handle != nil {
				handle(p, lc)
			}
		} else {
			log.WithFields(log.Fields{
				"cmd":    lc.cmd.String(),
				"size":   lc.size,
				"offset": fmt.Sprintf("%#x", lc.start),
			}).Debug("Skipping unknown load command")
		}
		if p.err != nil {
			return fmt.Errorf("load command %d (%s): %w", i, lc.cmd, p.err)
		}

		p.seek(end, "next load command")
		if p.err != nil {
			return p.err
		}
	}
	return nil
}
