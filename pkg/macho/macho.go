// Package macho parses Mach-O and universal (fat) files into the object
// model and writes pending section edits back to disk.
package macho

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/internal/magic"
	"github.com/blacktop/machedit/pkg/format"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/blacktop/machedit/pkg/reader"
)

var (
	// ErrNotMachO is returned when a file does not start with a Mach-O magic.
	ErrNotMachO = errors.New("not a Mach-O file")
	// ErrTruncated is returned when a read runs past the end of the file.
	ErrTruncated = errors.New("truncated Mach-O")
	// ErrMalformed is returned for structurally impossible values.
	ErrMalformed = errors.New("malformed Mach-O")
)

const (
	fileHeaderSize32 = 7 * 4
	fileHeaderSize64 = 8 * 4
	fatArchSize      = 5 * 4
	loadCmdHdrSize   = 2 * 4
)

// A FatArch is one slice of a universal file.
type FatArch struct {
	CPU    types.CPU
	SubCPU types.CPUSubtype
	Offset uint32
	Size   uint32
	Align  uint32
}

// File is a parsed Mach-O or universal file.
type File struct {
	format.Base

	fat     bool
	arches  []FatArch
	headers []types.FileHeader
}

func init() {
	format.Register(format.Detector{
		Type:   format.MachO,
		Detect: Detect,
		New: func(path string) format.Format {
			return New(path)
		},
	})
}

// New returns an unparsed File for path.
func New(path string) *File {
	return &File{Base: format.NewBase(path, format.MachO)}
}

// Open parses the Mach-O file at path.
func Open(ctx context.Context, path string) (*File, error) {
	f := New(path)
	if err := f.Parse(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// Detect reports whether path starts with one of the Mach-O magics. Only the
// first four bytes are inspected.
func Detect(path string) (bool, error) {
	fd, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer fd.Close()

	m, err := magic.Sniff(fd)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return m.IsMachO(), nil
}

// IsFat reports whether the file was a universal binary.
func (f *File) IsFat() bool { return f.fat }

// FatArches returns the slice table of a universal binary.
func (f *File) FatArches() []FatArch { return f.arches }

// Headers returns the Mach-O header of every parsed slice, in object order.
func (f *File) Headers() []types.FileHeader { return f.headers }

// Save writes the file with all pending edits applied to dst.
func (f *File) Save(dst string) error { return format.Save(f, dst) }

// Commit writes pending edits into the original file.
func (f *File) Commit(backup bool) error { return format.Commit(f, backup) }

// Parse reads every architecture slice of the file. Any failure discards all
// slices parsed so far.
func (f *File) Parse(ctx context.Context) error {
	fd, err := os.Open(f.File())
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.File(), err)
	}
	defer fd.Close()

	info, err := fd.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.File(), err)
	}

	f.SetObjects(nil)
	f.fat, f.arches, f.headers = false, nil, nil

	objs, headers, err := f.parse(ctx, reader.New(fd), info.Size())
	if err != nil {
		f.fat, f.arches = false, nil
		return err
	}
	f.SetObjects(objs)
	f.headers = headers
	return nil
}

func (f *File) parse(ctx context.Context, r *reader.Reader, size int64) ([]*object.BinaryObject, []types.FileHeader, error) {
	m, ok := r.Uint32()
	if !ok {
		return nil, nil, fmt.Errorf("%w: reading magic", ErrTruncated)
	}

	type slice struct{ offset, size int64 }
	var slices []slice

	switch mg := magic.Magic(m); {
	case mg.IsFat():
		f.fat = true
		r.SetByteOrder(binary.BigEndian)
		arches, err := readFatArches(r)
		if err != nil {
			return nil, nil, err
		}
		f.arches = arches
		for _, a := range arches {
			slices = append(slices, slice{int64(a.Offset), int64(a.Size)})
		}
	case mg.IsMachO():
		slices = append(slices, slice{0, size})
	default:
		return nil, nil, fmt.Errorf("%w: bad magic %#08x", ErrNotMachO, m)
	}

	var (
		objs    []*object.BinaryObject
		headers []types.FileHeader
	)
	for _, s := range slices {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		p := &parser{r: r, base: s.offset, size: max(min(s.size, size-s.offset), 0)}
		obj, hdr, err := p.parseHeader(ctx)
		if err != nil {
			if f.fat {
				return nil, nil, fmt.Errorf("failed to parse slice at %#x: %w", s.offset, err)
			}
			return nil, nil, err
		}
		objs = append(objs, obj)
		headers = append(headers, hdr)
	}
	return objs, headers, nil
}

func readFatArches(r *reader.Reader) ([]FatArch, error) {
	n, ok := r.Uint32()
	if !ok {
		return nil, fmt.Errorf("%w: reading fat arch count", ErrTruncated)
	}
	var arches []FatArch
	for i := uint32(0); i < n; i++ {
		var fields [5]uint32
		for j := range fields {
			v, ok := r.Uint32()
			if !ok {
				return nil, fmt.Errorf("%w: reading fat arch %d", ErrTruncated, i)
			}
			fields[j] = v
		}
		arches = append(arches, FatArch{
			CPU:    types.CPU(fields[0]),
			SubCPU: types.CPUSubtype(fields[1]),
			Offset: fields[2],
			Size:   fields[3],
			Align:  fields[4],
		})
	}
	log.WithField("count", len(arches)).Debug("Parsed universal header")
	return arches, nil
}
