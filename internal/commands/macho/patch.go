package macho

import (
	"errors"
	"fmt"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/pkg/object"
	semver "github.com/hashicorp/go-version"
)

var (
	// ErrNoSection is returned when a patch target is not covered by any
	// materialized section.
	ErrNoSection = errors.New("no section covers patch target")
	// ErrPatchOverflow is returned when a patch would run past the end of its
	// section. Sections are never resized.
	ErrPatchOverflow = errors.New("patch runs past end of section")
	// ErrNoVersionMin is returned by PatchVersionMin for slices without a
	// version-min load command.
	ErrNoVersionMin = errors.New("no version-min load command")
)

// PatchOffset overwrites the bytes at an absolute file offset. The patch must
// fit inside the section that contains off.
func PatchOffset(objs []*object.BinaryObject, off int64, data []byte) (*object.Section, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("no bytes to patch at %#x", off)
	}
	for _, o := range objs {
		for _, s := range o.Sections() {
			start := s.FileOffset()
			end := start + int64(len(s.Data()))
			if off < start || off >= end {
				continue
			}
			if off+int64(len(data)) > end {
				return s, fmt.Errorf("%d bytes at %#x overflow %s (ends at %#x): %w", len(data), off, s.Name(), end, ErrPatchOverflow)
			}
			s.SetSubData(data, int(off-start))
			return s, nil
		}
	}
	return nil, fmt.Errorf("file offset %#x: %w", off, ErrNoSection)
}

// PatchAddress overwrites the bytes at a virtual address of obj.
func PatchAddress(obj *object.BinaryObject, addr uint64, data []byte) (*object.Section, error) {
	off, err := obj.OffsetForAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSection, err)
	}
	return PatchOffset([]*object.BinaryObject{obj}, off, data)
}

// ParseVersion validates a X.Y.Z version string and packs it the way
// version-min and build version commands store it (xxxx.yy.zz).
func ParseVersion(s string) (types.Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %v", s, err)
	}
	if v.Prerelease() != "" || v.Metadata() != "" {
		return 0, fmt.Errorf("invalid version %q: pre-release and build metadata are not supported", s)
	}
	segs := v.Segments()
	if len(segs) > 3 {
		return 0, fmt.Errorf("invalid version %q: expected at most 3 components", s)
	}
	if segs[0] > 0xffff || segs[1] > 0xff || segs[2] > 0xff {
		return 0, fmt.Errorf("invalid version %q: component out of range", s)
	}

	var ver types.Version
	if err := ver.Set(fmt.Sprintf("%d.%d.%d", segs[0], segs[1], segs[2])); err != nil {
		return 0, fmt.Errorf("invalid version %q: %v", s, err)
	}
	return ver, nil
}

// PatchVersionMin rewrites the minimum OS version, and optionally the SDK
// version, of the first version-min command in obj. An empty string leaves
// the corresponding word untouched.
func PatchVersionMin(obj *object.BinaryObject, version, sdk string) (*object.Section, error) {
	var sec *object.Section
	for _, s := range obj.Sections() {
		if s.Type().IsVersionMin() {
			sec = s
			break
		}
	}
	if sec == nil {
		return nil, ErrNoVersionMin
	}

	if version == "" && sdk == "" {
		return nil, fmt.Errorf("no version given")
	}

	type word struct {
		pos int
		ver types.Version
	}
	var words []word
	for i, s := range []string{version, sdk} {
		if s == "" {
			continue
		}
		v, err := ParseVersion(s)
		if err != nil {
			return nil, err
		}
		words = append(words, word{pos: i * 4, ver: v})
	}

	order := obj.Endianness().ByteOrder()
	buf := make([]byte, 4)
	for _, w := range words {
		order.PutUint32(buf, uint32(w.ver))
		sec.SetSubData(buf, w.pos)
	}
	return sec, nil
}
