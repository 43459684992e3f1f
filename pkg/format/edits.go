package format

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/machedit/pkg/object"
)

// Edits exports every pending edit as a map from absolute file offset to the
// patched bytes.
func Edits(objs []*object.BinaryObject) map[int64][]byte {
	edits := make(map[int64][]byte)
	for _, o := range objs {
		for _, s := range o.Sections() {
			for _, r := range s.ModifiedRegions() {
				edits[s.FileOffset()+int64(r.Position)] = s.RegionData(r)
			}
		}
	}
	return edits
}

// ApplyEdits replays edits produced by Edits. Every edit must start inside a
// materialized section; the others are reported in the returned error after
// the rest have been applied.
func ApplyEdits(objs []*object.BinaryObject, edits map[int64][]byte) error {
	var errs []error
	for off, data := range edits {
		s := sectionAtOffset(objs, off)
		if s == nil {
			errs = append(errs, fmt.Errorf("no section contains file offset %#x", off))
			continue
		}
		s.SetSubData(data, int(off-s.FileOffset()))
	}
	return errors.Join(errs...)
}

func sectionAtOffset(objs []*object.BinaryObject, off int64) *object.Section {
	for _, o := range objs {
		for _, s := range o.Sections() {
			start := s.FileOffset()
			if off >= start && off < start+int64(len(s.Data())) {
				return s
			}
		}
	}
	return nil
}

// WriteBack overwrites the bytes covered by every modified region at
// section.FileOffset()+region.Position. The container is never resized.
func WriteBack(objs []*object.BinaryObject, w io.WriterAt) error {
	for _, o := range objs {
		for _, s := range o.Sections() {
			for _, r := range s.ModifiedRegions() {
				off := s.FileOffset() + int64(r.Position)
				if _, err := w.WriteAt(s.RegionData(r), off); err != nil {
					return fmt.Errorf("failed to write %d bytes of section %s at %#x: %w", r.Length, s.Name(), off, err)
				}
			}
		}
	}
	return nil
}

// Save copies the original file of f to dst and writes the pending edits
// into the copy. The original is left untouched.
func Save(f Format, dst string) error {
	if err := copyFile(f.File(), dst); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dst, err)
	}
	if err := f.WriteBack(out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Commit writes pending edits into the original file. When backup is set the
// original is first copied to <path>.bak. Committed edits are cleared.
func Commit(f Format, backup bool) error {
	if backup {
		if err := copyFile(f.File(), f.File()+".bak"); err != nil {
			return fmt.Errorf("failed to back up %s: %w", f.File(), err)
		}
	}
	out, err := os.OpenFile(f.File(), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", f.File(), err)
	}
	if err := f.WriteBack(out); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	for _, o := range f.Objects() {
		for _, s := range o.Sections() {
			s.ClearModified()
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
