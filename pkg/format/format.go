// Package format is the format-agnostic envelope around parsed binaries. It
// dispatches a file to the first registered parser whose magic sniff
// succeeds.
package format

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/blacktop/machedit/pkg/object"
)

// ErrUnknownFormat is returned by Detect when no registered format
// recognizes a file.
var ErrUnknownFormat = errors.New("unknown binary format")

// Type tags the container format of a file.
type Type int

const (
	Unknown Type = iota
	MachO
	ELF
	PE
)

// TypeName returns the display name of t.
func TypeName(t Type) string {
	switch t {
	case MachO:
		return "Mach-O"
	case ELF:
		return "ELF"
	case PE:
		return "PE"
	default:
		return "Unknown"
	}
}

func (t Type) String() string { return TypeName(t) }

// Format is a parsed binary file.
type Format interface {
	// File returns the path the format was opened from.
	File() string
	Type() Type
	// Objects returns one BinaryObject per architecture slice.
	Objects() []*object.BinaryObject
	// Parse reads the file and populates Objects. On failure no objects are
	// exposed.
	Parse(ctx context.Context) error
	// WriteBack writes every pending edit into w at its absolute file offset.
	WriteBack(w io.WriterAt) error
}

// Base implements the bookkeeping part of Format. Concrete formats embed it.
type Base struct {
	path    string
	typ     Type
	objects []*object.BinaryObject
}

func NewBase(path string, typ Type) Base {
	return Base{path: path, typ: typ}
}

func (b *Base) File() string                    { return b.path }
func (b *Base) Type() Type                      { return b.typ }
func (b *Base) Objects() []*object.BinaryObject { return b.objects }

// SetObjects replaces the parsed objects in one step.
func (b *Base) SetObjects(objs []*object.BinaryObject) { b.objects = objs }

// WriteBack implements Format.
func (b *Base) WriteBack(w io.WriterAt) error {
	return WriteBack(b.objects, w)
}

// Detector recognizes and constructs one concrete format.
type Detector struct {
	Type   Type
	Detect func(path string) (bool, error)
	New    func(path string) Format
}

var (
	mu        sync.RWMutex
	detectors []Detector
)

// Register adds a format to the detection list. Concrete format packages
// call it from init.
func Register(d Detector) {
	mu.Lock()
	defer mu.Unlock()
	detectors = append(detectors, d)
}

// Registered returns the registered format types in detection order.
func Registered() []Type {
	mu.RLock()
	defer mu.RUnlock()
	var types []Type
	for _, d := range detectors {
		types = append(types, d.Type)
	}
	return types
}

// Detect returns an unparsed Format for the first registered type that
// recognizes path.
func Detect(path string) (Format, error) {
	mu.RLock()
	defer mu.RUnlock()

	for _, d := range detectors {
		ok, err := d.Detect(path)
		if err != nil {
			return nil, err
		}
		if ok {
			return d.New(path), nil
		}
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

// Open detects and parses path.
func Open(ctx context.Context, path string) (Format, error) {
	f, err := Detect(path)
	if err != nil {
		return nil, err
	}
	if err := f.Parse(ctx); err != nil {
		return nil, fmt.Errorf("failed to parse %s file %s: %w", TypeName(f.Type()), path, err)
	}
	return f, nil
}

// Result is delivered by OpenAsync.
type Result struct {
	Format Format
	Err    error
}

// OpenAsync runs Open on a background goroutine. The returned channel
// receives exactly one Result and is then closed.
func OpenAsync(ctx context.Context, path string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		f, err := Open(ctx, path)
		ch <- Result{Format: f, Err: err}
	}()
	return ch
}
