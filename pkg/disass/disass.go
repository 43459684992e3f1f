// Package disass decodes the code sections of a BinaryObject and caches the
// result on each section.
package disass

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apex/log"
	"github.com/blacktop/machedit/pkg/object"
	"golang.org/x/sync/errgroup"
)

// ErrUnsupportedCPU is returned by NewDecoder for architectures without a
// decoder.
var ErrUnsupportedCPU = errors.New("unsupported cpu for disassembly")

// A Decoder turns raw bytes loaded at addr into instructions.
type Decoder interface {
	Decode(data []byte, addr uint64) ([]object.Instruction, error)
}

// Syntax selects the x86 assembly dialect.
type Syntax int

const (
	GNU Syntax = iota
	Intel
	Go
)

func (s Syntax) String() string {
	switch s {
	case Intel:
		return "intel"
	case Go:
		return "go"
	default:
		return "gnu"
	}
}

// ParseSyntax parses "gnu", "intel" or "go".
func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(s) {
	case "", "gnu", "att":
		return GNU, nil
	case "intel":
		return Intel, nil
	case "go", "plan9":
		return Go, nil
	}
	return GNU, fmt.Errorf("unknown syntax %q (expected gnu, intel or go)", s)
}

// SymbolLookup returns the name of the symbol at addr and its base address.
type SymbolLookup func(addr uint64) (string, uint64)

// NewDecoder returns a decoder for cpu. syntax only applies to x86; sym may
// be nil.
func NewDecoder(cpu object.CPUType, syntax Syntax, sym SymbolLookup) (Decoder, error) {
	switch {
	case cpu == object.X86:
		return &x86Decoder{mode: 32, syntax: syntax, sym: sym}, nil
	case cpu == object.X86_64, cpu == object.X86_64H:
		return &x86Decoder{mode: 64, syntax: syntax, sym: sym}, nil
	case cpu.IsARM64():
		return &arm64Decoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCPU, cpu)
	}
}

// Populate decodes every code section of obj and stores the result with
// SetDisassembly. Sections are decoded concurrently, at most workers at a
// time (no limit when workers <= 0).
func Populate(ctx context.Context, obj *object.BinaryObject, dec Decoder, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for _, sec := range obj.Sections() {
		if !sec.Type().IsCode() {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			insts, err := dec.Decode(sec.Data(), sec.Address())
			if err != nil {
				return fmt.Errorf("failed to disassemble section %s: %w", sec.Name(), err)
			}
			sec.SetDisassembly(&object.Disassembly{Instructions: insts})
			log.WithFields(log.Fields{
				"section":      sec.Name(),
				"instructions": len(insts),
			}).Debug("Disassembled section")
			return nil
		})
	}

	return g.Wait()
}

// Render writes a section's cached disassembly, labeling addresses that have
// a symbol.
func Render(sb *strings.Builder, d *object.Disassembly, sym SymbolLookup) {
	for _, i := range d.Instructions {
		if sym != nil {
			if name, base := sym(i.Address); name != "" && base == i.Address {
				fmt.Fprintf(sb, "\n%s:\n", name)
			}
		}
		fmt.Fprintf(sb, "%#08x:  % x\t%s\n", i.Address, i.Bytes, i)
	}
}
