package disass

import (
	"fmt"
	"slices"
	"strings"

	"github.com/blacktop/machedit/pkg/object"
	"golang.org/x/arch/x86/x86asm"
)

type x86Decoder struct {
	mode   int
	syntax Syntax
	sym    SymbolLookup
}

func (d *x86Decoder) lookup() x86asm.SymLookup {
	if d.sym == nil {
		return nil
	}
	return x86asm.SymLookup(d.sym)
}

// Decode never fails; bytes that do not decode, including a prefix with no
// opcode after it, are emitted one at a time as .byte pseudo instructions.
func (d *x86Decoder) Decode(data []byte, addr uint64) ([]object.Instruction, error) {
	var out []object.Instruction

	for off := 0; off < len(data); {
		pc := addr + uint64(off)
		inst, err := x86asm.Decode(data[off:], d.mode)
		if err != nil || inst.Len == 0 || inst.Op == 0 {
			out = append(out, object.Instruction{
				Address:  pc,
				Size:     1,
				Bytes:    slices.Clone(data[off : off+1]),
				Mnemonic: ".byte",
				Operands: fmt.Sprintf("%#02x", data[off]),
			})
			off++
			continue
		}

		var text string
		switch d.syntax {
		case Intel:
			text = x86asm.IntelSyntax(inst, pc, d.lookup())
		case Go:
			text = x86asm.GoSyntax(inst, pc, d.lookup())
		default:
			text = x86asm.GNUSyntax(inst, pc, d.lookup())
		}
		mnemonic, operands, _ := strings.Cut(text, " ")

		out = append(out, object.Instruction{
			Address:  pc,
			Size:     inst.Len,
			Bytes:    slices.Clone(data[off : off+inst.Len]),
			Mnemonic: mnemonic,
			Operands: strings.TrimSpace(operands),
		})
		off += inst.Len
	}

	return out, nil
}
