package disass

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strings"

	"github.com/blacktop/arm64-cgo/disassemble"
	"github.com/blacktop/machedit/pkg/object"
)

// Apple AMX coprocessor ops, indexed by the 5 bit op field.
var amxOps = [...]string{
	"amx_ldx", "amx_ldy", "amx_stx", "amx_sty", "amx_ldz", "amx_stz",
	"amx_ldzi", "amx_stzi", "amx_extrx", "amx_extry", "amx_fma64", "amx_fms64",
	"amx_fma32", "amx_fms32", "amx_mac16", "amx_fma16", "amx_fms16", "amx_op17",
	"amx_vecint", "amx_vecfp", "amx_matint", "amx_matfp", "amx_genlut",
}

type arm64Decoder struct{}

// Decode decodes fixed 4 byte instructions. Words the decoder rejects are
// emitted as .long, except a few Apple specific encodings that are named.
// A trailing partial word is emitted as .byte values.
func (arm64Decoder) Decode(data []byte, addr uint64) ([]object.Instruction, error) {
	var results [1024]byte
	var out []object.Instruction

	off := 0
	for ; off+4 <= len(data); off += 4 {
		pc := addr + uint64(off)
		word := binary.LittleEndian.Uint32(data[off:])
		inst := object.Instruction{
			Address: pc,
			Size:    4,
			Bytes:   slices.Clone(data[off : off+4]),
		}

		decoded, err := disassemble.Decompose(pc, word, &results)
		if err != nil {
			inst.Mnemonic, inst.Operands = appleWord(word)
		} else {
			mnemonic, operands, ok := strings.Cut(decoded.String(), "\t")
			if !ok {
				mnemonic, operands, _ = strings.Cut(mnemonic, " ")
			}
			inst.Mnemonic = strings.TrimSpace(mnemonic)
			inst.Operands = strings.TrimSpace(operands)
		}
		out = append(out, inst)
	}

	for ; off < len(data); off++ {
		out = append(out, object.Instruction{
			Address:  addr + uint64(off),
			Size:     1,
			Bytes:    slices.Clone(data[off : off+1]),
			Mnemonic: ".byte",
			Operands: fmt.Sprintf("%#02x", data[off]),
		})
	}

	return out, nil
}

func appleWord(word uint32) (string, string) {
	switch {
	case word == 0x00201420:
		return "genter", ""
	case word == 0x00201400:
		return "gexit", ""
	case word == 0xe7ffdefe, word == 0xe7ffdeff:
		return "trap", ""
	case word&0xfffffc00 == 0x00201000:
		op := (word >> 5) & 0x1f
		switch {
		case op == 17 && word&0x1f == 0:
			return "amxset", ""
		case op == 17:
			return "amxclr", ""
		case int(op) < len(amxOps):
			return amxOps[op], disassemble.Register((word & 0x1f) + 34).String()
		}
	}
	return ".long", fmt.Sprintf("%#x", word)
}
