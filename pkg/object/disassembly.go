package object

import (
	"fmt"
	"strings"
)

// Instruction is a single decoded instruction as produced by a decoder.
type Instruction struct {
	Address  uint64
	Size     int
	Bytes    []byte
	Mnemonic string
	Operands string
}

func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Mnemonic
	}
	return fmt.Sprintf("%s\t%s", i.Mnemonic, i.Operands)
}

// Disassembly is the decoded form of one section's bytes.
type Disassembly struct {
	Instructions []Instruction
}

// At returns the instruction starting at addr.
func (d *Disassembly) At(addr uint64) (Instruction, bool) {
	for _, i := range d.Instructions {
		if i.Address == addr {
			return i, true
		}
	}
	return Instruction{}, false
}

func (d *Disassembly) String() string {
	var sb strings.Builder
	for _, i := range d.Instructions {
		fmt.Fprintf(&sb, "%#08x:  % x\t%s\n", i.Address, i.Bytes, i)
	}
	return sb.String()
}
