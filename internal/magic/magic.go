package magic

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/blacktop/go-macho/types"
)

// Magic is the first word of a file read little-endian. The canonical values
// come from go-macho; the rest are the byte orders they show up in on disk.
type Magic uint32

const (
	Magic32              = Magic(types.Magic32)
	Magic64              = Magic(types.Magic64)
	Magic32Swapped Magic = 0xcefaedfe
	Magic64Swapped Magic = 0xcffaedfe
	// nibble-reversed forms of the single-arch magics
	Magic32Reversed Magic = 0xecafdeef
	Magic64Reversed Magic = 0xfcafdeef
	MagicFatBE            = Magic(types.MagicFat)
	MagicFatLE      Magic = 0xbebafeca
)

func (m Magic) String() string {
	switch m {
	case Magic32:
		return "MH_MAGIC"
	case Magic64:
		return "MH_MAGIC_64"
	case Magic32Swapped, Magic32Reversed:
		return "MH_CIGAM"
	case Magic64Swapped, Magic64Reversed:
		return "MH_CIGAM_64"
	case MagicFatBE:
		return "FAT_MAGIC"
	case MagicFatLE:
		return "FAT_CIGAM"
	default:
		return fmt.Sprintf("%#08x", uint32(m))
	}
}

// IsMachO reports whether m is one of the Mach-O magics.
func (m Magic) IsMachO() bool {
	switch m {
	case Magic32, Magic64, Magic32Swapped, Magic64Swapped, Magic32Reversed, Magic64Reversed, MagicFatBE, MagicFatLE:
		return true
	}
	return false
}

func (m Magic) IsFat() bool { return m == MagicFatBE || m == MagicFatLE }

func (m Magic) Is64() bool {
	return m == Magic64 || m == Magic64Swapped || m == Magic64Reversed
}

// IsSwapped reports whether the header that follows m is big-endian.
func (m Magic) IsSwapped() bool {
	switch m {
	case Magic32Swapped, Magic64Swapped, Magic32Reversed, Magic64Reversed:
		return true
	}
	return false
}

// Sniff reads the first four bytes of r as a little-endian magic.
func Sniff(r io.ReaderAt) (Magic, error) {
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0); err != nil {
		return 0, fmt.Errorf("failed to read magic: %w", err)
	}
	return Magic(binary.LittleEndian.Uint32(magic[:])), nil
}

func IsMachO(filePath string) (bool, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer f.Close()

	m, err := Sniff(f)
	if err != nil {
		return false, err
	}
	if !m.IsMachO() {
		return false, fmt.Errorf("not a macho file")
	}
	return true, nil
}
