package macho

import (
	"bytes"
	"unicode"

	"github.com/blacktop/machedit/pkg/object"
)

// GetStrings collects the printable NUL-terminated strings of every C-string
// section of o, keyed by address.
func GetStrings(o *object.BinaryObject) map[uint64]string {
	strs := make(map[uint64]string)

	for _, sec := range o.SectionsByType(object.CString) {
		dat := sec.Data()
		var pos int
		for pos < len(dat) {
			n := bytes.IndexByte(dat[pos:], 0)
			if n < 0 {
				n = len(dat) - pos
			}
			if s := string(dat[pos : pos+n]); len(s) > 0 && printable(s) {
				strs[sec.Address()+uint64(pos)] = s
			}
			pos += n + 1
		}
	}

	return strs
}

func printable(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
