package utils

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/blacktop/machedit/internal/colors"
	"golang.org/x/sync/errgroup"
)

// CREDIT: https://pkg.go.dev/encoding/hex (edited to add vaddr, color and parallel encoding)

// hexChunkSize is the amount of data each Encode worker formats. It must stay
// a multiple of 16 so chunk boundaries fall on line boundaries.
const hexChunkSize = 64 * 1024

var colorFaint = colors.FaintHiBlue().SprintFunc()

var dubzerosMatch = regexp.MustCompile(`\s(00\s)+|\.`)

func colorZeros(dump string) string {
	if len(dump) > 0 && colors.Enabled() {
		dump = dubzerosMatch.ReplaceAllStringFunc(dump, func(s string) string {
			return colorFaint(s)
		})
	}
	return dump
}

func dumpSize(n int) int {
	// Dumper will write 79 bytes per complete 16 byte chunk, and at least
	// 64 bytes for whatever remains.
	return (1 + ((n - 1) / 16)) * 79
}

// HexDump returns a string that contains a hex dump of the given data. The format
// of the hex dump matches the output of `hexdump -C` on the command line.
func HexDump(data []byte, vaddr uint64) string {
	if len(data) == 0 {
		return ""
	}

	var buf strings.Builder
	buf.Grow(dumpSize(len(data)))

	dumper := Dumper(&buf, vaddr)
	dumper.Write(data)
	dumper.Close()
	return colorZeros(buf.String())
}

// Encode produces the same output as HexDump, formatting large inputs in
// parallel chunks. workers <= 0 means no limit.
func Encode(ctx context.Context, data []byte, vaddr uint64, workers int) (string, error) {
	if len(data) <= hexChunkSize {
		return HexDump(data, vaddr), nil
	}

	chunks := make([]string, (len(data)+hexChunkSize-1)/hexChunkSize)

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := i * hexChunkSize
			end := min(start+hexChunkSize, len(data))
			chunks[i] = HexDump(data[start:end], vaddr+uint64(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	return strings.Join(chunks, ""), nil
}

// Dumper returns a WriteCloser that writes a hex dump of all written data to
// w. The format of the dump matches the output of `hexdump -C` on the command
// line.
func Dumper(w io.Writer, vaddr uint64) io.WriteCloser {
	return &dumper{w: w, n: vaddr}
}

type dumper struct {
	w          io.Writer
	rightChars [18]byte
	buf        [27]byte
	used       int    // number of bytes in the current line
	n          uint64 // address of the next byte
	closed     bool
}

func toChar(b byte) byte {
	if b < 32 || b > 126 {
		return '.'
	}
	return b
}

func (h *dumper) Write(data []byte) (n int, err error) {
	if h.closed {
		return 0, errors.New("hexdump: dumper closed")
	}

	// Output lines look like:
	// 00000010  2e 2f 30 31 32 33 34 35  36 37 38 39 3a 3b 3c 3d  |./0123456789:;<=|
	// ^ offset                          ^ extra space              ^ ASCII of line.
	for i := range data {
		if h.used == 0 {
			for j := range 8 {
				h.buf[j] = byte(h.n >> (56 - 8*j))
			}
			hex.Encode(h.buf[8:], h.buf[:8])
			h.buf[24] = ':'
			h.buf[25] = ' '
			h.buf[26] = ' '
			colors.ItalicFaint().Fprint(h.w, string(h.buf[8:25]))
			if _, err = h.w.Write(h.buf[25:]); err != nil {
				return
			}
		}
		hex.Encode(h.buf[:], data[i:i+1])
		h.buf[2] = ' '
		l := 3
		if h.used == 7 {
			// There's an additional space after the 8th byte.
			h.buf[3] = ' '
			l = 4
		} else if h.used == 15 {
			// At the end of the line there's an extra space and
			// the bar for the right column.
			h.buf[3] = ' '
			h.buf[4] = '|'
			l = 5
		}
		if _, err = h.w.Write(h.buf[:l]); err != nil {
			return
		}
		n++
		h.rightChars[h.used] = toChar(data[i])
		h.used++
		h.n++
		if h.used == 16 {
			h.rightChars[16] = '|'
			h.rightChars[17] = '\n'
			if _, err = h.w.Write(h.rightChars[:]); err != nil {
				return
			}
			h.used = 0
		}
	}
	return
}

func (h *dumper) Close() (err error) {
	// See the comments in Write() for the details of this format.
	if h.closed {
		return
	}
	h.closed = true
	if h.used == 0 {
		return
	}
	h.buf[0] = ' '
	h.buf[1] = ' '
	h.buf[2] = ' '
	h.buf[3] = ' '
	h.buf[4] = '|'
	nBytes := h.used
	for h.used < 16 {
		l := 3
		if h.used == 7 {
			l = 4
		} else if h.used == 15 {
			l = 5
		}
		if _, err = h.w.Write(h.buf[:l]); err != nil {
			return
		}
		h.used++
	}
	h.rightChars[nBytes] = '|'
	h.rightChars[nBytes+1] = '\n'
	_, err = h.w.Write(h.rightChars[:nBytes+2])
	return
}
