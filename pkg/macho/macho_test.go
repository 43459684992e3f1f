package macho

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"testing"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/pkg/format"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// 15 bytes of x86_64 main: push rbp; mov rbp,rsp; xor eax,eax; mov [rbp-4],0; pop rbp; ret
var textBytes = []byte{
	0x55, 0x48, 0x89, 0xe5, 0x31, 0xc0, 0xc7, 0x45,
	0xfc, 0x00, 0x00, 0x00, 0x00, 0x5d, 0xc3,
}

func helloWorld() *builder {
	b := newBuilder(binary.LittleEndian, true, types.CPUAmd64)
	b.subcpu = 3
	b.segment("__TEXT",
		testSection{seg: "__TEXT", name: "__text", addr: 0x100000fa0, data: textBytes},
		testSection{seg: "__TEXT", name: "__unwind_info", addr: 0x100000fb0, data: make([]byte, 8)},
	)
	b.segment("__DATA", testSection{seg: "__DATA", name: "__data", addr: 0x100001000, data: []byte{1, 2, 3, 4}})
	return b
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		magic uint32
		want  bool
	}{
		{"MH_MAGIC", 0xfeedface, true},
		{"MH_MAGIC_64", 0xfeedfacf, true},
		{"reversed 32", 0xecafdeef, true},
		{"reversed 64", 0xfcafdeef, true},
		{"FAT_MAGIC", 0xcafebabe, true},
		{"FAT_CIGAM", 0xbebafeca, true},
		{"MH_CIGAM", 0xcefaedfe, true},
		{"MH_CIGAM_64", 0xcffaedfe, true},
		{"ELF", 0x464c457f, false},
		{"zero", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, "bin", binary.LittleEndian.AppendUint32(nil, tt.magic))
			got, err := Detect(path)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect(%#08x) = %v, want %v", tt.magic, got, tt.want)
			}
		})
	}

	t.Run("short file", func(t *testing.T) {
		got, err := Detect(writeTemp(t, "short", []byte{0xcf, 0xfa}))
		if err != nil || got {
			t.Errorf("Detect() = %v, %v; want false, nil", got, err)
		}
	})
}

func TestOpen_X86_64Executable(t *testing.T) {
	path := writeTemp(t, "hello", helloWorld().bytes())

	f, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if f.IsFat() {
		t.Error("IsFat() = true")
	}
	objs := f.Objects()
	if len(objs) != 1 {
		t.Fatalf("got %d objects, want 1", len(objs))
	}
	o := objs[0]
	if o.CPUType() != object.X86_64 {
		t.Errorf("CPUType() = %s, want x86_64", o.CPUType())
	}
	if o.Bits() != 64 {
		t.Errorf("Bits() = %d, want 64", o.Bits())
	}
	if o.Endianness() != object.LittleEndian {
		t.Errorf("Endianness() = %s", o.Endianness())
	}
	if o.FileType() != object.Execute {
		t.Errorf("FileType() = %s, want EXECUTE", o.FileType())
	}

	secs := o.Sections()
	if len(secs) != 1 {
		t.Fatalf("got %d sections, want 1", len(secs))
	}
	text := secs[0]
	if text.Type() != object.Text || text.Name() != "Program" {
		t.Errorf("section = %s %q, want Text \"Program\"", text.Type(), text.Name())
	}
	if text.Address() != 0x100000fa0 {
		t.Errorf("Address() = %#x, want 0x100000fa0", text.Address())
	}
	if text.Size() != 15 {
		t.Errorf("Size() = %d, want 15", text.Size())
	}
	if text.FileOffset() != payloadOff {
		t.Errorf("FileOffset() = %#x, want %#x", text.FileOffset(), payloadOff)
	}
	if diff := cmp.Diff(textBytes, text.Data()); diff != "" {
		t.Errorf("Data() mismatch (-want +got):\n%s", diff)
	}
	if len(o.Segments) != 2 || o.Segments[0].Name != "__TEXT" || o.Segments[1].Name != "__DATA" {
		t.Errorf("Segments = %+v", o.Segments)
	}
	if hdrs := f.Headers(); len(hdrs) != 1 || !hdrs[0].Flags.PIE() {
		t.Errorf("Headers() = %+v", hdrs)
	}
}

func TestOpen_BigEndian32(t *testing.T) {
	b := newBuilder(binary.BigEndian, false, types.CPUPpc)
	b.segment("__TEXT", testSection{seg: "__TEXT", name: "__text", addr: 0x1f00, data: []byte{0x7c, 0x08, 0x02, 0xa6}})
	b.segment("__TEXT", testSection{seg: "__TEXT", name: "__cstring", addr: 0x1f04, data: []byte("hi\x00")})

	f, err := Open(context.Background(), writeTemp(t, "ppc", b.bytes()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	o := f.Objects()[0]
	if o.CPUType() != object.PPC || o.Bits() != 32 || o.Endianness() != object.BigEndian {
		t.Errorf("object = %s", o)
	}
	cs := o.Section(object.CString)
	if cs == nil || cs.Name() != "C-Strings" || string(cs.Data()) != "hi\x00" {
		t.Fatalf("CString section = %+v", cs)
	}
	if got := o.Section(object.Text).Address(); got != 0x1f00 {
		t.Errorf("text address = %#x", got)
	}
}

func TestOpen_Fat(t *testing.T) {
	b32 := newBuilder(binary.LittleEndian, false, types.CPU386)
	b32.segment("__TEXT", testSection{seg: "__TEXT", name: "__text", addr: 0x1fa0, data: []byte{0x55, 0x89, 0xe5, 0x5d, 0xc3}})
	b64 := helloWorld()

	data := fat(
		fatSlice{cpu: types.CPU386, subcpu: 3, data: b32.bytes()},
		fatSlice{cpu: types.CPUAmd64, subcpu: 3, data: b64.bytes()},
	)
	f, err := Open(context.Background(), writeTemp(t, "universal", data))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !f.IsFat() || len(f.FatArches()) != 2 {
		t.Fatalf("IsFat() = %v, arches = %d", f.IsFat(), len(f.FatArches()))
	}
	objs := f.Objects()
	if len(objs) != 2 {
		t.Fatalf("got %d objects, want 2", len(objs))
	}
	if objs[0].CPUType() != object.X86 || objs[0].Bits() != 32 {
		t.Errorf("slice 0 = %s", objs[0])
	}
	if objs[1].CPUType() != object.X86_64 || objs[1].Bits() != 64 {
		t.Errorf("slice 1 = %s", objs[1])
	}

	text := objs[1].Section(object.Text)
	wantOff := int64(f.FatArches()[1].Offset) + payloadOff
	if text.FileOffset() != wantOff {
		t.Errorf("slice 1 text offset = %#x, want %#x", text.FileOffset(), wantOff)
	}
	if diff := cmp.Diff(textBytes, text.Data()); diff != "" {
		t.Errorf("slice 1 text mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_FatMagicByteOrders(t *testing.T) {
	tests := []struct {
		name  string
		magic []byte
	}{
		{"ca fe ba be", []byte{0xca, 0xfe, 0xba, 0xbe}},
		{"be ba fe ca", []byte{0xbe, 0xba, 0xfe, 0xca}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := fat(fatSlice{cpu: types.CPUAmd64, subcpu: 3, data: helloWorld().bytes()})
			copy(data, tt.magic)

			f, err := Open(context.Background(), writeTemp(t, "universal", data))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !f.IsFat() || len(f.Objects()) != 1 {
				t.Fatalf("IsFat() = %v, objects = %d; want true, 1", f.IsFat(), len(f.Objects()))
			}
			want := []FatArch{{CPU: types.CPUAmd64, SubCPU: 3, Offset: fatSliceAlign, Size: f.FatArches()[0].Size, Align: 12}}
			if diff := cmp.Diff(want, f.FatArches()); diff != "" {
				t.Errorf("FatArches() mismatch (-want +got):\n%s", diff)
			}
			if got := f.Objects()[0].CPUType(); got != object.X86_64 {
				t.Errorf("CPUType() = %s, want x86_64", got)
			}
		})
	}
}

func TestOpen_Symbols(t *testing.T) {
	b := newBuilder(binary.LittleEndian, true, types.CPUAmd64)
	b.segment("__TEXT",
		testSection{seg: "__TEXT", name: "__text", addr: 0x1000, data: textBytes},
		testSection{seg: "__TEXT", name: "__stubs", addr: 0x2000, data: make([]byte, 12), flags: types.S_SYMBOL_STUBS},
	)
	b.symtab([]testNlist{
		{strx: 1, value: 0x1000},
		{strx: 6, value: 0},
		{strx: 0x1000, value: 0x42}, // past the string table
	}, []byte("\x00main\x00_printf\x00"))
	b.dysymtab([]uint32{1, 0, 0x80000000})

	f, err := Open(context.Background(), writeTemp(t, "syms", b.bytes()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	o := f.Objects()[0]

	wantSyms := []object.SymbolEntry{
		{Index: 1, Value: 0x1000, Name: "main"},
		{Index: 6, Value: 0, Name: "_printf"},
		{Index: 0x1000, Value: 0x42},
	}
	if diff := cmp.Diff(wantSyms, o.SymbolTable().Symbols()); diff != "" {
		t.Errorf("symbols mismatch (-want +got):\n%s", diff)
	}

	wantDyn := []object.SymbolEntry{
		{Index: 1, Value: 0x2000, Name: "_printf"},
		{Index: 0, Value: 0x2006, Name: "main"},
		{Index: 0x80000000},
	}
	if diff := cmp.Diff(wantDyn, o.DynSymbolTable().Symbols()); diff != "" {
		t.Errorf("dynamic symbols mismatch (-want +got):\n%s", diff)
	}

	var names []string
	for _, s := range o.Sections() {
		names = append(names, s.Name())
	}
	wantNames := []string{"Program", "Symbol Stubs", "Strings", "Symbols", "Dynamic Symbols"}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("sections mismatch (-want +got):\n%s", diff)
	}
	if got := o.Section(object.Symbols).Size(); got != 3*16 {
		t.Errorf("Symbols size = %d, want 48", got)
	}
	if got := o.Section(object.DynSymbols).Size(); got != 3*4 {
		t.Errorf("Dynamic Symbols size = %d, want 12", got)
	}
	if name, ok := o.SymbolTable().LookupName(0x1000); !ok || name != "main" {
		t.Errorf("LookupName(0x1000) = %q, %v", name, ok)
	}
}

func TestOpen_NoStubsLeavesDynamicSymbolsUnresolved(t *testing.T) {
	b := newBuilder(binary.LittleEndian, true, types.CPUAmd64)
	b.segment("__TEXT", testSection{seg: "__TEXT", name: "__text", addr: 0x1000, data: textBytes})
	b.symtab([]testNlist{{strx: 1, value: 0x1000}}, []byte("\x00main\x00"))
	b.dysymtab([]uint32{0})

	f, err := Open(context.Background(), writeTemp(t, "nostubs", b.bytes()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	want := []object.SymbolEntry{{Index: 0}}
	if diff := cmp.Diff(want, f.Objects()[0].DynSymbolTable().Symbols()); diff != "" {
		t.Errorf("dynamic symbols mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_VersionMin(t *testing.T) {
	b := newBuilder(binary.LittleEndian, true, types.CPUAmd64)
	b.versionMin(types.LC_VERSION_MIN_MACOSX, 0x000a0e00, 0x000a0f00)
	b.segment("__TEXT", testSection{seg: "__TEXT", name: "__text", addr: 0x1000, data: textBytes})

	f, err := Open(context.Background(), writeTemp(t, "vmin", b.bytes()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	o := f.Objects()[0]
	vm := o.Section(object.VersionMinMacOSX)
	if vm == nil {
		t.Fatal("no version min section")
	}
	wantOff := int64(fileHeaderSize64 + loadCmdHdrSize)
	if vm.FileOffset() != wantOff || vm.Address() != uint64(wantOff) || vm.Size() != 8 {
		t.Errorf("version min section at %#x/%#x size %d, want %#x size 8", vm.FileOffset(), vm.Address(), vm.Size(), wantOff)
	}
	if diff := cmp.Diff([]byte{0x00, 0x0e, 0x0a, 0x00, 0x00, 0x0f, 0x0a, 0x00}, vm.Data()); diff != "" {
		t.Errorf("version min data mismatch (-want +got):\n%s", diff)
	}
	want := []object.VersionMin{{Platform: object.VersionMinMacOSX, Version: 0x000a0e00, SDK: 0x000a0f00}}
	if diff := cmp.Diff(want, o.VersionMins); diff != "" {
		t.Errorf("VersionMins mismatch (-want +got):\n%s", diff)
	}
	if o.SectionAt(uint64(wantOff)) != nil {
		t.Error("version min section should not be address mapped")
	}
}

func TestOpen_Metadata(t *testing.T) {
	id := [16]byte{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	b := helloWorld()
	b.uuid(id)
	b.lcStr(types.LC_LOAD_DYLINKER, nil, "/usr/lib/dyld")
	b.lcStr(types.LC_LOAD_DYLIB, []uint32{2, 0x05270000, 0x00010000}, "/usr/lib/libSystem.B.dylib")
	b.lcStr(types.LC_RPATH, nil, "@executable_path/../Frameworks")
	b.rawCmd(0x7777, 16, make([]byte, 8)) // unknown
	var entry []byte
	entry = binary.LittleEndian.AppendUint64(entry, 0xfa0)
	entry = binary.LittleEndian.AppendUint64(entry, 0)
	b.cmd(types.LC_MAIN, entry)
	var thread []byte
	thread = binary.LittleEndian.AppendUint32(thread, 4) // flavor
	thread = binary.LittleEndian.AppendUint32(thread, 2) // count
	thread = append(thread, make([]byte, 8)...)
	b.cmd(types.LC_UNIXTHREAD, thread)
	var fstarts []byte
	fstarts = binary.LittleEndian.AppendUint32(fstarts, b.data([]byte{0xa0, 0x1f, 0, 0}))
	fstarts = binary.LittleEndian.AppendUint32(fstarts, 4)
	b.cmd(types.LC_FUNCTION_STARTS, fstarts)

	f, err := Open(context.Background(), writeTemp(t, "meta", b.bytes()))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	o := f.Objects()[0]
	if o.UUID != uuid.UUID(id) {
		t.Errorf("UUID = %s", o.UUID)
	}
	if o.Dylinker != "/usr/lib/dyld" {
		t.Errorf("Dylinker = %q", o.Dylinker)
	}
	wantDylibs := []object.LoadDylib{{
		Command:        types.LC_LOAD_DYLIB.String(),
		Path:           "/usr/lib/libSystem.B.dylib",
		Timestamp:      2,
		CurrentVersion: 0x05270000,
		CompatVersion:  0x00010000,
	}}
	if diff := cmp.Diff(wantDylibs, o.Dylibs); diff != "" {
		t.Errorf("Dylibs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"@executable_path/../Frameworks"}, o.Rpaths); diff != "" {
		t.Errorf("Rpaths mismatch (-want +got):\n%s", diff)
	}
	if o.EntryOffset != 0xfa0 {
		t.Errorf("EntryOffset = %#x", o.EntryOffset)
	}
	fs := o.Section(object.FuncStarts)
	if fs == nil || fs.Name() != "Function Starts" {
		t.Fatalf("FuncStarts section = %+v", fs)
	}
	if diff := cmp.Diff([]byte{0xa0, 0x1f, 0, 0}, fs.Data()); diff != "" {
		t.Errorf("function starts mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen_LenientCommands(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *builder)
		check func(t *testing.T, o *object.BinaryObject)
	}{
		{
			name: "thread state overruns cmdsize",
			build: func(b *builder) {
				var body []byte
				body = binary.LittleEndian.AppendUint32(body, 4)
				body = binary.LittleEndian.AppendUint32(body, 42)
				b.cmd(types.LC_UNIXTHREAD, body)
			},
		},
		{
			name: "dylib name offset past cmdsize",
			build: func(b *builder) {
				var body []byte
				body = binary.LittleEndian.AppendUint32(body, 0x100)
				body = append(body, make([]byte, 12)...)
				b.cmd(types.LC_LOAD_DYLIB, body)
			},
			check: func(t *testing.T, o *object.BinaryObject) {
				want := []object.LoadDylib{{Command: types.LC_LOAD_DYLIB.String()}}
				if diff := cmp.Diff(want, o.Dylibs); diff != "" {
					t.Errorf("Dylibs mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "rpath offset inside the command header",
			build: func(b *builder) {
				b.cmd(types.LC_RPATH, binary.LittleEndian.AppendUint32(nil, 4))
			},
			check: func(t *testing.T, o *object.BinaryObject) {
				if diff := cmp.Diff([]string{""}, o.Rpaths); diff != "" {
					t.Errorf("Rpaths mismatch (-want +got):\n%s", diff)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := helloWorld()
			tt.build(b)
			b.lcStr(types.LC_RPATH, nil, "@loader_path")

			f, err := Open(context.Background(), writeTemp(t, "lenient", b.bytes()))
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			o := f.Objects()[0]
			// the command after the odd one still parses
			if n := len(o.Rpaths); n == 0 || o.Rpaths[n-1] != "@loader_path" {
				t.Errorf("Rpaths = %q, want trailing @loader_path", o.Rpaths)
			}
			if tt.check != nil {
				o.Rpaths = o.Rpaths[:len(o.Rpaths)-1]
				tt.check(t, o)
			}
		})
	}
}

func TestOpen_FatSliceBounds(t *testing.T) {
	b := helloWorld()
	b.symtab([]testNlist{{strx: 1, value: 0x100000fa0}}, []byte("\x00_main\x00"))
	data := fat(fatSlice{cpu: types.CPUAmd64, data: b.bytes()})

	// shrink the slice so its string table falls outside it while the file
	// still holds every byte
	be := binary.BigEndian
	sliceSize := be.Uint32(data[8+12:])
	be.PutUint32(data[8+12:], sliceSize-4)

	_, err := Open(context.Background(), writeTemp(t, "short-slice", data))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("Open() error = %v, want %v", err, ErrTruncated)
	}
}

func TestOpen_Errors(t *testing.T) {
	valid := helloWorld().bytes()

	tests := []struct {
		name string
		data func() []byte
		want error
	}{
		{
			name: "not macho",
			data: func() []byte { return []byte("\x7fELF\x02\x01\x01\x00") },
			want: ErrNotMachO,
		},
		{
			name: "empty",
			data: func() []byte { return nil },
			want: ErrTruncated,
		},
		{
			name: "truncated header",
			data: func() []byte { return valid[:12] },
			want: ErrTruncated,
		},
		{
			name: "truncated load command",
			data: func() []byte { return valid[:fileHeaderSize64+4] },
			want: ErrTruncated,
		},
		{
			name: "truncated section data",
			data: func() []byte { return valid[:payloadOff+4] },
			want: ErrTruncated,
		},
		{
			name: "cmdsize too small",
			data: func() []byte {
				b := newBuilder(binary.LittleEndian, true, types.CPUAmd64)
				b.rawCmd(types.LC_UUID, 4, nil)
				return b.bytes()
			},
			want: ErrMalformed,
		},
		{
			name: "cmdsize past end of file",
			data: func() []byte {
				b := newBuilder(binary.LittleEndian, true, types.CPUAmd64)
				b.rawCmd(types.LC_UUID, 0x10000, make([]byte, 16))
				return b.bytes()
			},
			want: ErrTruncated,
		},
		{
			name: "fat slice past end of file",
			data: func() []byte {
				data := fat(fatSlice{cpu: types.CPUAmd64, data: valid})
				return data[:fatSliceAlign+fileHeaderSize64+4]
			},
			want: ErrTruncated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(writeTemp(t, "bad", tt.data()))
			err := f.Parse(context.Background())
			if !errors.Is(err, tt.want) {
				t.Fatalf("Parse() error = %v, want %v", err, tt.want)
			}
			if len(f.Objects()) != 0 {
				t.Errorf("Objects() = %d after failed parse, want 0", len(f.Objects()))
			}
		})
	}
}

func TestOpen_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, writeTemp(t, "hello", helloWorld().bytes()))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() error = %v, want context.Canceled", err)
	}
}

func TestFormatOpen(t *testing.T) {
	path := writeTemp(t, "hello", helloWorld().bytes())
	f, err := format.Open(context.Background(), path)
	if err != nil {
		t.Fatalf("format.Open() error = %v", err)
	}
	if f.Type() != format.MachO || format.TypeName(f.Type()) != "Mach-O" {
		t.Errorf("Type() = %s", f.Type())
	}
	if _, ok := f.(*File); !ok {
		t.Errorf("format.Open() returned %T, want *macho.File", f)
	}
}

func TestWriteBack(t *testing.T) {
	orig := helloWorld().bytes()
	path := writeTemp(t, "hello", orig)

	f, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Run("unmodified", func(t *testing.T) {
		dst := path + ".copy"
		if err := f.Save(dst); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(orig, got) {
			t.Error("unmodified save differs from the original")
		}
	})

	t.Run("patched", func(t *testing.T) {
		text := f.Objects()[0].Section(object.Text)
		text.SetSubData([]byte{0x90, 0x90}, 2)

		dst := path + ".patched"
		if err := f.Save(dst); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := os.ReadFile(dst)
		if err != nil {
			t.Fatal(err)
		}
		want := append([]byte(nil), orig...)
		copy(want[payloadOff+2:], []byte{0x90, 0x90})
		if !bytes.Equal(want, got) {
			t.Error("patched file differs outside the edited bytes")
		}

		reopened, err := Open(context.Background(), dst)
		if err != nil {
			t.Fatalf("Open(patched) error = %v", err)
		}
		if diff := cmp.Diff(text.Data(), reopened.Objects()[0].Section(object.Text).Data()); diff != "" {
			t.Errorf("reparsed text mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("commit", func(t *testing.T) {
		if err := f.Commit(true); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		bak, err := os.ReadFile(path + ".bak")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(orig, bak) {
			t.Error("backup differs from the original")
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if got[payloadOff+2] != 0x90 || got[payloadOff+3] != 0x90 {
			t.Errorf("commit did not write the edit: % x", got[payloadOff:payloadOff+4])
		}
		if f.Objects()[0].IsModified() {
			t.Error("IsModified() = true after commit")
		}
	})
}

func TestWriteBack_FatSlice(t *testing.T) {
	b32 := newBuilder(binary.LittleEndian, false, types.CPU386)
	b32.segment("__TEXT", testSection{seg: "__TEXT", name: "__text", addr: 0x1fa0, data: []byte{0x55, 0x89, 0xe5, 0x5d, 0xc3}})
	orig := fat(
		fatSlice{cpu: types.CPU386, data: b32.bytes()},
		fatSlice{cpu: types.CPUAmd64, data: helloWorld().bytes()},
	)
	path := writeTemp(t, "universal", orig)

	f, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	f.Objects()[1].Section(object.Text).SetSubData([]byte{0xcc}, 0)

	dst := path + ".patched"
	if err := f.Save(dst); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte(nil), orig...)
	want[int(f.FatArches()[1].Offset)+payloadOff] = 0xcc
	if !bytes.Equal(want, got) {
		t.Error("patched universal file differs outside the edited byte")
	}
}

func TestCPUMapping(t *testing.T) {
	tests := []struct {
		cpu  types.CPU
		sub  types.CPUSubtype
		want object.CPUType
	}{
		{types.CPU386, 3, object.X86},
		{types.CPUAmd64, 3, object.X86_64},
		{types.CPUAmd64, 0x80000003, object.X86_64},
		{types.CPUAmd64, 8, object.X86_64H},
		{types.CPUArm, 9, object.ARMV7},
		{types.CPUArm, 11, object.ARMV7S},
		{types.CPUArm64, 0, object.ARM64},
		{types.CPUArm64, 0x80000002, object.ARM64E},
		{types.CPUArm6432, 1, object.ARM64_32},
		{types.CPUPpc, 0, object.PPC},
		{types.CPU(99), 0, object.X86},
	}
	for _, tt := range tests {
		if got := cpuType(tt.cpu, tt.sub); got != tt.want {
			t.Errorf("cpuType(%s, %#x) = %s, want %s", tt.cpu, tt.sub, got, tt.want)
		}
	}
}
