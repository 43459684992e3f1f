// Package macho implements the logic behind the machedit subcommands.
package macho

import (
	"fmt"
	"strings"

	"github.com/blacktop/go-macho/types"
	"github.com/blacktop/machedit/internal/colors"
	"github.com/blacktop/machedit/pkg/macho"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/blacktop/machedit/pkg/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

var (
	colorTitle = colors.BoldHiBlue().SprintFunc()
	colorField = colors.Bold().SprintFunc()
	colorName  = colors.BoldMagenta().SprintFunc()
	colorAddr  = colors.FaintHiBlue().SprintfFunc()
	colorMod   = colors.Modified().SprintFunc()
)

// Info renders a summary of every slice of f.
func Info(f *macho.File) string {
	var sb strings.Builder

	if f.IsFat() {
		sb.WriteString(colorTitle("Universal Binary") + "\n")
		for i, a := range f.FatArches() {
			fmt.Fprintf(&sb, "  %2d) %-8s %-12s offset=%s size=%s align=%d\n",
				i,
				a.CPU,
				a.SubCPU.String(a.CPU),
				colorAddr("%#x", a.Offset),
				humanize.Bytes(uint64(a.Size)),
				uint64(1)<<a.Align,
			)
		}
		sb.WriteString("\n")
	}

	hdrs := f.Headers()
	for i, o := range f.Objects() {
		if i > 0 {
			sb.WriteString("\n")
		}
		var hdr *types.FileHeader
		if i < len(hdrs) {
			hdr = &hdrs[i]
		}
		sb.WriteString(ObjectInfo(o, hdr))
	}

	return sb.String()
}

// ObjectInfo renders one slice. hdr may be nil.
func ObjectInfo(o *object.BinaryObject, hdr *types.FileHeader) string {
	var sb strings.Builder

	field := func(name, format string, args ...any) {
		fmt.Fprintf(&sb, "%s %s\n", colorField(fmt.Sprintf("%-12s", name+":")), fmt.Sprintf(format, args...))
	}

	sb.WriteString(colorTitle(o.String()) + "\n")

	cpu := types.CPU(o.RawCPU)
	field("CPU", "%s, %s", cpu, types.CPUSubtype(o.RawSubCPU).String(cpu))
	if hdr != nil {
		field("Magic", "%#x", uint32(hdr.Magic))
		field("Type", "%s", hdr.Type)
		field("Commands", "%d (%s)", hdr.NCommands, humanize.Bytes(uint64(hdr.SizeCommands)))
		field("Flags", "%s", hdr.Flags.Flags())
	}
	if o.UUID != uuid.Nil {
		field("UUID", "%s", strings.ToUpper(o.UUID.String()))
	}
	if o.Dylinker != "" {
		field("Dylinker", "%s", o.Dylinker)
	}
	if o.EntryOffset != 0 {
		field("Entry", "%#x (stack %d)", o.EntryOffset, o.StackSize)
	}
	if o.SourceVersion != 0 {
		field("Source", "%s", types.SrcVersion(o.SourceVersion))
	}
	for _, vm := range o.VersionMins {
		field("Min Version", "%s %s (sdk %s)", platformName(vm.Platform), types.Version(vm.Version), types.Version(vm.SDK))
	}
	for _, bv := range o.BuildVersions {
		field("Build", "%s %s (sdk %s, %d tools)", types.Platform(bv.Platform), types.Version(bv.Minos), types.Version(bv.SDK), bv.NumTools)
	}

	if len(o.Segments) > 0 {
		tbl := newTable()
		tbl.SetHeaders("SEGMENT", "ADDRESS", "VMSIZE", "FILEOFF", "FILESIZE", "PROT", "NSECT")
		for _, seg := range o.Segments {
			tbl.AppendRow(
				colorName(seg.Name),
				fmt.Sprintf("%#x-%#x", seg.Addr, seg.Addr+seg.Memsz),
				humanize.Bytes(seg.Memsz),
				fmt.Sprintf("%#x", seg.Offset),
				humanize.Bytes(seg.Filesz),
				fmt.Sprintf("%s/%s", types.VmProtection(seg.Prot), types.VmProtection(seg.Maxprot)),
				fmt.Sprintf("%d", seg.Nsect),
			)
		}
		sb.WriteString("\n" + tbl.Render() + "\n")
	}

	if secs := o.Sections(); len(secs) > 0 {
		tbl := newTable()
		tbl.SetHeaders("SECTION", "TYPE", "ADDRESS", "OFFSET", "SIZE", "EDITS")
		tbl.SetColumnAlignment(4, lipgloss.Right)
		for _, s := range secs {
			var edits string
			if s.IsModified() {
				edits = colorMod(fmt.Sprintf("modified (%d)", len(s.ModifiedRegions())))
			}
			tbl.AppendRow(
				s.Name(),
				s.Type().String(),
				fmt.Sprintf("%#x", s.Address()),
				fmt.Sprintf("%#x", s.FileOffset()),
				humanize.Bytes(s.Size()),
				edits,
			)
		}
		sb.WriteString("\n" + tbl.Render() + "\n")
	}

	if len(o.Dylibs) > 0 {
		sb.WriteString("\n" + colorTitle("Dylibs") + "\n")
		for _, d := range o.Dylibs {
			fmt.Fprintf(&sb, "  %s (%s, compatibility %s, current %s)\n", d.Path, d.Command, types.Version(d.CompatVersion), types.Version(d.CurrentVersion))
		}
	}
	if len(o.Rpaths) > 0 {
		sb.WriteString("\n" + colorTitle("Rpaths") + "\n")
		for _, r := range o.Rpaths {
			fmt.Fprintf(&sb, "  %s\n", r)
		}
	}

	fmt.Fprintf(&sb, "\n%s %s, %s %s\n",
		colorField("Symbols:"), humanize.Comma(int64(o.SymbolTable().Len())),
		colorField("Dynamic:"), humanize.Comma(int64(o.DynSymbolTable().Len())),
	)

	return sb.String()
}

// Symbols lists the symbol table of o, or its dynamic symbol table.
func Symbols(o *object.BinaryObject, dynamic bool) string {
	tab := o.SymbolTable()
	if dynamic {
		tab = o.DynSymbolTable()
	}
	var sb strings.Builder
	for _, s := range tab.Symbols() {
		name := s.Name
		if name == "" {
			name = fmt.Sprintf("<index %#x>", s.Index)
		}
		fmt.Fprintf(&sb, "%s  %s\n", colorAddr("%#016x", s.Value), name)
	}
	return sb.String()
}

func newTable() *table.Table {
	if colors.Enabled() {
		return table.NewStyledTable()
	}
	return table.NewTable()
}

func platformName(t object.SectionType) string {
	switch t {
	case object.VersionMinMacOSX:
		return "macOS"
	case object.VersionMinIPhoneOS:
		return "iOS"
	case object.VersionMinWatchOS:
		return "watchOS"
	case object.VersionMinTvOS:
		return "tvOS"
	}
	return t.String()
}
