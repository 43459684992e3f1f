package macho

import (
	"fmt"
	"slices"
	"strings"

	"github.com/blacktop/machedit/internal/colors"
	"github.com/blacktop/machedit/internal/utils"
	"github.com/blacktop/machedit/pkg/object"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffConfig controls how DiffObjects renders its output.
type DiffConfig struct {
	Color    bool
	Markdown bool
}

// DiffObjects compares two parsed slices section by section. Sections are
// paired by name; their contents are compared as hexdumps so that the output
// shows both the address and the changed bytes. Returns an empty string when
// nothing differs.
func DiffObjects(a, b *object.BinaryObject, conf *DiffConfig) string {
	if conf == nil {
		conf = &DiffConfig{}
	}

	added, removed := fmt.Sprintf, fmt.Sprintf
	if conf.Color {
		added, removed = colors.Green().Sprintf, colors.Red().Sprintf
	}

	var sb strings.Builder
	if conf.Markdown {
		sb.WriteString("```diff\n")
	}
	n := sb.Len()

	for _, sa := range a.Sections() {
		sbSec := b.SectionByName(sa.Name())
		if sbSec == nil {
			sb.WriteString(removed("- %s (%s)\n", sa.Name(), sa.Type()))
			continue
		}
		out := diffText(
			utils.HexDump(sa.Data(), sa.Address()),
			utils.HexDump(sbSec.Data(), sbSec.Address()),
			conf.Color,
		)
		if out == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s:\n%s", sa.Name(), out)
	}
	for _, s := range b.Sections() {
		if a.SectionByName(s.Name()) == nil {
			sb.WriteString(added("+ %s (%s)\n", s.Name(), s.Type()))
		}
	}

	newSyms, rmSyms := diffSymbols(a, b)
	if len(newSyms) > 0 || len(rmSyms) > 0 {
		sb.WriteString("Symbols:\n")
		for _, s := range newSyms {
			sb.WriteString(added("+ %s\n", s))
		}
		for _, s := range rmSyms {
			sb.WriteString(removed("- %s\n", s))
		}
	}

	if sb.Len() == n {
		return ""
	}
	if conf.Markdown {
		sb.WriteString("```\n")
	}
	return sb.String()
}

// diffText diffs src and dst line by line.
func diffText(src, dst string, color bool) string {
	if src == dst {
		return ""
	}

	dmp := diffmatchpatch.New()

	c1, c2, lines := dmp.DiffLinesToChars(src, dst)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(c1, c2, false), lines)

	if color {
		return dmp.DiffPrettyText(diffs)
	}

	var sb strings.Builder
	for _, d := range diffs {
		var prefix string
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		default:
			continue
		}
		for line := range strings.SplitSeq(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix + line + "\n")
		}
	}
	return sb.String()
}

func symbolNames(o *object.BinaryObject) []string {
	var names []string
	for _, tab := range []*object.SymbolTable{o.SymbolTable(), o.DynSymbolTable()} {
		for _, s := range tab.Symbols() {
			if s.Name != "" {
				names = append(names, s.Name)
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

func diffSymbols(a, b *object.BinaryObject) (added, removed []string) {
	old, cur := symbolNames(a), symbolNames(b)
	for _, s := range cur {
		if _, found := slices.BinarySearch(old, s); !found {
			added = append(added, s)
		}
	}
	for _, s := range old {
		if _, found := slices.BinarySearch(cur, s); !found {
			removed = append(removed, s)
		}
	}
	return
}
