package disass

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blacktop/machedit/pkg/object"
)

// InstructionMatcher matches instruction text against literal patterns or a
// regular expression.
type InstructionMatcher struct {
	normalized []string
	regex      *regexp.Regexp
}

// normalizeInstruction condenses whitespace and lowercases s so formatting
// differences do not affect matching.
func normalizeInstruction(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(strings.TrimSpace(s)), " "))
}

// NewInstructionMatcher builds a matcher from literal instruction patterns and
// an optional regex.
func NewInstructionMatcher(patterns []string, regexPattern string) (*InstructionMatcher, error) {
	m := &InstructionMatcher{}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.normalized = append(m.normalized, normalizeInstruction(p))
	}
	if regexPattern != "" {
		re, err := regexp.Compile(regexPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", regexPattern, err)
		}
		m.regex = re
	}
	return m, nil
}

// HasCriteria reports whether the matcher has any patterns or regex configured.
func (m *InstructionMatcher) HasCriteria() bool {
	return len(m.normalized) > 0 || m.regex != nil
}

// Match reports whether instruction equals one of the patterns after
// normalization or matches the regex.
func (m *InstructionMatcher) Match(instruction string) bool {
	if m.regex != nil && m.regex.MatchString(instruction) {
		return true
	}
	norm := normalizeInstruction(instruction)
	for _, p := range m.normalized {
		if p == norm {
			return true
		}
	}
	return false
}

// A Match is one matched instruction.
type Match struct {
	Section     string
	Instruction object.Instruction
}

// Find scans the cached disassembly of every code section of obj. Sections
// that were never populated are skipped.
func Find(obj *object.BinaryObject, m *InstructionMatcher) []Match {
	var matches []Match
	for _, sec := range obj.Sections() {
		d := sec.Disassembly()
		if d == nil {
			continue
		}
		for _, i := range d.Instructions {
			if m.Match(i.String()) {
				matches = append(matches, Match{Section: sec.Name(), Instruction: i})
			}
		}
	}
	return matches
}
