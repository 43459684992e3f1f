package object

// SymbolEntry is one symbol table record. Index is the offset of the name in
// the string table, or for dynamic symbols the index into the symbol table.
type SymbolEntry struct {
	Index uint32
	Value uint64
	Name  string
}

// SymbolTable is an ordered list of symbols, kept in on-disk order.
type SymbolTable struct {
	entries []SymbolEntry
}

// Add appends an entry.
func (t *SymbolTable) Add(e SymbolEntry) {
	t.entries = append(t.entries, e)
}

// Symbols returns the entries in insertion order. Elements may be updated in
// place by whoever owns the table.
func (t *SymbolTable) Symbols() []SymbolEntry {
	return t.entries
}

// Len returns the number of entries.
func (t *SymbolTable) Len() int { return len(t.entries) }

// LookupName returns the name of the first named entry whose value is value.
func (t *SymbolTable) LookupName(value uint64) (string, bool) {
	for _, e := range t.entries {
		if e.Value == value && len(e.Name) > 0 {
			return e.Name, true
		}
	}
	return "", false
}

// Equal reports whether both tables hold the same entries in the same order.
func (t *SymbolTable) Equal(o *SymbolTable) bool {
	if len(t.entries) != len(o.entries) {
		return false
	}
	for i := range t.entries {
		if t.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}
