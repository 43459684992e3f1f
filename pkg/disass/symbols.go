package disass

import (
	"fmt"

	"github.com/blacktop/machedit/pkg/object"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of lookups a Symbolizer remembers.
const DefaultCacheSize = 4096

// Symbolizer resolves addresses to symbol names. Stub entries from the
// dynamic symbol table win over plain symbols. Results, including misses,
// are cached; it is safe for concurrent use once parsing is done.
type Symbolizer struct {
	obj   *object.BinaryObject
	cache *lru.Cache[uint64, string]
}

func NewSymbolizer(obj *object.BinaryObject, size int) (*Symbolizer, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[uint64, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create symbol cache: %w", err)
	}
	return &Symbolizer{obj: obj, cache: cache}, nil
}

// Lookup returns the symbol name at addr.
func (s *Symbolizer) Lookup(addr uint64) (string, bool) {
	if name, ok := s.cache.Get(addr); ok {
		return name, name != ""
	}
	name, ok := s.obj.DynSymbolTable().LookupName(addr)
	if !ok {
		name, _ = s.obj.SymbolTable().LookupName(addr)
	}
	s.cache.Add(addr, name)
	return name, name != ""
}

// SymName has the SymbolLookup signature.
func (s *Symbolizer) SymName(addr uint64) (string, uint64) {
	if name, ok := s.Lookup(addr); ok {
		return name, addr
	}
	return "", 0
}
