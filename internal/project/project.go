// Package project saves and restores pending edits as JSON so a patch session
// can be resumed against a fresh parse of the same file.
package project

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Project is the on-disk form of an edit map. Offsets are absolute file
// offsets written in decimal; bytes are hex encoded.
type Project struct {
	File  string            `json:"file"`
	Edits map[string]string `json:"edits"`
}

// New builds a Project from an edit map.
func New(file string, edits map[int64][]byte) *Project {
	p := &Project{File: file, Edits: make(map[string]string, len(edits))}
	for off, data := range edits {
		p.Edits[strconv.FormatInt(off, 10)] = hex.EncodeToString(data)
	}
	return p
}

// EditMap decodes the stored edits.
func (p *Project) EditMap() (map[int64][]byte, error) {
	edits := make(map[int64][]byte, len(p.Edits))
	for k, v := range p.Edits {
		off, err := strconv.ParseInt(k, 10, 64)
		if err != nil || off < 0 {
			return nil, fmt.Errorf("invalid edit offset %q", k)
		}
		data, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid bytes for edit at offset %d: %v", off, err)
		}
		edits[off] = data
	}
	return edits, nil
}

// Offsets returns the edit offsets in ascending order.
func (p *Project) Offsets() []int64 {
	var offs []int64
	for k := range p.Edits {
		if off, err := strconv.ParseInt(k, 10, 64); err == nil {
			offs = append(offs, off)
		}
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	return offs
}

// Save writes p to path as indented JSON.
func (p *Project) Save(path string) error {
	dat, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal project: %v", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(path, dat, 0o644); err != nil {
		return fmt.Errorf("failed to write project %s: %v", path, err)
	}
	return nil
}

// Load reads a project written by Save.
func Load(path string) (*Project, error) {
	dat, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project %s: %v", path, err)
	}
	var p Project
	if err := json.Unmarshal(dat, &p); err != nil {
		return nil, fmt.Errorf("failed to parse project %s: %v", path, err)
	}
	if p.Edits == nil {
		p.Edits = make(map[string]string)
	}
	return &p, nil
}
