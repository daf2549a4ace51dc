// Package idmap tracks source-to-target id bindings accumulated while
// entities are created, plus the template type-string remaps derived from
// them. Mappers are safe for concurrent use.
package idmap

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360studio/tagmirror/entity"
)

// Entry is one recorded binding.
type Entry struct {
	Kind       entity.Kind `json:"kind"`
	SourceID   string      `json:"sourceId"`
	TargetID   string      `json:"targetId"`
	TargetName string      `json:"targetName,omitempty"`
}

type binding struct {
	targetID string
	name     string
}

// Mapper records id bindings per entity kind. A source id binds at most
// once; rebinding to a different target id is a conflict.
type Mapper struct {
	mu      sync.RWMutex
	forward map[string]binding // kind:sourceID → target
	reverse map[string]string  // kind:targetID → sourceID
	types   map[string]string  // source type string → target type string
}

// New returns an empty mapper.
func New() *Mapper {
	return &Mapper{
		forward: make(map[string]binding),
		reverse: make(map[string]string),
		types:   make(map[string]string),
	}
}

// Bind records that the source entity exists in the target workspace under
// targetID with the given name. Binding the identical tuple twice is a
// no-op; binding a source id to a different target is an error.
func (m *Mapper) Bind(kind entity.Kind, sourceID, targetID, name string) error {
	if sourceID == "" || targetID == "" {
		return fmt.Errorf("bind %s: empty id", kind)
	}
	key := kind.Key(sourceID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.forward[key]; ok {
		if existing.targetID == targetID && existing.name == name {
			return nil
		}
		return fmt.Errorf("bind %s: source id %s already bound to %s, refusing rebind to %s",
			kind, sourceID, existing.targetID, targetID)
	}
	m.forward[key] = binding{targetID: targetID, name: name}
	m.reverse[kind.Key(targetID)] = sourceID
	return nil
}

// LookupID returns the target id bound to a source id.
func (m *Mapper) LookupID(kind entity.Kind, sourceID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.forward[kind.Key(sourceID)]
	return b.targetID, ok
}

// Lookup returns the full binding entry for a source id.
func (m *Mapper) Lookup(kind entity.Kind, sourceID string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.forward[kind.Key(sourceID)]
	if !ok {
		return Entry{}, false
	}
	return Entry{Kind: kind, SourceID: sourceID, TargetID: b.targetID, TargetName: b.name}, true
}

// LookupSource returns the source id bound to a target id.
func (m *Mapper) LookupSource(kind entity.Kind, targetID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src, ok := m.reverse[kind.Key(targetID)]
	return src, ok
}

// RemapIDList maps each source id to its target id. Unbound ids are kept
// as-is and reported in warnings so the caller can decide whether that is
// acceptable.
func (m *Mapper) RemapIDList(kind entity.Kind, ids []string) (mapped []string, warnings []string) {
	if len(ids) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	mapped = make([]string, 0, len(ids))
	for _, id := range ids {
		if b, ok := m.forward[kind.Key(id)]; ok {
			mapped = append(mapped, b.targetID)
			continue
		}
		mapped = append(mapped, id)
		warnings = append(warnings, fmt.Sprintf("no target binding for %s id %s", kind, id))
	}
	return mapped, warnings
}

// BindTemplateType records a source→target template type-string remap.
// The gallery sentinel never remaps; conflicting rebinds are errors.
func (m *Mapper) BindTemplateType(sourceType, targetType string) error {
	if sourceType == "" || targetType == "" || sourceType == entity.GallerySentinel {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.types[sourceType]; ok {
		if existing == targetType {
			return nil
		}
		return fmt.Errorf("template type %s already bound to %s, refusing rebind to %s",
			sourceType, existing, targetType)
	}
	m.types[sourceType] = targetType
	return nil
}

// ResolveTemplateType returns the target type string for a source template
// type string.
func (m *Mapper) ResolveTemplateType(sourceType string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	target, ok := m.types[sourceType]
	return target, ok
}

// Entries returns a sorted snapshot of all id bindings.
func (m *Mapper) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]Entry, 0, len(m.forward))
	for key, b := range m.forward {
		kind, sourceID, err := entity.ParseKey(key)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Kind: kind, SourceID: sourceID, TargetID: b.targetID, TargetName: b.name,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Kind != entries[j].Kind {
			return entries[i].Kind.CreationPriority() < entries[j].Kind.CreationPriority()
		}
		return entries[i].SourceID < entries[j].SourceID
	})
	return entries
}

// TemplateTypes returns a copy of the type-string remap table.
func (m *Mapper) TemplateTypes() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.types))
	for k, v := range m.types {
		out[k] = v
	}
	return out
}

// Len returns the number of id bindings.
func (m *Mapper) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.forward)
}
