// Package catalog interns the small strings Cypher queries traffic in —
// labels, relationship types, and property keys — into compact integer ids,
// the way a real graph engine avoids storing repeated strings in every
// record. Each namespace is its own table, with one sync.RWMutex guarding a
// name->id map and an id-indexed name slice.
package catalog

import (
	"sort"
	"sync"

	"github.com/hivellm/nexus/nexuserr"
)

// ID is an interned small integer identifying a label, relationship type, or
// property key.
type ID uint32

// table is a bidirectional string<->ID interning table for one namespace.
type table struct {
	mu      sync.RWMutex
	byName  map[string]ID
	byID    []string // index i holds the name for ID(i)
}

func newTable() *table {
	return &table{byName: make(map[string]ID)}
}

// intern returns the existing id for name, or allocates a new one. The
// empty string is reserved (spec §8's "reserved names fail") and is never
// interned, regardless of namespace.
func (t *table) intern(name string) (ID, error) {
	if name == "" {
		return 0, nexuserr.New(nexuserr.CodeSemantic, "catalog: name must not be empty")
	}

	t.mu.RLock()
	if id, ok := t.byName[name]; ok {
		t.mu.RUnlock()
		return id, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byName[name]; ok {
		return id, nil
	}
	id := ID(len(t.byID))
	t.byID = append(t.byID, name)
	t.byName[name] = id
	return id, nil
}

// lookup returns the id for an existing name, without interning it.
func (t *table) lookup(name string) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[name]
	return id, ok
}

// name returns the string for a previously interned id.
func (t *table) name(id ID) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(t.byID) {
		return "", nexuserr.New(nexuserr.CodeNotFound, "catalog: unknown id %d", id)
	}
	return t.byID[id], nil
}

// names returns a sorted snapshot of all interned names in this table.
func (t *table) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.byID))
	copy(out, t.byID)
	sort.Strings(out)
	return out
}

func (t *table) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Catalog holds the three interning tables the storage and execution layers
// share: labels, relationship types, and property keys.
type Catalog struct {
	labels   *table
	relTypes *table
	propKeys *table
}

// New constructs an empty Catalog.
func New() *Catalog {
	return &Catalog{
		labels:   newTable(),
		relTypes: newTable(),
		propKeys: newTable(),
	}
}

// InternLabel interns a node label, returning its id. It fails on the
// reserved empty name (spec §8).
func (c *Catalog) InternLabel(name string) (ID, error) { return c.labels.intern(name) }

// LookupLabel returns the id for an already-interned label.
func (c *Catalog) LookupLabel(name string) (ID, bool) { return c.labels.lookup(name) }

// LabelName resolves a label id back to its string name.
func (c *Catalog) LabelName(id ID) (string, error) { return c.labels.name(id) }

// InternRelType interns a relationship type, returning its id. It fails on
// the reserved empty name (spec §8).
func (c *Catalog) InternRelType(name string) (ID, error) { return c.relTypes.intern(name) }

// LookupRelType returns the id for an already-interned relationship type.
func (c *Catalog) LookupRelType(name string) (ID, bool) { return c.relTypes.lookup(name) }

// RelTypeName resolves a relationship-type id back to its string name.
func (c *Catalog) RelTypeName(id ID) (string, error) { return c.relTypes.name(id) }

// InternPropKey interns a property key, returning its id. It fails on the
// reserved empty name (spec §8).
func (c *Catalog) InternPropKey(name string) (ID, error) { return c.propKeys.intern(name) }

// LookupPropKey returns the id for an already-interned property key.
func (c *Catalog) LookupPropKey(name string) (ID, bool) { return c.propKeys.lookup(name) }

// PropKeyName resolves a property-key id back to its string name.
func (c *Catalog) PropKeyName(id ID) (string, error) { return c.propKeys.name(id) }

// Snapshot is a point-in-time view of every interned name, grouped by
// namespace, used by stats() (session.Stats) per SPEC_FULL.md §12.
type Snapshot struct {
	Labels       []string `json:"labels"`
	RelTypes     []string `json:"relationshipTypes"`
	PropertyKeys []string `json:"propertyKeys"`
}

// Snapshot returns the current catalog contents for introspection.
func (c *Catalog) Snapshot() Snapshot {
	return Snapshot{
		Labels:       c.labels.names(),
		RelTypes:     c.relTypes.names(),
		PropertyKeys: c.propKeys.names(),
	}
}

// LabelCount returns the number of distinct labels interned so far.
func (c *Catalog) LabelCount() int { return c.labels.count() }

// RelTypeCount returns the number of distinct relationship types interned so far.
func (c *Catalog) RelTypeCount() int { return c.relTypes.count() }

// PropKeyCount returns the number of distinct property keys interned so far.
func (c *Catalog) PropKeyCount() int { return c.propKeys.count() }
