// Package store implements the native graph storage substrate: fixed-width
// node and relationship records, property chains, and the doubly-linked
// adjacency lists that let a relationship be reached from either endpoint.
// It follows the same "arena of records behind an exclusive lock" shape the
// teacher uses in statemanager.Manager, scaled to id-indexed slices rather
// than a string-keyed map.
package store

import (
	"sort"
	"sync"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/values"
)

// None marks the absence of a chain pointer (node/rel/prop id).
const None uint64 = ^uint64(0)

// Direction selects which side of a relationship's pair of chains to walk.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
	Both
)

// nodeRecord carries two chain heads — one for relationships where this
// node is the source, one for relationships where it is the destination —
// which together realize spec §3's "per-node head pointer into a
// relationship chain" for both traversal directions. A self-loop relationship
// is linked into both of its owner's chains independently.
type nodeRecord struct {
	inUse      bool
	labels     []catalog.ID // small bag; kept sorted for deterministic label tests
	firstOut   uint64
	firstIn    uint64
	firstProp  uint64
}

type relRecord struct {
	inUse     bool
	typeID    catalog.ID
	src       uint64
	dst       uint64
	srcPrev   uint64
	srcNext   uint64
	dstPrev   uint64
	dstNext   uint64
	firstProp uint64
}

type propRecord struct {
	inUse    bool
	key      catalog.ID
	value    values.Value
	nextProp uint64
}

// NodeView is a materialized, read-only snapshot of a node's logical state.
type NodeView struct {
	ID        uint64
	Labels    []catalog.ID
	Props     map[catalog.ID]values.Value
	PropOrder []catalog.ID // first-insertion order (SPEC_FULL.md §13.3)
}

// RelView is a materialized, read-only snapshot of a relationship's logical state.
type RelView struct {
	ID        uint64
	Type      catalog.ID
	Src       uint64
	Dst       uint64
	Props     map[catalog.ID]values.Value
	PropOrder []catalog.ID
}

// PropInit is a key/value pair used when an entity is created with initial properties.
type PropInit struct {
	Key   catalog.ID
	Value values.Value
}

// Store owns the node, relationship, and property arenas plus their free
// lists. A single RWMutex guards all three, matching spec §5's reference
// concurrency design (one store-wide reader/writer lock).
type Store struct {
	mu sync.RWMutex

	nodes    []nodeRecord
	nodeFree []uint64
	rels     []relRecord
	relFree  []uint64
	props    []propRecord
	propFree []uint64

	liveNodeCount int
	liveRelCount  int
	labelCounts   map[catalog.ID]int
	typeCounts    map[catalog.ID]int
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		labelCounts: make(map[catalog.ID]int),
		typeCounts:  make(map[catalog.ID]int),
	}
}

// Lock/Unlock/RLock/RUnlock expose the store-wide lock so the session layer
// can hold the exclusive side for the duration of a write query's write
// operators, per spec §5.
func (s *Store) Lock()    { s.mu.Lock() }
func (s *Store) Unlock()  { s.mu.Unlock() }
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

func sortedLabels(labels []catalog.ID) []catalog.ID {
	out := make([]catalog.ID, len(labels))
	copy(out, labels)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AllocNode allocates a node with the given labels and initial properties
// (in iteration order), returning its id. Caller must hold the write lock.
func (s *Store) AllocNode(labels []catalog.ID, props []PropInit) uint64 {
	rec := nodeRecord{inUse: true, labels: sortedLabels(labels), firstOut: None, firstIn: None, firstProp: None}
	var id uint64
	if n := len(s.nodeFree); n > 0 {
		id = s.nodeFree[n-1]
		s.nodeFree = s.nodeFree[:n-1]
		s.nodes[id] = rec
	} else {
		id = uint64(len(s.nodes))
		s.nodes = append(s.nodes, rec)
	}
	for _, l := range labels {
		s.labelCounts[l]++
	}
	s.liveNodeCount++
	for _, p := range props {
		s.setPropOnChain(id, true, p.Key, p.Value)
	}
	return id
}

// AllocRel allocates a relationship between src and dst, prepending it to
// both endpoints' chains. Caller must hold the write lock and must have
// already validated src/dst exist.
func (s *Store) AllocRel(typeID catalog.ID, src, dst uint64, props []PropInit) uint64 {
	rec := relRecord{
		inUse: true, typeID: typeID, src: src, dst: dst,
		srcPrev: None, srcNext: None, dstPrev: None, dstNext: None, firstProp: None,
	}
	var id uint64
	if n := len(s.relFree); n > 0 {
		id = s.relFree[n-1]
		s.relFree = s.relFree[:n-1]
	} else {
		id = uint64(len(s.rels))
		s.rels = append(s.rels, relRecord{})
	}

	oldOutHead := s.nodes[src].firstOut
	rec.srcNext = oldOutHead
	if oldOutHead != None {
		s.rels[oldOutHead].srcPrev = id
	}
	s.nodes[src].firstOut = id

	oldInHead := s.nodes[dst].firstIn
	rec.dstNext = oldInHead
	if oldInHead != None {
		s.rels[oldInHead].dstPrev = id
	}
	s.nodes[dst].firstIn = id

	s.rels[id] = rec
	s.typeCounts[typeID]++
	s.liveRelCount++
	for _, p := range props {
		s.setPropOnChain(id, false, p.Key, p.Value)
	}
	return id
}

// GetNode materializes a read-only view of a node. Caller must hold at least the read lock.
func (s *Store) GetNode(id uint64) (*NodeView, error) {
	if id >= uint64(len(s.nodes)) || !s.nodes[id].inUse {
		return nil, nexuserr.New(nexuserr.CodeNotFound, "node %d not found", id)
	}
	rec := s.nodes[id]
	view := &NodeView{ID: id, Labels: append([]catalog.ID(nil), rec.labels...), Props: map[catalog.ID]values.Value{}}
	s.walkProps(rec.firstProp, func(key catalog.ID, v values.Value) {
		view.Props[key] = v
		view.PropOrder = append(view.PropOrder, key)
	})
	return view, nil
}

// GetRel materializes a read-only view of a relationship.
func (s *Store) GetRel(id uint64) (*RelView, error) {
	if id >= uint64(len(s.rels)) || !s.rels[id].inUse {
		return nil, nexuserr.New(nexuserr.CodeNotFound, "relationship %d not found", id)
	}
	rec := s.rels[id]
	view := &RelView{ID: id, Type: rec.typeID, Src: rec.src, Dst: rec.dst, Props: map[catalog.ID]values.Value{}}
	s.walkProps(rec.firstProp, func(key catalog.ID, v values.Value) {
		view.Props[key] = v
		view.PropOrder = append(view.PropOrder, key)
	})
	return view, nil
}

// NodeExists reports whether id refers to a live node.
func (s *Store) NodeExists(id uint64) bool {
	return id < uint64(len(s.nodes)) && s.nodes[id].inUse
}

// RelExists reports whether id refers to a live relationship.
func (s *Store) RelExists(id uint64) bool {
	return id < uint64(len(s.rels)) && s.rels[id].inUse
}

func (s *Store) walkProps(head uint64, fn func(key catalog.ID, v values.Value)) {
	cur := head
	for cur != None {
		p := s.props[cur]
		fn(p.key, p.value)
		cur = p.nextProp
	}
}

// IterRelsOf walks node's relationship chain(s) honoring direction and an
// optional type filter, calling fn for each relationship id exactly once —
// self-loops under Direction=Both are linked into both the node's outgoing
// and incoming chains but are still only yielded once, per spec §4.2.
func (s *Store) IterRelsOf(node uint64, dir Direction, typeFilter func(catalog.ID) bool, fn func(relID uint64)) {
	seen := map[uint64]bool{}
	visit := func(relID uint64) {
		if seen[relID] {
			return
		}
		seen[relID] = true
		r := s.rels[relID]
		if typeFilter != nil && !typeFilter(r.typeID) {
			return
		}
		fn(relID)
	}

	if dir == Outgoing || dir == Both {
		for cur := s.nodes[node].firstOut; cur != None; cur = s.rels[cur].srcNext {
			visit(cur)
		}
	}
	if dir == Incoming || dir == Both {
		for cur := s.nodes[node].firstIn; cur != None; cur = s.rels[cur].dstNext {
			visit(cur)
		}
	}
}

// SetPropNode sets a property on a node, rewriting an existing key in place
// or appending a new one, per SPEC_FULL.md §13.3.
func (s *Store) SetPropNode(id uint64, key catalog.ID, v values.Value) error {
	if !s.NodeExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "node %d not found", id)
	}
	s.setPropOnChain(id, true, key, v)
	return nil
}

// SetPropRel sets a property on a relationship.
func (s *Store) SetPropRel(id uint64, key catalog.ID, v values.Value) error {
	if !s.RelExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "relationship %d not found", id)
	}
	s.setPropOnChain(id, false, key, v)
	return nil
}

func (s *Store) setPropOnChain(entity uint64, isNode bool, key catalog.ID, v values.Value) {
	head := s.firstPropOf(entity, isNode)
	cur := head
	for cur != None {
		p := &s.props[cur]
		if p.key == key {
			p.value = v
			return
		}
		cur = p.nextProp
	}
	newID := s.allocPropRecord(key, v)
	if head == None {
		s.setFirstPropOf(entity, isNode, newID)
		return
	}
	cur = head
	for s.props[cur].nextProp != None {
		cur = s.props[cur].nextProp
	}
	s.props[cur].nextProp = newID
}

func (s *Store) allocPropRecord(key catalog.ID, v values.Value) uint64 {
	rec := propRecord{inUse: true, key: key, value: v, nextProp: None}
	if n := len(s.propFree); n > 0 {
		id := s.propFree[n-1]
		s.propFree = s.propFree[:n-1]
		s.props[id] = rec
		return id
	}
	id := uint64(len(s.props))
	s.props = append(s.props, rec)
	return id
}

func (s *Store) firstPropOf(entity uint64, isNode bool) uint64 {
	if isNode {
		return s.nodes[entity].firstProp
	}
	return s.rels[entity].firstProp
}

func (s *Store) setFirstPropOf(entity uint64, isNode bool, propID uint64) {
	if isNode {
		s.nodes[entity].firstProp = propID
	} else {
		s.rels[entity].firstProp = propID
	}
}

// RemovePropNode removes a property from a node, splicing it out of the chain.
func (s *Store) RemovePropNode(id uint64, key catalog.ID) error {
	if !s.NodeExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "node %d not found", id)
	}
	s.removePropOnChain(id, true, key)
	return nil
}

// RemovePropRel removes a property from a relationship.
func (s *Store) RemovePropRel(id uint64, key catalog.ID) error {
	if !s.RelExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "relationship %d not found", id)
	}
	s.removePropOnChain(id, false, key)
	return nil
}

func (s *Store) removePropOnChain(entity uint64, isNode bool, key catalog.ID) {
	head := s.firstPropOf(entity, isNode)
	var prev uint64 = None
	cur := head
	for cur != None {
		p := s.props[cur]
		if p.key == key {
			if prev == None {
				s.setFirstPropOf(entity, isNode, p.nextProp)
			} else {
				s.props[prev].nextProp = p.nextProp
			}
			s.props[cur] = propRecord{}
			s.propFree = append(s.propFree, cur)
			return
		}
		prev = cur
		cur = p.nextProp
	}
}

// DeleteRel unlinks a relationship from both endpoint chains and frees it
// along with its property chain.
func (s *Store) DeleteRel(id uint64) error {
	if !s.RelExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "relationship %d not found", id)
	}
	r := s.rels[id]

	if r.srcPrev != None {
		s.rels[r.srcPrev].srcNext = r.srcNext
	} else {
		s.nodes[r.src].firstOut = r.srcNext
	}
	if r.srcNext != None {
		s.rels[r.srcNext].srcPrev = r.srcPrev
	}

	if r.dstPrev != None {
		s.rels[r.dstPrev].dstNext = r.dstNext
	} else {
		s.nodes[r.dst].firstIn = r.dstNext
	}
	if r.dstNext != None {
		s.rels[r.dstNext].dstPrev = r.dstPrev
	}

	s.freePropChain(r.firstProp)
	s.typeCounts[r.typeID]--
	s.liveRelCount--
	s.rels[id] = relRecord{}
	s.relFree = append(s.relFree, id)
	return nil
}

func (s *Store) freePropChain(head uint64) {
	cur := head
	for cur != None {
		next := s.props[cur].nextProp
		s.props[cur] = propRecord{}
		s.propFree = append(s.propFree, cur)
		cur = next
	}
}

// Degree returns the number of distinct relationships incident to node.
func (s *Store) Degree(node uint64) int {
	n := 0
	s.IterRelsOf(node, Both, nil, func(uint64) { n++ })
	return n
}

// DeleteNode frees a node. If detach is false and the node has any incident
// relationships, it fails with CONSTRAINT_VIOLATION per spec §4.2.
func (s *Store) DeleteNode(id uint64, detach bool) error {
	if !s.NodeExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "node %d not found", id)
	}
	if s.Degree(id) > 0 {
		if !detach {
			return nexuserr.New(nexuserr.CodeConstraintViolation, "node %d still has relationships; use DETACH DELETE", id)
		}
		var toDelete []uint64
		s.IterRelsOf(id, Both, nil, func(relID uint64) { toDelete = append(toDelete, relID) })
		for _, relID := range toDelete {
			if s.RelExists(relID) {
				_ = s.DeleteRel(relID)
			}
		}
	}
	rec := s.nodes[id]
	for _, l := range rec.labels {
		s.labelCounts[l]--
	}
	s.freePropChain(rec.firstProp)
	s.liveNodeCount--
	s.nodes[id] = nodeRecord{}
	s.nodeFree = append(s.nodeFree, id)
	return nil
}

// AddLabel attaches a label to a node if not already present.
func (s *Store) AddLabel(id uint64, label catalog.ID) error {
	if !s.NodeExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "node %d not found", id)
	}
	rec := &s.nodes[id]
	for _, l := range rec.labels {
		if l == label {
			return nil
		}
	}
	rec.labels = sortedLabels(append(rec.labels, label))
	s.labelCounts[label]++
	return nil
}

// RemoveLabel detaches a label from a node if present.
func (s *Store) RemoveLabel(id uint64, label catalog.ID) error {
	if !s.NodeExists(id) {
		return nexuserr.New(nexuserr.CodeNotFound, "node %d not found", id)
	}
	rec := &s.nodes[id]
	for i, l := range rec.labels {
		if l == label {
			rec.labels = append(rec.labels[:i], rec.labels[i+1:]...)
			s.labelCounts[label]--
			return nil
		}
	}
	return nil
}

// AllNodeIDs enumerates live node ids in ascending id order (a reused id
// keeps its position), the order Scan relies on per spec §4.5.
func (s *Store) AllNodeIDs() []uint64 {
	out := make([]uint64, 0, s.liveNodeCount)
	for i := range s.nodes {
		if s.nodes[i].inUse {
			out = append(out, uint64(i))
		}
	}
	return out
}

// NodeCount backs stats() per spec §6.
func (s *Store) NodeCount() int { return s.liveNodeCount }

// RelationshipCount backs stats() per spec §6.
func (s *Store) RelationshipCount() int { return s.liveRelCount }

// HasLabel reports whether a node has a given label, for Scan's inline filter.
func (s *Store) HasLabel(id uint64, label catalog.ID) bool {
	for _, l := range s.nodes[id].labels {
		if l == label {
			return true
		}
	}
	return false
}

// LabelCount returns the number of live nodes carrying label.
func (s *Store) LabelCount(label catalog.ID) int { return s.labelCounts[label] }

// RelTypeCount returns the number of live relationships of the given type.
func (s *Store) RelTypeCount(typeID catalog.ID) int { return s.typeCounts[typeID] }
