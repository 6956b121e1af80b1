package store

import (
	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/values"
)

// NodeSnapshot is one live node's persistable state: its exact id (so
// relationship endpoints captured elsewhere in the same Snapshot keep
// resolving after a round trip), labels, and properties.
type NodeSnapshot struct {
	ID     uint64
	Labels []catalog.ID
	Props  []PropInit
}

// RelSnapshot is one live relationship's persistable state.
type RelSnapshot struct {
	ID    uint64
	Type  catalog.ID
	Src   uint64
	Dst   uint64
	Props []PropInit
}

// Snapshot is a point-in-time, id-preserving capture of every live node and
// relationship, sufficient for Restore to rebuild an equivalent Store. Freed
// ids are not carried individually; NodeSlots/RelSlots record how many id
// slots existed in total so Restore can recreate the same holes (ids that
// must stay unallocated because some surviving relationship or a future
// query result still references neighboring ids by position).
type Snapshot struct {
	Nodes     []NodeSnapshot
	Rels      []RelSnapshot
	NodeSlots int
	RelSlots  int
}

// Snapshot captures the store's current live state. Caller-visible ids are
// preserved exactly; see Restore for how the holes left by deleted entities
// are reproduced.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{NodeSlots: len(s.nodes), RelSlots: len(s.rels)}
	for id := range s.nodes {
		if !s.nodes[id].inUse {
			continue
		}
		rec := s.nodes[id]
		ns := NodeSnapshot{ID: uint64(id), Labels: append([]catalog.ID(nil), rec.labels...)}
		s.walkProps(rec.firstProp, func(key catalog.ID, v values.Value) {
			ns.Props = append(ns.Props, PropInit{Key: key, Value: v})
		})
		snap.Nodes = append(snap.Nodes, ns)
	}
	for id := range s.rels {
		if !s.rels[id].inUse {
			continue
		}
		rec := s.rels[id]
		rs := RelSnapshot{ID: uint64(id), Type: rec.typeID, Src: rec.src, Dst: rec.dst}
		s.walkProps(rec.firstProp, func(key catalog.ID, v values.Value) {
			rs.Props = append(rs.Props, PropInit{Key: key, Value: v})
		})
		snap.Rels = append(snap.Rels, rs)
	}
	return snap
}

// Restore rebuilds a Store from a Snapshot. It replays every id slot in
// ascending order — live ones via AllocNode/AllocRel, holes via a
// placeholder record — and frees the placeholders only after every slot has
// been allocated, so ids line up exactly with the snapshot's without needing
// a lower-level "write at this id" primitive: the free list stays empty for
// the whole replay, and AllocNode/AllocRel on a Store with an empty free
// list always bump-allocate in call order.
func Restore(snap Snapshot) *Store {
	st := New()

	liveNodes := make(map[uint64]NodeSnapshot, len(snap.Nodes))
	for _, n := range snap.Nodes {
		liveNodes[n.ID] = n
	}
	var nodeHoles []uint64
	for id := uint64(0); id < uint64(snap.NodeSlots); id++ {
		if n, ok := liveNodes[id]; ok {
			st.AllocNode(n.Labels, n.Props)
		} else {
			nodeHoles = append(nodeHoles, st.AllocNode(nil, nil))
		}
	}

	liveRels := make(map[uint64]RelSnapshot, len(snap.Rels))
	for _, r := range snap.Rels {
		liveRels[r.ID] = r
	}
	var relHoles []uint64
	for id := uint64(0); id < uint64(snap.RelSlots); id++ {
		if r, ok := liveRels[id]; ok {
			st.AllocRel(r.Type, r.Src, r.Dst, r.Props)
		} else {
			relHoles = append(relHoles, st.AllocRel(0, 0, 0, nil))
		}
	}

	for _, id := range relHoles {
		_ = st.DeleteRel(id)
	}
	for _, id := range nodeHoles {
		_ = st.DeleteNode(id, false)
	}
	return st
}
