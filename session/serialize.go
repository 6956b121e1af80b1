package session

import (
	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

// NodeJSON is the wire shape spec §6 defines for a node value:
// { labels, properties, id }.
type NodeJSON struct {
	Labels     []string               `json:"labels"`
	Properties map[string]interface{} `json:"properties"`
	ID         uint64                 `json:"id"`
}

// RelationshipJSON is the wire shape spec §6 defines for a relationship
// value: { type, start, end, properties, id }.
type RelationshipJSON struct {
	Type       string                 `json:"type"`
	Start      uint64                 `json:"start"`
	End        uint64                 `json:"end"`
	Properties map[string]interface{} `json:"properties"`
	ID         uint64                 `json:"id"`
}

// PathJSON is the wire shape spec §6 defines for a path value: parallel
// arrays of serialized node and relationship views in traversal order,
// rather than one flat alternating array.
type PathJSON struct {
	Nodes         []interface{} `json:"nodes"`
	Relationships []interface{} `json:"relationships"`
}

// Serialize converts one runtime Value into the plain-Go-value shape the
// HTTP collaborator marshals to JSON, re-reading nodes/relationships from
// storage (values.Node/Relationship are thin id references, spec §4.6).
// A freed id (raced past its owning query's lock) serializes as null rather
// than failing the whole response.
func Serialize(cat *catalog.Catalog, st *store.Store, v values.Value) interface{} {
	switch v.Kind {
	case values.KindNull:
		return nil
	case values.KindBool:
		b, _ := v.AsBool()
		return b
	case values.KindInt:
		i, _ := v.AsInt()
		return i
	case values.KindFloat:
		f, _ := v.AsFloat()
		return f
	case values.KindString:
		s, _ := v.AsString()
		return s
	case values.KindList:
		list, _ := v.AsList()
		out := make([]interface{}, len(list))
		for i, item := range list {
			out[i] = Serialize(cat, st, item)
		}
		return out
	case values.KindMap:
		m, order, _ := v.AsMap()
		out := make(map[string]interface{}, len(m))
		for _, k := range order {
			out[k] = Serialize(cat, st, m[k])
		}
		return out
	case values.KindNode:
		id, _ := v.AsEntityID()
		return serializeNode(cat, st, id)
	case values.KindRelationship:
		id, _ := v.AsEntityID()
		return serializeRel(cat, st, id)
	case values.KindPath:
		p, _ := v.AsPath()
		return serializePath(cat, st, p)
	default:
		return nil
	}
}

func serializeNode(cat *catalog.Catalog, st *store.Store, id uint64) interface{} {
	view, err := st.GetNode(id)
	if err != nil {
		return nil
	}
	labels := make([]string, 0, len(view.Labels))
	for _, l := range view.Labels {
		name, err := cat.LabelName(l)
		if err != nil {
			continue
		}
		labels = append(labels, name)
	}
	props := make(map[string]interface{}, len(view.PropOrder))
	for _, key := range view.PropOrder {
		name, err := cat.PropKeyName(key)
		if err != nil {
			continue
		}
		props[name] = Serialize(cat, st, view.Props[key])
	}
	return NodeJSON{Labels: labels, Properties: props, ID: view.ID}
}

func serializeRel(cat *catalog.Catalog, st *store.Store, id uint64) interface{} {
	view, err := st.GetRel(id)
	if err != nil {
		return nil
	}
	typeName, err := cat.RelTypeName(view.Type)
	if err != nil {
		typeName = ""
	}
	props := make(map[string]interface{}, len(view.PropOrder))
	for _, key := range view.PropOrder {
		name, err := cat.PropKeyName(key)
		if err != nil {
			continue
		}
		props[name] = Serialize(cat, st, view.Props[key])
	}
	return RelationshipJSON{Type: typeName, Start: view.Src, End: view.Dst, Properties: props, ID: view.ID}
}

// serializePath renders a path as spec §6's parallel-array shape: a nodes
// array and a relationships array, each in traversal order, rather than one
// flat alternating sequence.
func serializePath(cat *catalog.Catalog, st *store.Store, p *values.Path) PathJSON {
	if p == nil {
		return PathJSON{Nodes: []interface{}{}, Relationships: []interface{}{}}
	}
	nodes := make([]interface{}, len(p.Nodes))
	for i, id := range p.Nodes {
		nodes[i] = serializeNode(cat, st, id)
	}
	rels := make([]interface{}, len(p.Rels))
	for i, id := range p.Rels {
		rels[i] = serializeRel(cat, st, id)
	}
	return PathJSON{Nodes: nodes, Relationships: rels}
}

// SerializeRow serializes a full result row (the ordered tuple of
// values.Value produced for one QueryResult row) into a slice of plain Go
// values, ready for encoding/json.
func SerializeRow(cat *catalog.Catalog, st *store.Store, row []values.Value) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = Serialize(cat, st, v)
	}
	return out
}
