// Package fixture loads YAML-described seed graphs for parser/executor
// tests, the way network's ZTI config types use yaml.v3 struct tags against
// plain Go structs rather than a generic map[string]interface{} decode.
package fixture

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

// NodeSpec describes one seed node. Alias is local to the fixture file and
// is how RelSpec.From/To reference it; it is never written to the graph.
type NodeSpec struct {
	Alias      string                 `yaml:"alias"`
	Labels     []string               `yaml:"labels"`
	Properties map[string]interface{} `yaml:"properties"`
}

// RelSpec describes one seed relationship between two node aliases.
type RelSpec struct {
	Type       string                 `yaml:"type"`
	From       string                 `yaml:"from"`
	To         string                 `yaml:"to"`
	Properties map[string]interface{} `yaml:"properties"`
}

// Graph is the top-level shape of a testdata/*.yaml seed file.
type Graph struct {
	Nodes []NodeSpec `yaml:"nodes"`
	Rels  []RelSpec  `yaml:"rels"`
}

// Loaded is a populated store/catalog pair plus the alias->id mapping tests
// use to assert against specific seeded nodes.
type Loaded struct {
	Catalog *catalog.Catalog
	Store   *store.Store
	NodeIDs map[string]uint64
}

// Load reads a YAML seed graph from path and populates a fresh catalog and
// store with it.
func Load(path string) (*Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, err
	}

	cat := catalog.New()
	st := store.New()
	ids := make(map[string]uint64, len(g.Nodes))

	for _, n := range g.Nodes {
		labelIDs := make([]catalog.ID, 0, len(n.Labels))
		for _, l := range n.Labels {
			labelID, err := cat.InternLabel(l)
			if err != nil {
				return nil, err
			}
			labelIDs = append(labelIDs, labelID)
		}
		props, err := toPropInit(cat, n.Properties)
		if err != nil {
			return nil, err
		}
		ids[n.Alias] = st.AllocNode(labelIDs, props)
	}

	for _, r := range g.Rels {
		props, err := toPropInit(cat, r.Properties)
		if err != nil {
			return nil, err
		}
		typeID, err := cat.InternRelType(r.Type)
		if err != nil {
			return nil, err
		}
		st.AllocRel(typeID, ids[r.From], ids[r.To], props)
	}

	return &Loaded{Catalog: cat, Store: st, NodeIDs: ids}, nil
}

func toPropInit(cat *catalog.Catalog, props map[string]interface{}) ([]store.PropInit, error) {
	out := make([]store.PropInit, 0, len(props))
	for k, v := range props {
		val, err := toValue(v)
		if err != nil {
			return nil, err
		}
		keyID, err := cat.InternPropKey(k)
		if err != nil {
			return nil, err
		}
		out = append(out, store.PropInit{Key: keyID, Value: val})
	}
	return out, nil
}

// toValue converts a YAML-decoded scalar/slice/map into a values.Value.
// yaml.v3 decodes into the same Go primitive set as encoding/json (plus
// int, which json would give as float64) when the target is interface{}.
func toValue(v interface{}) (values.Value, error) {
	switch t := v.(type) {
	case nil:
		return values.Null, nil
	case bool:
		return values.Bool(t), nil
	case int:
		return values.Int(int64(t)), nil
	case int64:
		return values.Int(t), nil
	case float64:
		return values.Float(t), nil
	case string:
		return values.Str(t), nil
	case []interface{}:
		items := make([]values.Value, len(t))
		for i, item := range t {
			val, err := toValue(item)
			if err != nil {
				return values.Null, err
			}
			items[i] = val
		}
		return values.List(items), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		m := make(map[string]values.Value, len(t))
		for _, k := range keys {
			val, err := toValue(t[k])
			if err != nil {
				return values.Null, err
			}
			m[k] = val
		}
		return values.Map(m, keys), nil
	default:
		return values.Null, nil
	}
}
