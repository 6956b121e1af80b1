// Package boltsnap persists a catalog/store pair to a bbolt file, the way
// db/bolt/bolt.go wraps bbolt for the rest of the corpus: one bucket per
// logical collection, JSON-encoded values, opened with a short dial-style
// timeout. Persistence is whole-snapshot, not a WAL (spec §1 explicitly
// excludes transactional durability from the core); Save/Load round-trip a
// consistent point-in-time view taken under the store's own lock.
package boltsnap

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/blake2b"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

const (
	bucketMeta     = "meta"
	bucketNodes    = "nodes"
	bucketRels     = "rels"
	bucketLabels   = "catalog_labels"
	bucketRelTypes = "catalog_reltypes"
	bucketPropKeys = "catalog_propkeys"

	keyChecksum  = "checksum"
	keyNodeSlots = "node_slots"
	keyRelSlots  = "rel_slots"
)

// nodeRecord/relRecord are the on-disk JSON shapes for one snapshot entry;
// properties are wire-encoded with values.Encode so the compact-serialization
// contract in spec §9 is exercised on every save, not just in unit tests.
type nodeRecord struct {
	ID     uint64            `json:"id"`
	Labels []string          `json:"labels"`
	Props  map[string][]byte `json:"props"`
}

type relRecord struct {
	ID    uint64            `json:"id"`
	Type  string            `json:"type"`
	Src   uint64            `json:"src"`
	Dst   uint64            `json:"dst"`
	Props map[string][]byte `json:"props"`
}

// Save writes cat and st's current contents to path, overwriting any
// existing file. A blake2b-256 checksum of the encoded node+relationship
// payload is stored alongside it so Load can detect truncation/corruption.
func Save(path string, cat *catalog.Catalog, st *store.Store) error {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("boltsnap: open %s: %w", path, err)
	}
	defer db.Close()

	snap := st.Snapshot()
	nodePayload, err := encodeNodes(cat, snap.Nodes)
	if err != nil {
		return err
	}
	relPayload, err := encodeRels(cat, snap.Rels)
	if err != nil {
		return err
	}
	sum := blake2b.Sum256(append(nodePayload, relPayload...))

	return db.Update(func(tx *bolt.Tx) error {
		buckets := []string{bucketMeta, bucketNodes, bucketRels, bucketLabels, bucketRelTypes, bucketPropKeys}
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("boltsnap: create bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket([]byte(bucketMeta))
		if err := meta.Put([]byte(keyChecksum), sum[:]); err != nil {
			return err
		}
		if err := putInt(meta, keyNodeSlots, snap.NodeSlots); err != nil {
			return err
		}
		if err := putInt(meta, keyRelSlots, snap.RelSlots); err != nil {
			return err
		}

		nb := tx.Bucket([]byte(bucketNodes))
		_ = nb.ForEach(func(k, _ []byte) error { return nb.Delete(k) })
		if err := putJSONList(nb, nodePayload); err != nil {
			return err
		}

		rb := tx.Bucket([]byte(bucketRels))
		_ = rb.ForEach(func(k, _ []byte) error { return rb.Delete(k) })
		if err := putJSONList(rb, relPayload); err != nil {
			return err
		}

		return writeCatalogBuckets(tx, cat)
	})
}

// Load reads a snapshot previously written by Save, returning a fresh
// catalog and store whose contents and entity ids match what was saved.
func Load(path string) (*catalog.Catalog, *store.Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("boltsnap: open %s: %w", path, err)
	}
	defer db.Close()

	cat := catalog.New()
	var snap store.Snapshot

	err = db.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(bucketMeta))
		if meta == nil {
			return fmt.Errorf("boltsnap: %s has no snapshot data", path)
		}
		nodeSlots, err := getInt(meta, keyNodeSlots)
		if err != nil {
			return err
		}
		relSlots, err := getInt(meta, keyRelSlots)
		if err != nil {
			return err
		}
		snap.NodeSlots = nodeSlots
		snap.RelSlots = relSlots

		if err := readCatalogBuckets(tx, cat); err != nil {
			return err
		}

		nodes, err := decodeNodes(tx.Bucket([]byte(bucketNodes)), cat)
		if err != nil {
			return err
		}
		rels, err := decodeRels(tx.Bucket([]byte(bucketRels)), cat)
		if err != nil {
			return err
		}
		snap.Nodes = nodes
		snap.Rels = rels

		storedSum := meta.Get([]byte(keyChecksum))
		nodePayload, err := encodeNodes(cat, nodes)
		if err != nil {
			return err
		}
		relPayload, err := encodeRels(cat, rels)
		if err != nil {
			return err
		}
		sum := blake2b.Sum256(append(nodePayload, relPayload...))
		if string(storedSum) != string(sum[:]) {
			return fmt.Errorf("boltsnap: checksum mismatch reading %s, data may be corrupt", path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return cat, store.Restore(snap), nil
}

func encodeNodes(cat *catalog.Catalog, nodes []store.NodeSnapshot) ([]byte, error) {
	recs := make([]nodeRecord, 0, len(nodes))
	for _, n := range nodes {
		labels := make([]string, 0, len(n.Labels))
		for _, l := range n.Labels {
			name, err := cat.LabelName(l)
			if err != nil {
				return nil, err
			}
			labels = append(labels, name)
		}
		props, err := encodeProps(cat, n.Props)
		if err != nil {
			return nil, err
		}
		recs = append(recs, nodeRecord{ID: n.ID, Labels: labels, Props: props})
	}
	return json.Marshal(recs)
}

func encodeRels(cat *catalog.Catalog, rels []store.RelSnapshot) ([]byte, error) {
	recs := make([]relRecord, 0, len(rels))
	for _, r := range rels {
		typeName, err := cat.RelTypeName(r.Type)
		if err != nil {
			return nil, err
		}
		props, err := encodeProps(cat, r.Props)
		if err != nil {
			return nil, err
		}
		recs = append(recs, relRecord{ID: r.ID, Type: typeName, Src: r.Src, Dst: r.Dst, Props: props})
	}
	return json.Marshal(recs)
}

func encodeProps(cat *catalog.Catalog, props []store.PropInit) (map[string][]byte, error) {
	out := make(map[string][]byte, len(props))
	for _, p := range props {
		name, err := cat.PropKeyName(p.Key)
		if err != nil {
			return nil, err
		}
		data, err := values.Encode(p.Value)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

func decodeNodes(bucket *bolt.Bucket, cat *catalog.Catalog) ([]store.NodeSnapshot, error) {
	var recs []nodeRecord
	if err := readJSONList(bucket, &recs); err != nil {
		return nil, err
	}
	out := make([]store.NodeSnapshot, 0, len(recs))
	for _, r := range recs {
		labels := make([]catalog.ID, 0, len(r.Labels))
		for _, name := range r.Labels {
			labelID, err := cat.InternLabel(name)
			if err != nil {
				return nil, err
			}
			labels = append(labels, labelID)
		}
		props, err := decodeProps(cat, r.Props)
		if err != nil {
			return nil, err
		}
		out = append(out, store.NodeSnapshot{ID: r.ID, Labels: labels, Props: props})
	}
	return out, nil
}

func decodeRels(bucket *bolt.Bucket, cat *catalog.Catalog) ([]store.RelSnapshot, error) {
	var recs []relRecord
	if err := readJSONList(bucket, &recs); err != nil {
		return nil, err
	}
	out := make([]store.RelSnapshot, 0, len(recs))
	for _, r := range recs {
		typeID, err := cat.InternRelType(r.Type)
		if err != nil {
			return nil, err
		}
		props, err := decodeProps(cat, r.Props)
		if err != nil {
			return nil, err
		}
		out = append(out, store.RelSnapshot{ID: r.ID, Type: typeID, Src: r.Src, Dst: r.Dst, Props: props})
	}
	return out, nil
}

func decodeProps(cat *catalog.Catalog, props map[string][]byte) ([]store.PropInit, error) {
	out := make([]store.PropInit, 0, len(props))
	for name, data := range props {
		v, err := values.Decode(data)
		if err != nil {
			return nil, err
		}
		keyID, err := cat.InternPropKey(name)
		if err != nil {
			return nil, err
		}
		out = append(out, store.PropInit{Key: keyID, Value: v})
	}
	return out, nil
}

// putJSONList stores a JSON array blob under a single fixed key, matching
// db/bolt/bolt.go's PutJSON helper's one-value-per-key shape but used here
// for one bulk collection per snapshot rather than per-entity keys, since a
// snapshot is always read back as a whole.
func putJSONList(bucket *bolt.Bucket, data []byte) error {
	return bucket.Put([]byte("all"), data)
}

func readJSONList(bucket *bolt.Bucket, target interface{}) error {
	if bucket == nil {
		return nil
	}
	data := bucket.Get([]byte("all"))
	if data == nil {
		return nil
	}
	return json.Unmarshal(data, target)
}

func writeCatalogBuckets(tx *bolt.Tx, cat *catalog.Catalog) error {
	snap := cat.Snapshot()
	for _, pair := range []struct {
		bucket string
		names  []string
	}{
		{bucketLabels, snap.Labels},
		{bucketRelTypes, snap.RelTypes},
		{bucketPropKeys, snap.PropertyKeys},
	} {
		data, err := json.Marshal(pair.names)
		if err != nil {
			return err
		}
		if err := tx.Bucket([]byte(pair.bucket)).Put([]byte("all"), data); err != nil {
			return err
		}
	}
	return nil
}

func readCatalogBuckets(tx *bolt.Tx, cat *catalog.Catalog) error {
	for _, name := range []string{bucketLabels, bucketRelTypes, bucketPropKeys} {
		var names []string
		if err := readJSONList(tx.Bucket([]byte(name)), &names); err != nil {
			return err
		}
		for _, n := range names {
			var err error
			switch name {
			case bucketLabels:
				_, err = cat.InternLabel(n)
			case bucketRelTypes:
				_, err = cat.InternRelType(n)
			case bucketPropKeys:
				_, err = cat.InternPropKey(n)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func putInt(bucket *bolt.Bucket, key string, v int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(key), data)
}

func getInt(bucket *bolt.Bucket, key string) (int, error) {
	data := bucket.Get([]byte(key))
	if data == nil {
		return 0, nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, err
	}
	return v, nil
}
