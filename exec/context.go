package exec

import (
	"sync/atomic"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

// Stats accumulates the write counters spec §6's QueryResult.stats exposes.
type Stats struct {
	NodesCreated         int
	RelationshipsCreated int
	PropertiesSet        int
	NodesDeleted         int
	RelationshipsDeleted int
}

// Runtime is the execution-wide context threaded through every operator:
// storage handles, the query's parameter map, and a cooperative cancellation
// flag checked at operator Next() boundaries (spec §5).
type Runtime struct {
	Catalog   *catalog.Catalog
	Store     *store.Store
	Params    map[string]values.Value
	Stats     *Stats
	cancelled int32
}

// NewRuntime constructs a Runtime for one query execution.
func NewRuntime(cat *catalog.Catalog, st *store.Store, params map[string]values.Value) *Runtime {
	if params == nil {
		params = map[string]values.Value{}
	}
	return &Runtime{Catalog: cat, Store: st, Params: params, Stats: &Stats{}}
}

// Cancel sets the cooperative cancellation flag. Safe to call concurrently
// with execution (e.g. from an external timeout watcher).
func (r *Runtime) Cancel() { atomic.StoreInt32(&r.cancelled, 1) }

// Cancelled reports whether Cancel has been called.
func (r *Runtime) Cancelled() bool { return atomic.LoadInt32(&r.cancelled) == 1 }

// CheckCancel returns an INTERNAL_ERROR-coded error if the runtime has been
// cancelled, for operators to call at their Next() boundary.
func (r *Runtime) CheckCancel() error {
	if r.Cancelled() {
		return nexuserr.New(nexuserr.CodeInternal, "query cancelled")
	}
	return nil
}
