// Package session ties query text to plan and execution, governing
// concurrency (spec §5) and result materialization (spec §6). It plays the
// role the teacher's coordinator package plays for workflow phases: a small
// state machine with phase-change logging, scaled down to a single query's
// lifecycle instead of a long-running workflow.
package session

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/cypher/parser"
	"github.com/hivellm/nexus/cypher/semantic"
	"github.com/hivellm/nexus/exec"
	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/planner"
	"github.com/hivellm/nexus/store"
	"github.com/hivellm/nexus/values"
)

// Phase is one state in a query's Idle -> Parsing -> Planning -> Executing ->
// Done/Failed lifecycle (spec §4.5).
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseParsing   Phase = "parsing"
	PhasePlanning  Phase = "planning"
	PhaseExecuting Phase = "executing"
	PhaseDone      Phase = "done"
	PhaseFailed    Phase = "failed"
)

// Session owns one graph's catalog and store and serializes query
// execution against them under the concurrency rules of spec §5: shared
// (read) lock for read-only queries, exclusive (write) lock for any query
// whose plan contains a mutating operator.
type Session struct {
	Catalog *catalog.Catalog
	Store   *store.Store
	logger  *logrus.Entry
}

// New creates a Session wrapping an existing catalog/store pair.
func New(cat *catalog.Catalog, st *store.Store) *Session {
	return &Session{
		Catalog: cat,
		Store:   st,
		logger:  logrus.NewEntry(logrus.StandardLogger()).WithField("component", "session"),
	}
}

// StatsResult is spec §6's stats() response shape, extended per SPEC_FULL.md
// §12 with the catalog's interned name lists so a caller can answer "what
// labels/relationship types/property keys exist" without a separate query.
type StatsResult struct {
	NodeCount         int      `json:"node_count"`
	RelationshipCount int      `json:"relationship_count"`
	LabelCount        int      `json:"label_count"`
	RelTypeCount      int      `json:"rel_type_count"`
	Labels            []string `json:"labels"`
	RelationshipTypes []string `json:"relationship_types"`
	PropertyKeys      []string `json:"property_keys"`
}

// Stats reports the current store/catalog sizes plus the catalog's
// interned name lists (catalog.Snapshot).
func (s *Session) Stats() StatsResult {
	s.Store.RLock()
	defer s.Store.RUnlock()
	snap := s.Catalog.Snapshot()
	return StatsResult{
		NodeCount:         s.Store.NodeCount(),
		RelationshipCount: s.Store.RelationshipCount(),
		LabelCount:        s.Catalog.LabelCount(),
		RelTypeCount:      s.Catalog.RelTypeCount(),
		Labels:            snap.Labels,
		RelationshipTypes: snap.RelTypes,
		PropertyKeys:      snap.PropertyKeys,
	}
}

// ExecStats mirrors exec.Stats under the snake_case naming spec §6's
// QueryResult.stats uses.
type ExecStats struct {
	NodesCreated         int `json:"nodes_created"`
	RelationshipsCreated int `json:"relationships_created"`
	PropertiesSet        int `json:"properties_set"`
	NodesDeleted         int `json:"nodes_deleted"`
	RelationshipsDeleted int `json:"relationships_deleted"`
}

// QueryResult is the full execute() response spec §6 defines.
type QueryResult struct {
	Columns         []string         `json:"columns"`
	Rows            [][]values.Value `json:"rows"`
	Stats           ExecStats        `json:"stats"`
	ExecutionTimeMs float64          `json:"execution_time_ms"`
}

// Execute runs one Cypher query end to end: parse, semantic check, plan,
// compile, run. It acquires the store's shared lock for a read-only plan and
// the exclusive lock for a plan containing any write operator, released via
// defer regardless of success or failure, and tracks the Idle -> Parsing ->
// Planning -> Executing -> Done/Failed phases via logged transitions (no
// separate phase-manager type is needed here: a single query has no
// pause/resume/cancel sub-states the way a long-running workflow does).
func (s *Session) Execute(query string, params map[string]values.Value) (*QueryResult, error) {
	queryID := uuid.NewString()
	log := s.logger.WithField("query_id", queryID)
	start := time.Now()

	if rest, ok := stripExplain(query); ok {
		return s.explain(log, rest, start)
	}

	s.transition(log, PhaseParsing)
	q, err := parser.Parse(query)
	if err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	if err := semantic.Analyze(q); err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	s.transition(log, PhasePlanning)
	plan, err := planner.Build(q)
	if err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	op, err := exec.Compile(plan)
	if err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	s.transition(log, PhaseExecuting)
	if isWritePlan(plan) {
		s.Store.Lock()
		defer s.Store.Unlock()
	} else {
		s.Store.RLock()
		defer s.Store.RUnlock()
	}

	rt := exec.NewRuntime(s.Catalog, s.Store, params)
	rows, err := exec.Run(rt, op)
	if err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	columns, hasReturn := outputColumns(plan)
	if hasReturn && columns == nil {
		// RETURN * — the planner leaves Produce.Columns nil and passes every
		// bound row through unchanged; recover the column set from the rows
		// actually produced.
		columns = rowKeyUnion(rows)
	}
	if !hasReturn {
		rows = nil
	}
	result := &QueryResult{
		Columns: columns,
		Rows:    make([][]values.Value, 0, len(rows)),
		Stats: ExecStats{
			NodesCreated:         rt.Stats.NodesCreated,
			RelationshipsCreated: rt.Stats.RelationshipsCreated,
			PropertiesSet:        rt.Stats.PropertiesSet,
			NodesDeleted:         rt.Stats.NodesDeleted,
			RelationshipsDeleted: rt.Stats.RelationshipsDeleted,
		},
		ExecutionTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
	}
	for _, row := range rows {
		tuple := make([]values.Value, len(columns))
		for i, col := range columns {
			tuple[i] = row[col]
		}
		result.Rows = append(result.Rows, tuple)
	}

	s.transition(log, PhaseDone)
	return result, nil
}

func (s *Session) transition(log *logrus.Entry, phase Phase) {
	log.WithField("phase", phase).Debug("session phase transition")
}

// stripExplain reports whether query begins with the EXPLAIN keyword
// (case-insensitive) and, if so, returns the remaining query text.
func stripExplain(query string) (string, bool) {
	trimmed := strings.TrimSpace(query)
	const kw = "explain"
	if len(trimmed) < len(kw) || !strings.EqualFold(trimmed[:len(kw)], kw) {
		return "", false
	}
	rest := trimmed[len(kw):]
	if rest != "" && !isSpace(rest[0]) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// explain parses and plans query without compiling or running it, returning
// the rendered operator tree as a single "plan" column (spec §12's EXPLAIN
// supplement: read-only introspection of the planner).
func (s *Session) explain(log *logrus.Entry, query string, start time.Time) (*QueryResult, error) {
	s.transition(log, PhaseParsing)
	q, err := parser.Parse(query)
	if err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	if err := semantic.Analyze(q); err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	s.transition(log, PhasePlanning)
	plan, err := planner.Build(q)
	if err != nil {
		s.transition(log, PhaseFailed)
		return nil, err
	}

	s.transition(log, PhaseDone)
	return &QueryResult{
		Columns:         []string{"plan"},
		Rows:            [][]values.Value{{values.Str(planner.Explain(plan))}},
		ExecutionTimeMs: float64(time.Since(start)) / float64(time.Millisecond),
	}, nil
}

// outputColumns reports whether the plan has a terminal Produce (i.e. the
// query had a RETURN clause) and, if so, its column list. A query with no
// RETURN (a bare CREATE/MERGE/SET/DELETE) reports hasReturn=false, telling
// Execute to report zero columns and zero rows regardless of what the
// underlying operators happened to bind internally.
func outputColumns(op planner.Op) (cols []string, hasReturn bool) {
	switch n := op.(type) {
	case nil:
		return nil, false
	case *planner.Produce:
		return n.Columns, true
	case *planner.Union:
		return outputColumns(n.Left)
	case *planner.Filter:
		return outputColumns(n.Input)
	case *planner.Project:
		return outputColumns(n.Input)
	case *planner.Distinct:
		return outputColumns(n.Input)
	case *planner.Aggregate:
		return outputColumns(n.Input)
	case *planner.Sort:
		return outputColumns(n.Input)
	case *planner.Limit:
		return outputColumns(n.Input)
	case *planner.Unwind:
		return outputColumns(n.Input)
	case *planner.Create:
		return outputColumns(n.Input)
	case *planner.Merge:
		return outputColumns(n.Input)
	case *planner.SetProperties:
		return outputColumns(n.Input)
	case *planner.Delete:
		return outputColumns(n.Input)
	case *planner.Expand:
		return outputColumns(n.Input)
	case *planner.ExpandInto:
		return outputColumns(n.Input)
	case *planner.OptionalExpand:
		return outputColumns(n.Input)
	default:
		return nil, false
	}
}

// rowKeyUnion collects the sorted union of every row's bound names, used to
// recover a column list for RETURN *.
func rowKeyUnion(rows []exec.Row) []string {
	seen := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			seen[k] = true
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// isWritePlan reports whether the plan tree contains a mutating operator
// anywhere (Create, Merge, SetProperties, Delete), which per spec §5 decides
// whether Execute takes the store's exclusive lock for the duration of the
// query instead of the shared one.
func isWritePlan(op planner.Op) bool {
	switch n := op.(type) {
	case nil:
		return false
	case *planner.Create, *planner.Merge, *planner.SetProperties, *planner.Delete:
		return true
	case *planner.Scan:
		return false
	case *planner.NodeByID:
		return false
	case *planner.Expand:
		return isWritePlan(n.Input)
	case *planner.ExpandInto:
		return isWritePlan(n.Input)
	case *planner.OptionalExpand:
		return isWritePlan(n.Input)
	case *planner.Filter:
		return isWritePlan(n.Input)
	case *planner.Project:
		return isWritePlan(n.Input)
	case *planner.Distinct:
		return isWritePlan(n.Input)
	case *planner.Aggregate:
		return isWritePlan(n.Input)
	case *planner.Sort:
		return isWritePlan(n.Input)
	case *planner.Limit:
		return isWritePlan(n.Input)
	case *planner.Unwind:
		return isWritePlan(n.Input)
	case *planner.Union:
		return isWritePlan(n.Left) || isWritePlan(n.Right)
	case *planner.Apply:
		return isWritePlan(n.Outer) || isWritePlan(n.Inner)
	case *planner.Produce:
		return isWritePlan(n.Input)
	default:
		return false
	}
}

// ErrorResponse is spec §6's error shape exposed to the HTTP collaborator.
type ErrorResponse struct {
	Code     nexuserr.Code  `json:"code"`
	Message  string         `json:"message"`
	Position *ErrorPosition `json:"position,omitempty"`
}

// ErrorPosition mirrors nexuserr.Position for JSON output.
type ErrorPosition struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// ToErrorResponse converts any error returned by Execute into the wire
// shape spec §6 defines. Errors that are not a *nexuserr.Error (should not
// happen from this engine, but the collaborator boundary must be total) are
// reported as INTERNAL_ERROR.
func ToErrorResponse(err error) ErrorResponse {
	ne, ok := err.(*nexuserr.Error)
	if !ok {
		return ErrorResponse{Code: nexuserr.CodeInternal, Message: err.Error()}
	}
	resp := ErrorResponse{Code: ne.Code, Message: ne.Message}
	if ne.Position != nil {
		resp.Position = &ErrorPosition{Line: ne.Position.Line, Col: ne.Position.Col}
	}
	return resp
}
