// Package httpapi exposes a session.Session over HTTP as a thin collaborator
// (spec §1/§6 are explicit that no network protocol is part of the core
// engine itself). It follows statemanager.Manager's RegisterRoutes(*echo.Group)
// convention: a handful of handlers reading/writing plain JSON, with no
// framework-level middleware stack beyond what main wires in.
package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivellm/nexus/nexuserr"
	"github.com/hivellm/nexus/session"
	"github.com/hivellm/nexus/values"
)

// Server wraps a session.Session with the HTTP surface spec §6 describes:
// POST /query to execute(), GET /stats for stats().
type Server struct {
	sess *session.Session
}

// New wraps an existing session for HTTP exposure.
func New(sess *session.Session) *Server {
	return &Server{sess: sess}
}

// RegisterRoutes adds the query/stats endpoints to an Echo group.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.POST("/query", s.handleQuery)
	g.GET("/stats", s.handleStats)
}

// queryRequest is the POST /query body: a Cypher statement plus optional
// named parameters given as plain JSON values, which decodeParameters
// converts into values.Value.
type queryRequest struct {
	Query      string                 `json:"query"`
	Parameters map[string]interface{} `json:"parameters"`
}

// queryResponse mirrors session.QueryResult but serializes rows through
// session.SerializeRow so nodes/relationships/paths reach the client in
// spec §6's wire shape instead of values.Value's internal representation.
type queryResponse struct {
	Columns         []string          `json:"columns"`
	Rows            [][]interface{}   `json:"rows"`
	Stats           session.ExecStats `json:"stats"`
	ExecutionTimeMs float64           `json:"execution_time_ms"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, session.ErrorResponse{
			Code:    nexuserr.CodeParse,
			Message: "malformed request body: " + err.Error(),
		})
	}

	params, err := decodeParameters(req.Parameters)
	if err != nil {
		return c.JSON(http.StatusBadRequest, session.ErrorResponse{
			Code:    nexuserr.CodeType,
			Message: err.Error(),
		})
	}

	result, err := s.sess.Execute(req.Query, params)
	if err != nil {
		resp := session.ToErrorResponse(err)
		return c.JSON(statusForCode(resp.Code), resp)
	}

	rows := make([][]interface{}, len(result.Rows))
	for i, row := range result.Rows {
		rows[i] = session.SerializeRow(s.sess.Catalog, s.sess.Store, row)
	}
	return c.JSON(http.StatusOK, queryResponse{
		Columns:         result.Columns,
		Rows:            rows,
		Stats:           result.Stats,
		ExecutionTimeMs: result.ExecutionTimeMs,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.sess.Stats())
}

// decodeParameters converts a JSON-decoded parameter map into values.Value,
// covering the JSON primitive types encoding/json produces: string, float64
// (all JSON numbers), bool, nil, []interface{}, map[string]interface{}.
func decodeParameters(raw map[string]interface{}) (map[string]values.Value, error) {
	out := make(map[string]values.Value, len(raw))
	for k, v := range raw {
		val, err := decodeJSONValue(v)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

func decodeJSONValue(v interface{}) (values.Value, error) {
	switch t := v.(type) {
	case nil:
		return values.Null, nil
	case bool:
		return values.Bool(t), nil
	case float64:
		return values.Float(t), nil
	case string:
		return values.Str(t), nil
	case []interface{}:
		items := make([]values.Value, len(t))
		for i, item := range t {
			val, err := decodeJSONValue(item)
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
			val, err := decodeJSONValue(t[k])
			if err != nil {
				return values.Null, err
			}
			m[k] = val
		}
		return values.Map(m, keys), nil
	default:
		return values.Null, nexuserr.New(nexuserr.CodeType, "unsupported parameter value type %T", v)
	}
}

// statusForCode maps spec §7's error codes onto HTTP status codes.
func statusForCode(code nexuserr.Code) int {
	switch code {
	case nexuserr.CodeParse, nexuserr.CodeSemantic, nexuserr.CodeType, nexuserr.CodeArithmetic:
		return http.StatusBadRequest
	case nexuserr.CodeConstraintViolation:
		return http.StatusConflict
	case nexuserr.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
