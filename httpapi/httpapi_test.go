package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivellm/nexus/catalog"
	"github.com/hivellm/nexus/session"
	"github.com/hivellm/nexus/store"
)

func newTestEcho() (*echo.Echo, *Server) {
	e := echo.New()
	sess := session.New(catalog.New(), store.New())
	srv := New(sess)
	srv.RegisterRoutes(e.Group(""))
	return e, srv
}

func TestHandleQueryCreateAndReturn(t *testing.T) {
	e, _ := newTestEcho()
	body := `{"query": "CREATE (n:Person {name: $name}) RETURN n.name AS name", "parameters": {"name": "Ada"}}`
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Ada"`)
	assert.Contains(t, rec.Body.String(), `"columns":["name"]`)
}

func TestHandleQueryParseErrorReturnsBadRequest(t *testing.T) {
	e, _ := newTestEcho()
	body := `{"query": "THIS IS NOT CYPHER (((", "parameters": {}}`
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"PARSE_ERROR"`)
}

func TestHandleStatsReportsCounts(t *testing.T) {
	e, srv := newTestEcho()
	_, err := srv.sess.Execute("CREATE (:Person)", nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"node_count":1`)
}
