package graphlake

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphlake/graphlake-go/transport"
)

func TestQuery_ReturnsRows(t *testing.T) {
	var gotReq transport.QueryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/graphs/kg1/query", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotReq)
		fmt.Fprint(w, `{
			"columns": ["name", "assets"],
			"data": [{"name":"Acme","assets":3},{"name":"Globex","assets":1}],
			"row_count": 2,
			"execution_time_ms": 4.2
		}`)
	}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	res, err := c.Query.Query(context.Background(), "kg1",
		"MATCH (e:Entity) RETURN e.name AS name, count(*) AS assets",
		map[string]any{"limit": 10})
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "assets"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Acme", res.Rows[0]["name"])
	assert.Equal(t, 2, res.RowCount)

	assert.Contains(t, gotReq.Query, "MATCH (e:Entity)")
	assert.EqualValues(t, float64(10), gotReq.Parameters["limit"])
}

func TestQuery_RequiresText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	_, err := c.Query.Query(context.Background(), "kg1", "", nil)
	assert.Error(t, err)
}

func TestQuery_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"syntax error near RETRUN"}`, http.StatusBadRequest)
	}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	_, err := c.Query.Query(context.Background(), "kg1", "MATCH (n) RETRUN n", nil)
	var valErr *transport.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Message, "syntax error")
}

func TestGetSchema(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/graphs/kg1/schema", r.URL.Path)
		fmt.Fprint(w, `{"graph_id":"kg1","nodes":[{"label":"Entity"}],"relationships":[]}`)
	}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	schema, err := c.Query.GetSchema(context.Background(), "kg1")
	require.NoError(t, err)
	assert.Equal(t, "kg1", schema.GraphID)
	assert.JSONEq(t, `[{"label":"Entity"}]`, string(schema.Nodes))
}
