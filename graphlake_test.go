package graphlake

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ValidationIsAtomic(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "a client without a base URL is never built")

	_, err = New(Config{BaseURL: "http://x", APIKey: "a", Token: "b"})
	assert.Error(t, err, "conflicting credentials are rejected up front")
}

func TestNew_BuildsEverySubClient(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost:1", APIKey: "k"})
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.Graphs)
	assert.NotNil(t, c.Operations)
	assert.NotNil(t, c.Tables)
	assert.NotNil(t, c.Materialization)
	assert.NotNil(t, c.Query)
	assert.NotNil(t, c.Transport())
}

func TestClient_SubClientsShareOneTransport(t *testing.T) {
	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `{"graphs":[],"total_count":0,"data":[],"row_count":0}`)
	}))
	defer srv.Close()
	c := newTestFacade(t, srv, nil)

	_, err := c.Graphs.ListGraphs(context.Background())
	require.NoError(t, err)
	_, err = c.Query.Query(context.Background(), "kg1", "MATCH (n) RETURN n", nil)
	require.NoError(t, err)

	require.Len(t, agents, 2)
	assert.Equal(t, agents[0], agents[1])
	assert.Contains(t, agents[0], "graphlake-go")
}

func TestLoadConfig_FileThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graphlake.yml"), []byte(
		"baseUrl: https://file.example\napiKey: file-key\ntimeout: 30s\n"), 0o644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example", cfg.BaseURL)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	t.Setenv("GRAPHLAKE_URL", "https://env.example")
	t.Setenv("GRAPHLAKE_API_KEY", "env-key")
	cfg, err = LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.BaseURL)
	assert.Equal(t, "env-key", cfg.APIKey)
}

func TestLoadConfig_MissingFileIsZeroValue(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.BaseURL)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graphlake.yaml"), []byte("baseUrl: [broken"), 0o644))
	_, err := LoadConfig(dir)
	assert.Error(t, err)
}

func TestKindOfTable(t *testing.T) {
	assert.Equal(t, TableKindNode, KindOfTable("Entity"))
	assert.Equal(t, TableKindNode, KindOfTable("entity_report"))
	assert.Equal(t, TableKindNode, KindOfTable("Transaction"))
	assert.Equal(t, TableKindRelationship, KindOfTable("ENTITY_OWNS_ASSET"))
	assert.Equal(t, TableKindRelationship, KindOfTable("RELATES_TO"))
	assert.Equal(t, TableKindNode, KindOfTable("UPPER"), "no underscore means node-like")
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 2500*time.Millisecond, millis(2500))
	assert.Equal(t, 1500*time.Microsecond, millis(1.5))
	assert.Equal(t, time.Duration(0), millis(0))
}
