package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindmap-backend/internal/formula"
	"mindmap-backend/internal/host"
	"mindmap-backend/internal/host/sqlite"
	"mindmap-backend/internal/observability"
	"mindmap-backend/internal/render"
	"mindmap-backend/internal/service/mapview"
	"mindmap-backend/internal/view"
	"mindmap-backend/pkg/auth"
)

const schemaYAML = `
tables:
  - name: tasks
    min_role_write: 4
    fields:
      - {name: id, type: Integer, primary_key: true}
      - {name: name, type: String}
      - {name: parent, type: Key, reftable: tasks}
`

const viewsYAML = `
views:
  - name: Tasks
    table: tasks
    title_field: name
    parent_field: parent
    edit_view: Edit task
`

type testServer struct {
	router    *chi.Mux
	store     *sqlite.Store
	generator *auth.JWTGenerator
	assetDir  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	catalog, err := host.ParseCatalog([]byte(schemaYAML))
	require.NoError(t, err)
	views, err := view.ParseViews([]byte(viewsYAML))
	require.NoError(t, err)
	registry, err := view.NewRegistry(views, logger)
	require.NoError(t, err)
	eval, err := formula.NewEvaluator(formula.Context{})
	require.NoError(t, err)

	db, err := sqlite.OpenDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := sqlite.NewStore(db, catalog, eval)
	require.NoError(t, store.Migrate(ctx))

	jwtCfg := auth.JWTConfig{SecretKey: "secret", Issuer: "mindmap"}
	validator, err := auth.NewJWTValidator(jwtCfg)
	require.NoError(t, err)
	generator, err := auth.NewJWTGenerator(jwtCfg, time.Hour)
	require.NoError(t, err)

	assetDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assetDir, "MindElixir.js"), []byte("// bundle"), 0o644))

	metrics := observability.NewCollector("mindmap")
	svc := mapview.NewService(registry, catalog, store, eval, metrics, logger)
	router := SetupRouter(RouterConfig{
		Views:        NewViewHandler(svc, render.NewEmitter("0.3.0"), logger),
		Health:       NewHealthHandler(store, "0.3.0", logger),
		Metrics:      metrics.Handler(),
		HTTPRecorder: metrics,
		Validator:    validator,
		PublicRoleID: 10,
		CORSOrigins:  []string{"https://app.example.com"},
		AssetDir:     assetDir,
		AssetVersion: "0.3.0",
		Logger:       logger,
	})

	return &testServer{router: router, store: store, generator: generator, assetDir: assetDir}
}

func (s *testServer) seed(t *testing.T, rows ...host.Row) {
	t.Helper()
	tbl := tasksTable(t, s)
	for _, row := range rows {
		_, err := s.store.InsertRow(context.Background(), tbl, row, &host.User{ID: "admin", RoleID: 1})
		require.NoError(t, err)
	}
}

func tasksTable(t *testing.T, s *testServer) *host.Table {
	t.Helper()
	catalog, err := host.ParseCatalog([]byte(schemaYAML))
	require.NoError(t, err)
	tbl, err := catalog.FindTable("tasks")
	require.NoError(t, err)
	return tbl
}

func (s *testServer) token(t *testing.T, role int) string {
	t.Helper()
	tok, err := s.generator.GenerateToken("user-1", "user@example.com", role)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestRender(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, host.Row{"name": "Root"}, host.Row{"name": "Child", "parent": int64(1)})

	w := s.do("GET", "/view/Tasks", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "/plugins/public/mind-map@0.3.0/MindElixir.js")
	assert.Contains(t, w.Body.String(), `"topic":"Child"`)
	assert.Contains(t, w.Body.String(), `"editable":false`)

	w = s.do("GET", "/view/Tasks", "", s.token(t, 4))
	assert.Contains(t, w.Body.String(), `"editable":true`)
}

func TestData(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, host.Row{"name": "Root"}, host.Row{"name": "Child", "parent": int64(1)})

	w := s.do("GET", "/view/Tasks/data", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		NodeData struct {
			ID        string `json:"id"`
			Topic     string `json:"topic"`
			HyperLink string `json:"hyperLink"`
			Children  []struct {
				Topic string `json:"topic"`
			} `json:"children"`
		} `json:"nodeData"`
		LinkData map[string]any `json:"linkData"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1", body.NodeData.ID)
	assert.Equal(t, "Root", body.NodeData.Topic)
	assert.Equal(t, "/view/Edit%20task?id=1", body.NodeData.HyperLink)
	require.Len(t, body.NodeData.Children, 1)
	assert.Equal(t, "Child", body.NodeData.Children[0].Topic)
	assert.NotNil(t, body.LinkData)
}

func TestUnknownView(t *testing.T) {
	s := newTestServer(t)
	w := s.do("GET", "/view/Nope/data", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"view not found"}`, w.Body.String())
}

func TestStateFieldsAndConfigForm(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/view/Tasks/state-fields", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"name"`)
	assert.NotContains(t, w.Body.String(), `"name":"id"`)

	w = s.do("GET", "/view/Tasks/config-form", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Views and fields")
}

func TestMutations_NotAuthorized(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, host.Row{"name": "Root"})

	for _, tc := range []struct{ path, body string }{
		{"/view/Tasks/rename", `{"id":"1","topic":"X"}`},
		{"/view/Tasks/move", `{"id":"1","parent_id":"root"}`},
		{"/view/Tasks/delete", `{"id":"1"}`},
		{"/view/Tasks/create", `{"topic":"New","parent_id":"root"}`},
	} {
		for _, token := range []string{"", s.token(t, 8)} {
			w := s.do("POST", tc.path, tc.body, token)
			assert.Equal(t, http.StatusForbidden, w.Code, tc.path)
			assert.JSONEq(t, `{"error":"not authorized"}`, w.Body.String(), tc.path)
		}
	}

	row, err := s.store.GetRow(context.Background(), tasksTable(t, s), host.Where{"id": int64(1)})
	require.NoError(t, err)
	assert.Equal(t, "Root", row["name"])
}

func TestMutations_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, host.Row{"name": "Root"})
	token := s.token(t, 4)

	w := s.do("POST", "/view/Tasks/create", `{"topic":"New","parent_id":"1"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":"ok","id":2,"topic":"New","hyperLink":"/view/Edit%20task?id=2"}`, w.Body.String())

	w = s.do("POST", "/view/Tasks/rename", `{"id":"2","topic":"Renamed"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":"ok"}`, w.Body.String())

	w = s.do("POST", "/view/Tasks/move", `{"id":"2","parent_id":"root"}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	row, err := s.store.GetRow(context.Background(), tasksTable(t, s), host.Where{"id": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", row["name"])
	assert.Nil(t, row["parent"])

	w = s.do("POST", "/view/Tasks/delete", `{"id":"2"}`, token)
	require.Equal(t, http.StatusOK, w.Code)
	_, err = s.store.GetRow(context.Background(), tasksTable(t, s), host.Where{"id": int64(2)})
	assert.True(t, errors.Is(err, host.ErrRowNotFound))
}

func TestMutations_NumericKeys(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, host.Row{"name": "Root"}, host.Row{"name": "Child", "parent": int64(1)})
	token := s.token(t, 4)

	w := s.do("POST", "/view/Tasks/create", `{"topic":"New","parent_id":1}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var created struct {
		ID json.RawMessage `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "3", string(created.ID))

	// The id create returned is accepted back as-is.
	w = s.do("POST", "/view/Tasks/rename", `{"id":`+string(created.ID)+`,"topic":"X"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do("POST", "/view/Tasks/move", `{"id":2,"parent_id":"root"}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do("POST", "/view/Tasks/move", `{"id":3,"parent_id":null}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tbl := tasksTable(t, s)
	row, err := s.store.GetRow(context.Background(), tbl, host.Where{"id": int64(2)})
	require.NoError(t, err)
	assert.Nil(t, row["parent"])

	row, err = s.store.GetRow(context.Background(), tbl, host.Where{"id": int64(3)})
	require.NoError(t, err)
	assert.Equal(t, "X", row["name"])
	assert.EqualValues(t, 1, row["parent"], "a null parent_id leaves the node in place")

	w = s.do("POST", "/view/Tasks/delete", `{"id":2}`, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	_, err = s.store.GetRow(context.Background(), tbl, host.Where{"id": int64(2)})
	assert.True(t, errors.Is(err, host.ErrRowNotFound))

	w = s.do("POST", "/view/Tasks/rename", `{"id":true,"topic":"X"}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMutations_CreateUnderRealRoot(t *testing.T) {
	s := newTestServer(t)
	s.seed(t, host.Row{"name": "Root"})
	token := s.token(t, 4)

	w := s.do("POST", "/view/Tasks/create", `{"topic":"New","parent_id":"1"}`, token)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("GET", "/view/Tasks/data", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		NodeData struct {
			ID       string `json:"id"`
			Root     bool   `json:"root"`
			Children []struct {
				ID    string `json:"id"`
				Topic string `json:"topic"`
			} `json:"children"`
		} `json:"nodeData"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1", body.NodeData.ID, "the real root stays on top")
	assert.True(t, body.NodeData.Root)
	require.Len(t, body.NodeData.Children, 1)
	assert.Equal(t, "2", body.NodeData.Children[0].ID)
}

func TestMutations_BadRequests(t *testing.T) {
	s := newTestServer(t)
	token := s.token(t, 4)

	w := s.do("POST", "/view/Tasks/rename", `{"id":`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request body"}`, w.Body.String())

	w = s.do("POST", "/view/Tasks/delete", `{}`, token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"id is required"}`, w.Body.String())

	w = s.do("POST", "/view/Tasks/rename", `{"id":"9","topic":"X"}`, token)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do("POST", "/view/Tasks/rename", `{"id":"1","topic":"X"}`, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealthReadyAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","version":"0.3.0"}`, w.Body.String())

	w = s.do("GET", "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.do("GET", "/view/Tasks/data", "", "")
	w = s.do("GET", "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `mindmap_renders_total{view="Tasks"} 1`)
	assert.Contains(t, w.Body.String(), `route="/view/{viewName}/data"`)
}

func TestReady_StoreDown(t *testing.T) {
	h := NewHealthHandler(pingFunc(func(context.Context) error { return errors.New("closed") }), "x", zap.NewNop())
	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestOpenAPIAndAssets(t *testing.T) {
	s := newTestServer(t)

	w := s.do("GET", "/api/openapi", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi:")

	w = s.do("GET", "/plugins/public/mind-map@0.3.0/MindElixir.js", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "// bundle", w.Body.String())
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest("OPTIONS", "/view/Tasks/rename", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
