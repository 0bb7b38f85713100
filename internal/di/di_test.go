package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mindmap-backend/internal/config"
	"mindmap-backend/internal/observability"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerAddress: ":0",
		Environment:   "test",
		StoreDriver:   config.StoreSQLite,
		SQLitePath:    filepath.Join(dir, "mindmap.db"),
		SchemaFile: writeFile(t, dir, "schema.yaml", `
tables:
  - name: tasks
    min_role_write: 4
    fields:
      - {name: id, type: Integer, primary_key: true}
      - {name: name, type: String}
      - {name: parent, type: Key, reftable: tasks}
`),
		ViewsFile: writeFile(t, dir, "views.yaml", `
views:
  - name: Tasks
    table: tasks
    title_field: name
    parent_field: parent
`),
		AssetDir:      dir,
		AssetVersion:  "0.3.0",
		LogLevel:      "warn",
		PublicRoleID:  10,
		JWTSecret:     "secret",
		EnableAuth:    true,
		EnableMetrics: true,
	}
}

func TestInitializeContainer(t *testing.T) {
	cfg := testConfig(t)
	container, cleanup, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, container.Service)
	assert.Nil(t, container.Tracer)
	assert.Equal(t, []string{"Tasks"}, container.Views.Names())

	for _, path := range []string{"/health", "/ready", "/metrics", "/view/Tasks/data"} {
		w := httptest.NewRecorder()
		container.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestInitializeContainer_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.ViewsFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, _, err := InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.LogLevel = "loud"
	_, _, err = InitializeContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestProvideRecorder(t *testing.T) {
	metrics := ProvideMetrics()
	assert.Same(t, metrics, ProvideRecorder(metrics, nil))

	cw := observability.NewCloudWatchPublisher("MindMap/test", nil, zap.NewNop())
	r := ProvideRecorder(metrics, cw)
	r.RecordMutation("Tasks", "rename", "ok")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Mutations.WithLabelValues("Tasks", "rename", "ok")))
}

func TestProvideCloudWatch_Disabled(t *testing.T) {
	cw, err := ProvideCloudWatch(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, cw)
}

func TestProvideJWTValidator(t *testing.T) {
	cfg := testConfig(t)
	v, err := ProvideJWTValidator(cfg)
	require.NoError(t, err)
	assert.NotNil(t, v)

	cfg.JWTSecret = ""
	v, err = ProvideJWTValidator(cfg)
	require.NoError(t, err)
	assert.Nil(t, v)
}
