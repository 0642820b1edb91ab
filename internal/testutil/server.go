// Shared test server setup utility, which simplifies all API tests.

package testutil

import (
	"database/sql"
	"testing"

	"github.com/rhymeswithjazz/pull-list/internal/api"
	"github.com/rhymeswithjazz/pull-list/internal/config"
	"github.com/rhymeswithjazz/pull-list/internal/core"
)

// SetupTestApp initializes a core.App backed by an in-memory database. An
// optional config can be supplied for tests that point the upstream clients
// at an httptest server.
func SetupTestApp(t *testing.T, cfgs ...*config.Config) *core.App {
	t.Helper()
	db := SetupTestDB(t)

	cfg := &config.Config{}
	cfg.DaysBack = 7
	cfg.Readlist.Create = true
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}

	return core.NewApp(cfg, db)
}

// SetupTestServer initializes a full core.App and api.Server for integration
// testing.
func SetupTestServer(t *testing.T, cfgs ...*config.Config) (*api.Server, *sql.DB) {
	t.Helper()
	app := SetupTestApp(t, cfgs...)
	return api.NewServer(app), app.DB()
}
