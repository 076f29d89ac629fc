package commands

import (
	"Narrator/internal/config"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

// testConfig направляет вывод и историю клиента во временный каталог.
func testConfig(t *testing.T, ts *httptest.Server) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		OutputDir:     dir,
		HistoryDBPath: filepath.Join(dir, "history.db"),
	}
	if ts != nil {
		cfg.ServerURL = ts.URL
	}
	return cfg
}
