package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newArchive serves one image entry per requested day.
func newArchive(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		start, _ := time.Parse("2006-01-02", q.Get("start_date"))
		end, _ := time.Parse("2006-01-02", q.Get("end_date"))

		var items []map[string]string
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			items = append(items, map[string]string{
				"date":        d.Format("2006-01-02"),
				"title":       fmt.Sprintf("Picture %d", d.Day()),
				"explanation": "explanation",
				"url":         "https://apod.nasa.gov/apod/image.jpg",
				"media_type":  "image",
			})
		}
		json.NewEncoder(w).Encode(items)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
database:
  driver: sqlite
  path: %s
api:
  base_url: %s
  api_key: test
metrics:
  enabled: false
log_level: error
`, filepath.Join(dir, "apod.db"), baseURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestCommands_SyncListStatus(t *testing.T) {
	var requests atomic.Int32
	srv := newArchive(t, &requests)
	cfgPath := writeConfig(t, srv.URL)

	var synced syncOutput
	out := run(t, "sync", "--config", cfgPath, "--format", "json", "--month", "2024-03", "--force=false")
	require.NoError(t, json.Unmarshal([]byte(out), &synced))
	assert.True(t, synced.Synced)
	assert.Equal(t, "success", synced.Status)
	assert.Equal(t, 31, synced.Stored)
	assert.Equal(t, "2024-03-31", synced.End)

	out = run(t, "sync", "--config", cfgPath, "--format", "json", "--month", "2024-03", "--force=false")
	synced = syncOutput{}
	require.NoError(t, json.Unmarshal([]byte(out), &synced))
	assert.False(t, synced.Synced)
	assert.Equal(t, "fresh", synced.Status)
	assert.Equal(t, int32(1), requests.Load())

	var listed []entryOutput
	out = run(t, "list", "--config", cfgPath, "--format", "json", "--month", "2024-03")
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 31)
	assert.Equal(t, "2024-03-31", listed[0].Date)

	var status statusOutput
	out = run(t, "status", "--config", cfgPath, "--format", "json", "--month", "2024-03")
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, "apod_2024_3", status.BucketID)
	assert.True(t, status.Synced)
	assert.Equal(t, 31, status.Entries)
	assert.False(t, status.NeedsUpdate)

	out = run(t, "status", "--config", cfgPath, "--format", "text", "--month", "2024-03")
	assert.Contains(t, out, "needs update: false")
}

func TestCommands_RejectsUnknownFormat(t *testing.T) {
	RootCmd.SetOut(&bytes.Buffer{})
	RootCmd.SetArgs([]string{"status", "--format", "yaml"})
	assert.Error(t, RootCmd.Execute())
	formatFlag = "json"
}
