package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/TripCu/chatvault/internal/store"
	"github.com/TripCu/chatvault/pkg/export"
	"github.com/TripCu/chatvault/pkg/loader"
	"github.com/TripCu/chatvault/pkg/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, exportJSON string) *httptest.Server {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if exportJSON != "" {
		doc, err := export.DecodeDocument([]byte(exportJSON))
		require.NoError(t, err)
		ctx := context.Background()
		require.NoError(t, s.WithTx(ctx, func(tx *store.Tx) error {
			_, loadErr := loader.Load(ctx, tx, doc)
			return loadErr
		}))
	}

	ts := httptest.NewServer(server.New(s, 0).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	return resp.StatusCode
}

const serverExport = `{
	"guild": {"id": "g1", "name": "Guild"},
	"channel": {"id": "c1", "name": "general"},
	"messages": [
		{
			"id": "m1",
			"content": "hello there",
			"author": {"id": "u1", "name": "alice", "discriminator": "0001", "isBot": false}
		},
		{
			"id": "m2",
			"content": "beep",
			"author": {"id": "b1", "name": "robo", "isBot": true}
		}
	]
}`

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	var body map[string]string
	status := getJSON(t, ts.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, serverExport)
	var stats store.Stats
	status := getJSON(t, ts.URL+"/api/v1/stats", &stats)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, stats.Messages)
	assert.Equal(t, 2, stats.Participants)
	assert.Equal(t, 1, stats.Guilds)
}

func TestRandomMessageEndpoint(t *testing.T) {
	ts := newTestServer(t, serverExport)
	var msg store.MessageRecord
	status := getJSON(t, ts.URL+"/api/v1/messages/random", &msg)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "m1", msg.ID, "bot-authored messages are never served")
	assert.Equal(t, "alice", msg.DisplayName)
}

func TestRandomMessageEmptyDatabase(t *testing.T) {
	ts := newTestServer(t, "")
	var body map[string]string
	status := getJSON(t, ts.URL+"/api/v1/messages/random", &body)
	assert.Equal(t, http.StatusNotFound, status)
	assert.NotEmpty(t, body["error"])
}

func TestMessageByIDEndpoint(t *testing.T) {
	ts := newTestServer(t, serverExport)

	var msg store.MessageRecord
	status := getJSON(t, ts.URL+"/api/v1/messages/m1", &msg)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello there", msg.Content)

	var body map[string]string
	status = getJSON(t, ts.URL+"/api/v1/messages/nope", &body)
	assert.Equal(t, http.StatusNotFound, status)
}
