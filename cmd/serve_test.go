package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yahya305/Daaktar-Saab/internal/index"
	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

func TestReloadOnSignal(t *testing.T) {
	useTestConfig(t)

	st, err := store.Open(cfg.Store.DSN)
	require.NoError(t, err)
	defer st.Close()

	idx := index.NewStored(st.SymptomRepo())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, idx.Reload(ctx))

	// Another process seeds the store behind the running index.
	require.NoError(t, st.SymptomRepo().Upsert(ctx, []store.SymptomRecord{
		{ID: "1", Symptom: "fever, chills", Disease: "Flu", Treatment: "Rest.", Vector: []float32{1, 0, 0}},
	}))
	got, err := idx.Query(ctx, []float32{1, 0, 0}, 3, nil)
	require.NoError(t, err)
	require.Empty(t, got, "snapshot should be stale before the signal")

	sig := make(chan os.Signal, 1)
	go reloadOn(ctx, sig, idx)
	sig <- os.Interrupt

	assert.Eventually(t, func() bool {
		got, err := idx.Query(ctx, []float32{1, 0, 0}, 3, nil)
		return err == nil && len(got) == 1 && got[0].Disease == "Flu"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReadyReportsUnreachableCache(t *testing.T) {
	useTestConfig(t)
	cfg.Index.Backend = "store"
	cfg.Embedding.Cache.Kind = "redis"
	cfg.Embedding.Cache.RedisURL = "redis://127.0.0.1:1/0"

	d, err := buildDeps(testCommand())
	require.NoError(t, err)
	defer d.Close()

	srv, err := d.newServer()
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "embedding cache", body["check"])
}
