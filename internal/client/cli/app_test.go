package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onelinediary/client/internal/client/cache"
	"github.com/onelinediary/client/internal/client/config"
	"github.com/onelinediary/client/internal/client/remote"
	"github.com/onelinediary/client/internal/client/store"
	"github.com/onelinediary/client/internal/logging"
)

var cacheSeq atomic.Int64

// newTestApp builds an App against an httptest backend and an in-memory
// cache. The clock is pinned to 2024-03-14.
func newTestApp(t *testing.T, handler http.Handler) (*App, *bytes.Buffer) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dsn := fmt.Sprintf("file:cli_%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), cacheSeq.Add(1))
	db, err := cache.Open(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	client := remote.NewRESTClient(srv.URL, "anon-key", nil)
	st := store.New(client, db, nil, nil)
	t.Cleanup(st.Close)

	out := &bytes.Buffer{}
	return &App{
		config: &config.Config{},
		client: client,
		store:  st,
		cache:  db,
		log:    logging.NewNopLogger(),
		reader: bufio.NewReader(strings.NewReader("")),
		out:    out,
		now:    func() time.Time { return time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC) },
	}, out
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
