package handlers

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/frisk/internal/search"
)

// readEvents collects "event:" and "data:" lines from an SSE body.
func readEvents(t *testing.T, body *bufio.Scanner, n int) []string {
	t.Helper()
	var got []string
	for len(got) < n && body.Scan() {
		line := body.Text()
		if strings.HasPrefix(line, "event: ") || strings.HasPrefix(line, "data: ") {
			got = append(got, line)
		}
	}
	require.Len(t, got, n, "stream ended early: %v", body.Err())
	return got
}

func TestHubStreamsCurrentGenerationOnly(t *testing.T) {
	var gen atomic.Uint64
	gen.Store(2)
	hub := NewHub(gen.Load)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 5*time.Second, 5*time.Millisecond)

	hub.PublishPoke(search.Poke{Generation: 1, Batch: &search.Batch{Progress: "stale"}})
	hub.PublishPoke(search.Poke{Generation: 2, Batch: &search.Batch{Progress: "fresh"}})
	hub.PublishState(search.State{Generation: 1, Outcome: search.OutcomeFailed, Err: errors.New("bad match")})

	lines := readEvents(t, bufio.NewScanner(resp.Body), 4)
	assert.Equal(t, "event: poke", lines[0])
	assert.Contains(t, lines[1], `"progress":"fresh"`)
	assert.NotContains(t, lines[1], "stale")
	assert.Equal(t, "event: state", lines[2])
	assert.Contains(t, lines[3], `"error":"bad match"`)
	assert.Contains(t, lines[3], `"outcome":"failed"`)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(func() uint64 { return 1 })
	ch := hub.subscribe()
	for range subscriberBuffer + 1 {
		hub.PublishPoke(search.Poke{Generation: 1, Batch: &search.Batch{}})
	}
	assert.Equal(t, 0, hub.Subscribers())

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, subscriberBuffer, n)
	hub.unsubscribe(ch)
}
