package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrhy/livetree"
)

var ctx = context.Background()

func testSettings() *ClientSettings {
	settings := DefaultClientSettings()
	settings.ReconnectTimeout = 50 * time.Millisecond
	return settings
}

func newHub(t *testing.T) (*Hub, string) {
	hub := NewHub(nil)
	server := httptest.NewServer(hub.Routes())
	t.Cleanup(func() {
		hub.Close()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
}

func openStore(t *testing.T, url string) *livetree.Store {
	client := Dial(ctx, url, testSettings())
	s, err := livetree.Open(ctx, &livetree.Config{Transport: client})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close(ctx) })
	require.Eventually(t, client.Connected, 5*time.Second, 10*time.Millisecond)
	return s
}

func watch(s *livetree.Store, path string) <-chan livetree.Value {
	c := make(chan livetree.Value, 16)
	s.Subscribe(s.Ref(path), func(v livetree.Value) { c <- v })
	return c
}

func awaitValue(t *testing.T, c <-chan livetree.Value, want livetree.Value) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case v := <-c:
			if livetree.Equal(v, want) {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %v", want)
		}
	}
}

func TestReplicatesThroughHub(t *testing.T) {
	hub, url := newHub(t)
	a := openStore(t, url)
	b := openStore(t, url)
	require.Eventually(t, func() bool { return hub.Connections() == 2 }, 5*time.Second, 10*time.Millisecond)

	seen := watch(b, "sessions/s1/status")
	require.NoError(t, a.Set(ctx, a.Ref("sessions/s1/status"), livetree.String("waiting")).Err())
	awaitValue(t, seen, livetree.String("waiting"))
	require.Equal(t, livetree.String("waiting"), b.Get(b.Ref("sessions/s1/status")))

	seen = watch(a, "sessions/s1/status")
	require.NoError(t, b.Update(ctx, b.Ref("sessions/s1"), livetree.Node{"status": livetree.String("active")}).Err())
	awaitValue(t, seen, livetree.String("active"))
}

func TestLateJoinerGetsLastSnapshot(t *testing.T) {
	hub, url := newHub(t)
	a := openStore(t, url)
	require.NoError(t, a.Set(ctx, a.Ref("agents/a1"), livetree.Bool(true)).Err())
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.last != nil
	}, 5*time.Second, 10*time.Millisecond)

	b := openStore(t, url)
	awaitValue(t, watch(b, "agents/a1"), livetree.Bool(true))
}

func TestStoreOpenedAfterConnectGetsReplay(t *testing.T) {
	hub, url := newHub(t)
	a := openStore(t, url)
	require.NoError(t, a.Set(ctx, a.Ref("agents/a1"), livetree.Bool(true)).Err())
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return hub.last != nil
	}, 5*time.Second, 10*time.Millisecond)

	client := Dial(ctx, url, testSettings())
	require.NoError(t, client.WaitConnected(ctx))
	require.Eventually(t, client.Synced, 5*time.Second, 10*time.Millisecond)
	b, err := livetree.Open(ctx, &livetree.Config{Transport: client})
	require.NoError(t, err)
	defer b.Close(ctx)
	require.Equal(t, livetree.Bool(true), b.Get(b.Ref("agents/a1")), "replay held until the store subscribed")

	seen := watch(a, "agents/a2")
	require.NoError(t, b.Set(ctx, b.Ref("agents/a2"), livetree.Bool(true)).Err())
	awaitValue(t, seen, livetree.Bool(true))
	require.Equal(t, livetree.Bool(true), a.Get(a.Ref("agents/a1")))
}

func TestWaitSynced(t *testing.T) {
	_, url := newHub(t)
	client := Dial(ctx, url, testSettings())
	defer client.Close()
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, client.WaitSynced(waitCtx))
	require.True(t, client.Connected())

	var got [][]byte
	client.Subscribe(func(b []byte) { got = append(got, b) })
	require.Empty(t, got, "the sync marker is not delivered")
}

func TestIgnoresGarbage(t *testing.T) {
	hub, url := newHub(t)
	a := openStore(t, url)
	b := openStore(t, url)
	require.Eventually(t, func() bool { return hub.Connections() == 2 }, 5*time.Second, 10*time.Millisecond)

	raw := Dial(ctx, url, testSettings())
	defer raw.Close()
	require.Eventually(t, raw.Connected, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, raw.Publish(ctx, []byte("not json")))
	require.NoError(t, raw.Publish(ctx, []byte(`{"type":"presence","store":{"x":1}}`)))

	seen := watch(b, "x")
	require.NoError(t, a.Set(ctx, a.Ref("x"), livetree.Number(2)).Err())
	awaitValue(t, seen, livetree.Number(2))
	require.Equal(t, livetree.Number(2), a.Get(a.Ref("x")))
}

func TestPublishAfterClose(t *testing.T) {
	_, url := newHub(t)
	c := Dial(ctx, url, testSettings())
	require.NoError(t, c.Close())
	require.ErrorIs(t, c.Publish(ctx, []byte("{}")), livetree.ErrClosed)
}

func TestHealthz(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	rec := httptest.NewRecorder()
	hub.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	require.Equal(t, 200, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}
