package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/OpenCanteen/catalog"
	"github.com/room4-2/OpenCanteen/config"
	"github.com/room4-2/OpenCanteen/dialogue"
	"github.com/room4-2/OpenCanteen/order"
	"github.com/room4-2/OpenCanteen/session"
	"github.com/room4-2/OpenCanteen/validate"
)

type fakeGateway struct {
	items map[string]catalog.Item
}

func (g *fakeGateway) LookupItem(_ context.Context, name string) (catalog.LookupResult, error) {
	item, ok := g.items[strings.ToLower(name)]
	return catalog.LookupResult{Found: ok, Item: item}, nil
}

func (g *fakeGateway) FullMenu(context.Context) ([]catalog.Item, error) { return nil, nil }

func (g *fakeGateway) ValidatesRemotely() bool { return false }

func (g *fakeGateway) ValidateField(context.Context, string, string) (validate.Result, error) {
	return validate.Result{Valid: true}, nil
}

type fakeEngine struct {
	reply     string
	warmupErr error
}

func (e *fakeEngine) Stream(ctx context.Context, _ string, emit func(string) error) error {
	for _, chunk := range strings.SplitAfter(e.reply, " ") {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (e *fakeEngine) Warmup(context.Context) error { return e.warmupErr }

func testServer(t *testing.T) (*httptest.Server, *fakeEngine, *session.Store) {
	t.Helper()
	cfg := &config.Config{
		Port:           0,
		AllowedOrigins: []string{"*"},
		Buildings:      []string{"A1A"},
		RFIDDigits:     6,
		PhoneMinDigits: 9,
		PhoneMaxDigits: 15,
		RedisURL:       "127.0.0.1:1",
		MaxSessions:    100,
		SessionTimeout: time.Minute,
	}
	gw := &fakeGateway{items: map[string]catalog.Item{
		"margherita": {Name: "Margherita", Price: 25},
	}}
	eng := &fakeEngine{reply: "Yes, we have that."}
	store := session.NewStore(cfg)
	t.Cleanup(store.Shutdown)
	ledger := order.NewLedger(t.TempDir() + "/orders.txt")
	ctrl := dialogue.NewController(cfg, store, gw, eng, ledger)

	s := NewServer(cfg, store, ctrl, eng)
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, eng, store
}

func TestChatStreamsStatusAndContent(t *testing.T) {
	ts, _, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"message":"Is Margherita available?"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Session-ID"))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	got := string(body)

	// Status line first, newline-terminated, then the answer text.
	assert.True(t, strings.HasPrefix(got, "[Looking up 'margherita' in the menu...]\n"), "got %q", got)
	assert.Contains(t, got, "Yes, we have that.")
}

func TestChatSessionIDIsStable(t *testing.T) {
	ts, _, _ := testServer(t)

	resp, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	sid := resp.Header.Get("X-Session-ID")
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	require.NotEmpty(t, sid)

	resp2, err := http.Post(ts.URL+"/chat", "application/json",
		strings.NewReader(`{"message":"hello again","session_id":"`+sid+`"}`))
	require.NoError(t, err)
	defer resp2.Body.Close()
	_, _ = io.Copy(io.Discard, resp2.Body)
	assert.Equal(t, sid, resp2.Header.Get("X-Session-ID"))
}

func TestChatRejectsBadRequests(t *testing.T) {
	ts, _, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/chat", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"message":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWarmup(t *testing.T) {
	ts, eng, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/warmup")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"warmed up"}`, string(body))

	eng.warmupErr = context.DeadlineExceeded
	resp, err = http.Get(ts.URL + "/warmup")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthReportsSessionCount(t *testing.T) {
	ts, _, store := testServer(t)
	store.GetOrCreate(context.Background(), "abc")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","sessions":1}`, string(body))
}
