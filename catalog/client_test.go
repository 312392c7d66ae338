package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupItemFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/menu/item", r.URL.Path)
		assert.Equal(t, "Margherita", r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"Margherita","price":25.0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, false)
	res, err := c.LookupItem(context.Background(), "Margherita")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "Margherita", res.Item.Name)
	assert.InDelta(t, 25.0, res.Item.Price, 1e-9)
}

func TestLookupItemMissIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, false)
	res, err := c.LookupItem(context.Background(), "unicorn burger")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestLookupItemServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, false)
	_, err := c.LookupItem(context.Background(), "Margherita")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLookupItemUnreachableIsUnavailable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 200*time.Millisecond, false)
	_, err := c.LookupItem(context.Background(), "Margherita")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestLookupItemCancelledContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.LookupItem(ctx, "Margherita")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLookupItemCollapsesConcurrentRequests(t *testing.T) {
	var hits int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		<-release
		_, _ = w.Write([]byte(`{"name":"Margherita","price":25.0}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Same name in mixed case collapses onto one request.
			res, err := c.LookupItem(context.Background(), "MARGHERITA")
			assert.NoError(t, err)
			assert.True(t, res.Found)
		}()
	}
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestFullMenu(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/menu/today", r.URL.Path)
		_, _ = w.Write([]byte(`[{"name":"Margherita","price":25.0},{"name":"Falafel","price":12.5}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, false)
	items, err := c.FullMenu(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Falafel", items[1].Name)
}

func TestValidateField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/validate", r.URL.Path)
		assert.Equal(t, "building", r.URL.Query().Get("field"))
		assert.Equal(t, "A1A", r.URL.Query().Get("value"))
		_, _ = w.Write([]byte(`{"valid":false,"reason":"building closed for maintenance"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, true)
	assert.True(t, c.ValidatesRemotely())

	res, err := c.ValidateField(context.Background(), "building", "A1A")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "building closed for maintenance", res.Reason)
}
