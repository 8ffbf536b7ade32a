package crosswalk

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
)

func TestLoader_Load(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"4020024190": 77, "1020000010": 3}`))
	}))
	defer srv.Close()

	l := New(srv.URL, srv.Client())
	headers, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(77), headers[domain.RegionCode(4020024190)])
	assert.Equal(t, int64(3), headers[domain.RegionCode(1020000010)])
}

// Fetched once per Loader instance, even under concurrent first-touch.
func TestLoader_FetchesOnce(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"1": 2}`))
	}))
	defer srv.Close()

	l := New(srv.URL, srv.Client())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLoader_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	l := New(srv.URL, srv.Client())
	_, err := l.Load(context.Background())
	require.Error(t, err)
}

func TestLoader_MalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	l := New(srv.URL, srv.Client())
	_, err := l.Load(context.Background())
	require.Error(t, err)
}
