package trusted

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSource_FetchAuthors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"dids":["did:plc:a","did:plc:b"]}`))
	}))
	t.Cleanup(ts.Close)

	src := NewHTTPSource(ts.URL, discardLogger())
	dids, err := src.FetchAuthors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"did:plc:a", "did:plc:b"}, dids)
}

func TestHTTPSource_EmptyListing(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"dids":[]}`))
	}))
	t.Cleanup(ts.Close)

	dids, err := NewHTTPSource(ts.URL, discardLogger()).FetchAuthors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dids)
}

func TestHTTPSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom"},
		{name: "bad json", status: http.StatusOK, body: "{not json"},
		{name: "missing field", status: http.StatusOK, body: `{"authors":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(ts.Close)

			_, err := NewHTTPSource(ts.URL, discardLogger()).FetchAuthors(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestHTTPSource_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(ts.Close)

	src := NewHTTPSource(ts.URL, discardLogger())
	for i := 0; i < 3; i++ {
		_, err := src.FetchAuthors(context.Background())
		require.Error(t, err)
	}

	_, err := src.FetchAuthors(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), hits.Load())
}
