package bluesky

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePDS records the last putRecord body and serves the session endpoints.
type fakePDS struct {
	mu         sync.Mutex
	lastPut    map[string]any
	lastDelete map[string]any
	lastBlob   []byte
}

func (p *fakePDS) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /xrpc/com.atproto.server.createSession", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "app-pass" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"AuthenticationRequired","message":"Invalid identifier or password"}`))
			return
		}
		w.Write([]byte(`{"accessJwt":"jwt-1","did":"did:plc:publisher","handle":"cannect.space"}`))
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.putRecord", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt-1", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		p.mu.Lock()
		p.lastPut = body
		p.mu.Unlock()
		w.Write([]byte(`{"uri":"at://did:plc:publisher/app.bsky.feed.generator/cannect","cid":"bafy"}`))
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.deleteRecord", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		p.mu.Lock()
		p.lastDelete = body
		p.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /xrpc/com.atproto.repo.uploadBlob", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
		data, _ := io.ReadAll(r.Body)
		p.mu.Lock()
		p.lastBlob = data
		p.mu.Unlock()
		w.Write([]byte(`{"blob":{"$type":"blob","ref":{"$link":"bafkrei"},"mimeType":"image/png","size":4}}`))
	})
	return mux
}

func (p *fakePDS) last() (put, del map[string]any, blob []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPut, p.lastDelete, p.lastBlob
}

func newTestClient(t *testing.T) (*Client, *fakePDS) {
	t.Helper()
	pds := &fakePDS{}
	ts := httptest.NewServer(pds.handler(t))
	t.Cleanup(ts.Close)
	return NewClient(ts.URL), pds
}

func TestLogin(t *testing.T) {
	c, _ := newTestClient(t)
	require.NoError(t, c.Login(context.Background(), "cannect.space", "app-pass"))
	assert.Equal(t, "did:plc:publisher", c.DID())
}

func TestLogin_BadPassword(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.Login(context.Background(), "cannect.space", "wrong")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "AuthenticationRequired", apiErr.Name)
}

func TestPublishFeedGenerator(t *testing.T) {
	c, pds := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "cannect.space", "app-pass"))

	blob, err := c.UploadBlob(ctx, []byte("\x89PNG"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "bafkrei", blob.Ref.Link)
	_, _, gotBlob := pds.last()
	assert.Equal(t, []byte("\x89PNG"), gotBlob)

	record := NewFeedGeneratorRecord("did:web:feed.cannect.space", "Cannect", "Cannabis posts")
	record.Avatar = blob

	uri, err := c.PublishFeedGenerator(ctx, "cannect", record)
	require.NoError(t, err)
	assert.Equal(t, "at://did:plc:publisher/app.bsky.feed.generator/cannect", uri)

	put, _, _ := pds.last()
	assert.Equal(t, "did:plc:publisher", put["repo"])
	assert.Equal(t, FeedGeneratorCollection, put["collection"])
	assert.Equal(t, "cannect", put["rkey"])
	rec := put["record"].(map[string]any)
	assert.Equal(t, FeedGeneratorCollection, rec["$type"])
	assert.Equal(t, "did:web:feed.cannect.space", rec["did"])
	assert.Contains(t, rec, "avatar")
}

func TestUnpublishFeedGenerator(t *testing.T) {
	c, pds := newTestClient(t)
	ctx := context.Background()
	require.NoError(t, c.Login(ctx, "cannect.space", "app-pass"))

	require.NoError(t, c.UnpublishFeedGenerator(ctx, "cannect"))
	_, del, _ := pds.last()
	assert.Equal(t, "cannect", del["rkey"])
}

func TestRequiresLogin(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.PublishFeedGenerator(ctx, "cannect", NewFeedGeneratorRecord("did:web:x", "X", ""))
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.ErrorIs(t, c.UnpublishFeedGenerator(ctx, "cannect"), ErrNotAuthenticated)
	_, err = c.UploadBlob(ctx, nil, "image/png")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestFeedGeneratorRecord_Validate(t *testing.T) {
	assert.NoError(t, NewFeedGeneratorRecord("did:web:x", "Cannect", "").Validate())
	assert.Error(t, NewFeedGeneratorRecord("", "Cannect", "").Validate())
	assert.Error(t, NewFeedGeneratorRecord("did:web:x", "", "").Validate())
	assert.Error(t, NewFeedGeneratorRecord("did:web:x", strings.Repeat("n", 25), "").Validate())
	assert.Error(t, NewFeedGeneratorRecord("did:web:x", "Cannect", strings.Repeat("d", 301)).Validate())
}
