package trusted

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedSource returns successive responses, repeating the last one.
type scriptedSource struct {
	mu        sync.Mutex
	responses [][]string
	errs      []error
	calls     int
}

func (s *scriptedSource) FetchAuthors(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i], s.errs[i]
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRefresh_ReplacesSet(t *testing.T) {
	src := &scriptedSource{
		responses: [][]string{{"did:plc:a", "did:plc:b"}, {"did:plc:c"}},
		errs:      []error{nil, nil},
	}
	c := NewCache(src, discardLogger())

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 2, c.Size())
	assert.True(t, c.IsTrusted("did:plc:a"))

	require.NoError(t, c.Refresh(context.Background()))
	assert.Equal(t, 1, c.Size())
	assert.False(t, c.IsTrusted("did:plc:a"), "refresh must replace, not merge")
	assert.True(t, c.IsTrusted("did:plc:c"))
}

func TestRefresh_ErrorKeepsExistingSet(t *testing.T) {
	src := &scriptedSource{
		responses: [][]string{{"did:plc:a"}, nil},
		errs:      []error{nil, errors.New("origin down")},
	}
	c := NewCache(src, discardLogger())

	require.NoError(t, c.Refresh(context.Background()))
	err := c.Refresh(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, c.Size())
	assert.True(t, c.IsTrusted("did:plc:a"))
}

func TestReplace_SkipsBlankAndDuplicateDIDs(t *testing.T) {
	c := NewCache(SourceFunc(func(context.Context) ([]string, error) { return nil, nil }), discardLogger())

	n := c.Replace([]string{"did:plc:a", " did:plc:a ", "", "did:plc:b"})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, c.Size())
}

func TestIsTrustedWithRefresh_HitDoesNotRefresh(t *testing.T) {
	src := &scriptedSource{responses: [][]string{{"did:plc:a"}}, errs: []error{nil}}
	c := NewCache(src, discardLogger())
	c.Replace([]string{"did:plc:a"})

	ok, err := c.IsTrustedWithRefresh(context.Background(), "did:plc:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, src.Calls())
}

func TestIsTrustedWithRefresh_MissRefreshesOnce(t *testing.T) {
	src := &scriptedSource{
		responses: [][]string{{"did:plc:a", "did:plc:new"}},
		errs:      []error{nil},
	}
	c := NewCache(src, discardLogger())
	c.Replace([]string{"did:plc:a"})

	ok, err := c.IsTrustedWithRefresh(context.Background(), "did:plc:new")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, src.Calls())

	ok, err = c.IsTrustedWithRefresh(context.Background(), "did:plc:stranger")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, src.Calls())
}

func TestIsTrustedWithRefresh_RefreshErrorIsReported(t *testing.T) {
	src := &scriptedSource{responses: [][]string{nil}, errs: []error{errors.New("timeout")}}
	c := NewCache(src, discardLogger())

	ok, err := c.IsTrustedWithRefresh(context.Background(), "did:plc:a")
	assert.False(t, ok)
	assert.Error(t, err)
}

// gatedSource blocks every fetch until release is closed.
type gatedSource struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	dids    []string
}

func newGatedSource(dids ...string) *gatedSource {
	return &gatedSource{started: make(chan struct{}, 16), release: make(chan struct{}), dids: dids}
}

func (s *gatedSource) FetchAuthors(ctx context.Context) ([]string, error) {
	s.calls.Add(1)
	s.started <- struct{}{}
	select {
	case <-s.release:
		return s.dids, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestIsTrustedWithRefresh_CallerCancelDoesNotFailOthers(t *testing.T) {
	src := newGatedSource("did:plc:new")
	c := NewCache(src, discardLogger())

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.IsTrustedWithRefresh(first, "did:plc:new")
		firstErr <- err
	}()
	<-src.started

	type result struct {
		ok  bool
		err error
	}
	second := make(chan result, 1)
	go func() {
		ok, err := c.IsTrustedWithRefresh(context.Background(), "did:plc:new")
		second <- result{ok, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	got := <-second
	require.NoError(t, got.err)
	assert.True(t, got.ok)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefresh_ConcurrentCallersShareOneFetch(t *testing.T) {
	src := newGatedSource("did:plc:a")
	c := NewCache(src, discardLogger())

	var wg sync.WaitGroup
	refresh := func(fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, fn())
		}()
	}

	refresh(func() error { return c.Refresh(context.Background()) })
	<-src.started
	refresh(func() error { return c.Refresh(context.Background()) })
	refresh(func() error {
		_, err := c.IsTrustedWithRefresh(context.Background(), "did:plc:a")
		return err
	})
	time.Sleep(20 * time.Millisecond)

	close(src.release)
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
	assert.True(t, c.IsTrusted("did:plc:a"))
}

func TestRefresh_FetchIsBounded(t *testing.T) {
	src := newGatedSource()
	c := NewCache(src, discardLogger())
	c.timeout = 20 * time.Millisecond
	c.Replace([]string{"did:plc:a"})

	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, c.IsTrusted("did:plc:a"))
}

func TestCache_ConcurrentReadsDuringReplace(t *testing.T) {
	c := NewCache(SourceFunc(func(context.Context) ([]string, error) { return nil, nil }), discardLogger())
	c.Replace([]string{"did:plc:a"})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					// Every snapshot contains did:plc:a.
					assert.True(t, c.IsTrusted("did:plc:a"))
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		c.Replace([]string{"did:plc:a", "did:plc:b"})
		c.Replace([]string{"did:plc:a"})
	}
	close(stop)
	wg.Wait()
}

func TestRun_RefreshesOnInterval(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(SourceFunc(func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"did:plc:a"}, nil
	}), discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.True(t, c.IsTrusted("did:plc:a"))
}
