package trusted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// listingResponse is the body served by the origin's author listing.
type listingResponse struct {
	DIDs []string `json:"dids"`
}

// HTTPSource fetches the trusted author listing over HTTP. Calls go through a
// circuit breaker so an unreachable origin fails fast instead of stacking up
// slow requests on the notify path.
type HTTPSource struct {
	url        string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// NewHTTPSource creates a source that GETs url and expects {"dids": [...]}.
func NewHTTPSource(url string, logger *slog.Logger) *HTTPSource {
	return &HTTPSource{
		url: url,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "trusted-authors",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// FetchAuthors returns the DIDs in the origin listing.
func (s *HTTPSource) FetchAuthors(ctx context.Context) ([]string, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("author listing unavailable: %w", err)
		}
		return nil, err
	}
	return out.([]string), nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listing error (status %d): %s", resp.StatusCode, string(body))
	}

	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("unmarshal listing: %w", err)
	}
	if listing.DIDs == nil {
		return nil, fmt.Errorf("listing response has no dids field")
	}
	return listing.DIDs, nil
}
