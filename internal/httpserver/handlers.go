package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := s.feedService.Stats(r.Context())
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"posts":          stats.Posts,
		"trustedAuthors": stats.TrustedAuthors,
		"uptime":         int64(stats.Uptime.Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDIDDoc(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"@context": []string{"https://www.w3.org/ns/did/v1"},
		"id":       s.cfg.ServiceDID(),
		"service": []map[string]any{
			{
				"id":              "#bsky_fg",
				"type":            "BskyFeedGenerator",
				"serviceEndpoint": fmt.Sprintf("https://%s", s.cfg.Hostname),
			},
		},
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDescribeFeedGenerator(w http.ResponseWriter, _ *http.Request) {
	uris := s.feedService.FeedURIs()
	feeds := make([]map[string]string, 0, len(uris))
	for _, uri := range uris {
		feeds = append(feeds, map[string]string{"uri": uri})
	}

	resp := map[string]any{
		"did":   s.cfg.ServiceDID(),
		"feeds": feeds,
	}
	writeJSON(w, http.StatusOK, resp)
}

// parseLimit clamps the limit into [1, maxLimit]. Only a non-numeric value
// is an error.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return min(max(n, 1), maxLimit), nil
}

func (s *Server) handleGetFeedSkeleton(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	feedURI := q.Get("feed")
	cursor := q.Get("cursor")

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		s.logger.Warn("invalid limit parameter", "limit", q.Get("limit"), "error", err)
		writeError(w, http.StatusBadRequest, "InvalidRequest", "limit must be an integer")
		return
	}

	skeleton, err := s.feedService.GetFeedSkeleton(r.Context(), feedURI, limit, cursor)
	switch {
	case errors.Is(err, domain.ErrUnknownFeed):
		writeError(w, http.StatusBadRequest, "UnsupportedAlgorithm", "unsupported feed")
		return
	case errors.Is(err, domain.ErrInvalidCursor):
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed cursor")
		return
	case err != nil:
		s.logger.Error("failed to get feed skeleton",
			"feed", feedURI,
			"limit", limit,
			"cursor", cursor,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to get feed")
		return
	}

	s.logger.Debug("getFeedSkeleton success", "feed", feedURI, "posts_returned", len(skeleton.Posts), "next_cursor", skeleton.Cursor)

	resp := map[string]any{
		"feed": toSkeletonResponse(skeleton.Posts),
	}
	if skeleton.Cursor != "" {
		resp["cursor"] = skeleton.Cursor
	}

	writeJSON(w, http.StatusOK, resp)
}

func toSkeletonResponse(posts []domain.SkeletonPost) []map[string]string {
	result := make([]map[string]string, len(posts))
	for i, p := range posts {
		result[i] = map[string]string{"post": p.Post}
	}
	return result
}

type notifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req domain.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, notifyResponse{Error: "PayloadTooLarge", Message: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, notifyResponse{Error: "InvalidRequest", Message: "malformed JSON body"})
		return
	}

	err := s.feedService.NotifyPost(r.Context(), req)
	switch {
	case errors.Is(err, domain.ErrMalformedPost):
		writeJSON(w, http.StatusBadRequest, notifyResponse{Error: "InvalidRequest", Message: err.Error()})
		return
	case errors.Is(err, domain.ErrUntrustedAuthor):
		s.logger.Warn("notify from untrusted author", "author", req.AuthorDID, "uri", req.URI)
		writeJSON(w, http.StatusForbidden, notifyResponse{Error: "Forbidden", Message: "author is not a trusted origin user"})
		return
	case err != nil:
		s.logger.Error("notify failed", "uri", req.URI, "error", err)
		writeJSON(w, http.StatusInternalServerError, notifyResponse{Error: "InternalError", Message: "failed to index post"})
		return
	}

	s.logger.Info("post indexed via notify", "uri", req.URI, "author", req.AuthorDID)
	writeJSON(w, http.StatusOK, notifyResponse{Success: true, Message: "post indexed"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}
