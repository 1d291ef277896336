package domain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/classifier"
)

// FeedService is the core domain service. It owns the decision of whether an
// incoming post is included, persists included posts, and serves feed
// skeletons.
type FeedService struct {
	feedURI    string
	repo       PostRepository
	cursors    CursorRepository
	trusted    TrustedAuthors
	classifier *classifier.Classifier
	logger     *slog.Logger

	startedAt time.Time
	now       func() time.Time
}

// NewFeedService creates a FeedService serving a single feed.
func NewFeedService(
	feedURI string,
	repo PostRepository,
	cursors CursorRepository,
	trusted TrustedAuthors,
	cls *classifier.Classifier,
	logger *slog.Logger,
) (*FeedService, error) {
	if feedURI == "" {
		return nil, fmt.Errorf("feed uri is required")
	}
	if cls == nil {
		return nil, fmt.Errorf("classifier is required")
	}

	now := func() time.Time { return time.Now().UTC() }
	return &FeedService{
		feedURI:    feedURI,
		repo:       repo,
		cursors:    cursors,
		trusted:    trusted,
		classifier: cls,
		logger:     logger,
		startedAt:  now(),
		now:        now,
	}, nil
}

// FeedURIs returns the AT-URIs of all registered feeds.
func (s *FeedService) FeedURIs() []string {
	return []string{s.feedURI}
}

// ProcessNewPost classifies a top-level post and persists it when included.
// Trusted authors are labelled so the classifier's first rule fires.
func (s *FeedService) ProcessNewPost(ctx context.Context, incoming *IncomingPost) (classifier.Result, error) {
	var label string
	if s.trusted.IsTrusted(incoming.AuthorDID) {
		label = s.classifier.TrustedLabel()
	}

	res := s.classifier.Classify(label, incoming.Text)
	if !res.Include {
		return res, nil
	}

	if err := s.store(ctx, incoming.URI, incoming.CID, incoming.AuthorDID, label); err != nil {
		return res, err
	}
	return res, nil
}

// ProcessDeletePost removes a post by URI.
func (s *FeedService) ProcessDeletePost(ctx context.Context, uri string) error {
	if err := s.repo.Remove(ctx, uri); err != nil {
		return fmt.Errorf("remove post: %w", err)
	}
	return nil
}

// NotifyPost is the fast path for trusted authors: it validates the request,
// confirms trust (refreshing the author cache once on a miss) and stores the
// post without classification.
func (s *FeedService) NotifyPost(ctx context.Context, req NotifyRequest) error {
	uri := strings.TrimSpace(req.URI)
	cid := strings.TrimSpace(req.CID)
	author := strings.TrimSpace(req.AuthorDID)

	if uri == "" || cid == "" || author == "" {
		return fmt.Errorf("%w: uri, cid and authorDid are required", ErrMalformedPost)
	}
	did, _, err := ParsePostURI(uri)
	if err != nil {
		return err
	}
	if did != author {
		return fmt.Errorf("%w: uri author %s does not match authorDid %s", ErrMalformedPost, did, author)
	}

	trusted, err := s.trusted.IsTrustedWithRefresh(ctx, author)
	if err != nil {
		s.logger.Warn("trusted author refresh failed during notify", "author", author, "error", err)
	}
	if !trusted {
		return fmt.Errorf("%w: %s", ErrUntrustedAuthor, author)
	}

	return s.store(ctx, uri, cid, author, s.classifier.TrustedLabel())
}

func (s *FeedService) store(ctx context.Context, uri, cid, author, label string) error {
	now := s.now()
	post := &Post{
		URI:             uri,
		CID:             cid,
		AuthorDID:       author,
		AuthorLabel:     label,
		IndexedAt:       now,
		InsertedAtEpoch: now.Unix(),
	}
	if err := s.repo.Upsert(ctx, post); err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	return nil
}

// GetCursor retrieves the last-processed firehose cursor for the given service.
func (s *FeedService) GetCursor(ctx context.Context, service string) (int64, error) {
	return s.cursors.GetCursor(ctx, service)
}

// UpdateCursor persists the firehose cursor for the given service.
func (s *FeedService) UpdateCursor(ctx context.Context, service string, cursor int64) error {
	return s.cursors.UpdateCursor(ctx, service, cursor)
}

// GetFeedSkeleton returns a page of the feed skeleton. An empty feedURI means
// the default feed. The cursor pins the page to the posts that existed when
// the first page was served, so later inserts don't shift the offset.
func (s *FeedService) GetFeedSkeleton(ctx context.Context, feedURI string, limit int, cursor string) (*FeedSkeleton, error) {
	if feedURI != "" && feedURI != s.feedURI {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeed, feedURI)
	}

	asOf, offset := s.now(), 0
	if cursor != "" {
		var err error
		asOf, offset, err = decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
	}

	// Fetch one extra row to learn whether another page exists.
	posts, err := s.repo.PageAsOf(ctx, asOf, limit+1, offset)
	if err != nil {
		return nil, fmt.Errorf("get feed posts: %w", err)
	}

	skeleton := &FeedSkeleton{}
	if len(posts) > limit {
		posts = posts[:limit]
		skeleton.Cursor = encodeCursor(asOf, offset+limit)
	}

	skeleton.Posts = make([]SkeletonPost, len(posts))
	for i, p := range posts {
		skeleton.Posts[i] = SkeletonPost{Post: p.URI}
	}

	s.logger.Debug("feed skeleton served", "limit", limit, "offset", offset, "posts", len(posts), "next_cursor", skeleton.Cursor)
	return skeleton, nil
}

// Stats reports store and cache sizes for health checks.
func (s *FeedService) Stats(ctx context.Context) (Stats, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("count posts: %w", err)
	}
	return Stats{
		Posts:          count,
		TrustedAuthors: s.trusted.Size(),
		Uptime:         s.now().Sub(s.startedAt),
	}, nil
}

// StartRetentionJob runs a background loop that removes posts older than
// maxAge. It runs immediately on start and then repeats at the given interval.
// It blocks until ctx is cancelled.
func (s *FeedService) StartRetentionJob(ctx context.Context, interval, maxAge time.Duration) {
	s.runRetention(ctx, maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runRetention(ctx, maxAge)
		}
	}
}

func (s *FeedService) runRetention(ctx context.Context, maxAge time.Duration) {
	deleted, err := s.repo.PurgeOlderThan(ctx, maxAge)
	if err != nil {
		s.logger.Error("post retention failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("post retention complete", "deleted", deleted)
	}
}
