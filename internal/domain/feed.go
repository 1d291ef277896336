package domain

import "time"

// FeedSkeleton is the response body for getFeedSkeleton.
type FeedSkeleton struct {
	Cursor string
	Posts  []SkeletonPost
}

// SkeletonPost is a single entry in a feed skeleton.
type SkeletonPost struct {
	// Post is the AT-URI of the post.
	Post string
}

// Stats summarizes the service for health checks.
type Stats struct {
	Posts          int
	TrustedAuthors int
	Uptime         time.Duration
}
