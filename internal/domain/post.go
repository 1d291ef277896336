package domain

import "time"

// Post is an included post as stored in the feed. Post bodies are never
// persisted, only the identifiers needed to serve a skeleton.
type Post struct {
	// URI is the AT-URI of the post (e.g. at://did:plc:abc/app.bsky.feed.post/3l3qo2vuowo2b).
	URI string

	// CID is the content identifier of the record revision.
	CID string

	// AuthorDID is the DID of the post's author.
	AuthorDID string

	// AuthorLabel is an optional, non-authoritative origin hint.
	AuthorLabel string

	// IndexedAt is when we indexed this post. Author-supplied timestamps are
	// never used for ordering.
	IndexedAt time.Time

	// InsertedAtEpoch is the unix time of insertion, used by retention.
	InsertedAtEpoch int64
}

// IncomingPost represents a new top-level post from the firehose that hasn't
// been persisted yet. It carries the text needed for classification.
type IncomingPost struct {
	// URI is the AT-URI of the post.
	URI string

	// CID is the content identifier of the record.
	CID string

	// AuthorDID is the DID of the post's author.
	AuthorDID string

	// Text is the post body, plus quoted-post text when present.
	Text string
}

// NotifyRequest is a fast-path inclusion request from a cooperating client.
type NotifyRequest struct {
	URI       string `json:"uri"`
	CID       string `json:"cid"`
	AuthorDID string `json:"authorDid"`
}
