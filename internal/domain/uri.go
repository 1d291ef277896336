package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PostCollection is the NSID of Bluesky post records.
const PostCollection = "app.bsky.feed.post"

// FeedURI returns the AT-URI of a feed generator record.
func FeedURI(publisherDID, feedName string) string {
	return fmt.Sprintf("at://%s/app.bsky.feed.generator/%s", publisherDID, feedName)
}

// PostURI builds the stable AT-URI of a record.
func PostURI(did, collection, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", did, collection, rkey)
}

// ParsePostURI validates an app.bsky.feed.post AT-URI and returns its author
// DID and record key.
func ParsePostURI(uri string) (did, rkey string, err error) {
	rest, ok := strings.CutPrefix(uri, "at://")
	if !ok {
		return "", "", fmt.Errorf("%w: uri must start with at://", ErrMalformedPost)
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return "", "", fmt.Errorf("%w: uri must be at://<did>/%s/<rkey>", ErrMalformedPost, PostCollection)
	}
	did, collection, rkey := parts[0], parts[1], parts[2]
	if !IsDID(did) {
		return "", "", fmt.Errorf("%w: invalid did %q", ErrMalformedPost, did)
	}
	if collection != PostCollection {
		return "", "", fmt.Errorf("%w: collection must be %s, got %q", ErrMalformedPost, PostCollection, collection)
	}
	if rkey == "" {
		return "", "", fmt.Errorf("%w: missing record key", ErrMalformedPost)
	}
	return did, rkey, nil
}

// IsDID reports whether s looks like a DID (did:<method>:<id>).
func IsDID(s string) bool {
	parts := strings.SplitN(s, ":", 3)
	return len(parts) == 3 && parts[0] == "did" && parts[1] != "" && parts[2] != ""
}

// encodeCursor produces "<asOfMicros>::<offset>".
func encodeCursor(asOf time.Time, offset int) string {
	return fmt.Sprintf("%d::%d", asOf.UnixMicro(), offset)
}

func decodeCursor(cursor string) (time.Time, int, error) {
	parts := strings.SplitN(cursor, "::", 2)
	if len(parts) != 2 {
		return time.Time{}, 0, fmt.Errorf("%w: cursor must be in format 'timestamp::offset'", ErrInvalidCursor)
	}
	micros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: invalid timestamp: %v", ErrInvalidCursor, err)
	}
	offset, err := strconv.Atoi(parts[1])
	if err != nil || offset < 0 {
		return time.Time{}, 0, fmt.Errorf("%w: invalid offset %q", ErrInvalidCursor, parts[1])
	}
	return time.UnixMicro(micros).UTC(), offset, nil
}
