package domain

import "errors"

var (
	// ErrMalformedPost is returned when a notify request is missing fields or
	// carries an invalid post URI.
	ErrMalformedPost = errors.New("malformed post")

	// ErrUntrustedAuthor is returned when a notify request comes from an author
	// outside the trusted origin.
	ErrUntrustedAuthor = errors.New("author is not trusted")

	// ErrUnknownFeed is returned when a skeleton is requested for a feed this
	// service does not generate.
	ErrUnknownFeed = errors.New("unknown feed")

	// ErrInvalidCursor is returned when a pagination cursor cannot be parsed.
	ErrInvalidCursor = errors.New("invalid cursor")
)
