package firehose

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hemanthvishnuakula/cannect-proxy-sub000/internal/domain"
)

// jetstreamEvent is the raw JSON structure from Jetstream.
type jetstreamEvent struct {
	DID    string           `json:"did"`
	TimeUS int64            `json:"time_us"`
	Kind   string           `json:"kind"`
	Commit *jetstreamCommit `json:"commit,omitempty"`
}

// jetstreamCommit is the raw commit data from Jetstream. The record stays
// raw until we know the commit is a post create.
type jetstreamCommit struct {
	Rev        string          `json:"rev"`
	Operation  string          `json:"operation"`
	Collection string          `json:"collection"`
	RKey       string          `json:"rkey"`
	Record     json.RawMessage `json:"record,omitempty"`
	CID        string          `json:"cid"`
}

// postRecord is the subset of an app.bsky.feed.post record we read.
type postRecord struct {
	Type      string     `json:"$type"`
	Text      string     `json:"text"`
	CreatedAt string     `json:"createdAt"`
	Reply     *replyRef  `json:"reply,omitempty"`
	Embed     *postEmbed `json:"embed,omitempty"`
}

// replyRef contains references to the parent and root of a reply chain.
type replyRef struct {
	Root   strongRef `json:"root"`
	Parent strongRef `json:"parent"`
}

// strongRef is a reference to a specific version of a record.
type strongRef struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

// postEmbed covers app.bsky.embed.record and app.bsky.embed.recordWithMedia.
// Jetstream forwards records as written, so a quote usually carries only a
// strong ref; text is read when a producer hydrated the quoted value.
type postEmbed struct {
	Type   string       `json:"$type"`
	Record *embedRecord `json:"record,omitempty"`
}

type embedRecord struct {
	URI    string       `json:"uri"`
	Value  *quotedValue `json:"value,omitempty"`
	Record *embedRecord `json:"record,omitempty"`
}

type quotedValue struct {
	Text string `json:"text"`
}

// quotedText returns the text of the quoted post, one level deep.
func (e *postEmbed) quotedText() string {
	if e == nil || e.Record == nil {
		return ""
	}
	rec := e.Record
	if rec.Value != nil && rec.Value.Text != "" {
		return rec.Value.Text
	}
	// recordWithMedia nests the quote one more object down.
	if rec.Record != nil && rec.Record.Value != nil {
		return rec.Record.Value.Text
	}
	return ""
}

// event is the decoded form of a frame we act on: postCreate or postDelete.
type event interface {
	cursor() int64
}

type postCreate struct {
	timeUS int64
	post   domain.IncomingPost
}

func (e postCreate) cursor() int64 { return e.timeUS }

type postDelete struct {
	timeUS int64
	uri    string
}

func (e postDelete) cursor() int64 { return e.timeUS }

// skipped marks a well-formed frame that needs no processing. It still
// advances the cursor.
type skipped struct {
	timeUS int64
	reply  bool
}

func (e skipped) cursor() int64 { return e.timeUS }

// decodeEvent parses a Jetstream frame. Anything that is not a post create or
// delete decodes to skipped; replies are skipped without reaching the
// classifier.
func decodeEvent(data []byte) (event, error) {
	var raw jetstreamEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}

	if raw.Kind != "commit" || raw.Commit == nil || raw.Commit.Collection != domain.PostCollection {
		return skipped{timeUS: raw.TimeUS}, nil
	}

	commit := raw.Commit
	if !domain.IsDID(raw.DID) || commit.RKey == "" {
		return nil, fmt.Errorf("%w: commit without did or rkey", domain.ErrMalformedPost)
	}
	uri := domain.PostURI(raw.DID, commit.Collection, commit.RKey)

	switch commit.Operation {
	case "create":
		if len(commit.Record) == 0 {
			return nil, fmt.Errorf("%w: create without record: %s", domain.ErrMalformedPost, uri)
		}
		var record postRecord
		if err := json.Unmarshal(commit.Record, &record); err != nil {
			return nil, fmt.Errorf("unmarshal post record: %w", err)
		}
		if record.Reply != nil {
			return skipped{timeUS: raw.TimeUS, reply: true}, nil
		}

		text := record.Text
		if quoted := record.Embed.quotedText(); quoted != "" {
			text = strings.TrimSpace(text + "\n" + quoted)
		}

		return postCreate{
			timeUS: raw.TimeUS,
			post: domain.IncomingPost{
				URI:       uri,
				CID:       commit.CID,
				AuthorDID: raw.DID,
				Text:      text,
			},
		}, nil

	case "delete":
		return postDelete{timeUS: raw.TimeUS, uri: uri}, nil

	default:
		return skipped{timeUS: raw.TimeUS}, nil
	}
}
