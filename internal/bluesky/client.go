// Package bluesky is a small XRPC client used by operator tooling to manage
// the feed generator record on the publisher's PDS.
package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	defaultPDS = "https://bsky.social"

	// FeedGeneratorCollection is the NSID of feed generator records.
	FeedGeneratorCollection = "app.bsky.feed.generator"

	maxDisplayName = 24
	maxDescription = 300
)

// ErrNotAuthenticated is returned by calls that need a session before Login.
var ErrNotAuthenticated = errors.New("not authenticated: call Login first")

// APIError is a non-2xx XRPC response.
type APIError struct {
	Status  int
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("xrpc error (status %d)", e.Status)
	}
	return fmt.Sprintf("xrpc error (status %d): %s: %s", e.Status, e.Name, e.Message)
}

// Client is a minimal AT Protocol client for managing feed generator records.
type Client struct {
	pds        string
	httpClient *http.Client

	// populated after Login
	accessJwt string
	did       string
}

// NewClient creates a new client. If pds is empty, it defaults to
// https://bsky.social.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = defaultPDS
	}
	return &Client{
		pds: pds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login authenticates with the PDS and stores the session token. Use an App
// Password, not your account password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	var resp createSessionResponse
	if err := c.postJSON(ctx, "/xrpc/com.atproto.server.createSession", body, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	return nil
}

// DID returns the authenticated user's DID. Only valid after Login.
func (c *Client) DID() string {
	return c.did
}

// BlobRef represents an AT Protocol blob reference for uploaded content.
type BlobRef struct {
	Type string `json:"$type"`
	Ref  struct {
		Link string `json:"$link"`
	} `json:"ref"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
}

// FeedGeneratorRecord is the record body for app.bsky.feed.generator.
type FeedGeneratorRecord struct {
	Type        string   `json:"$type"`
	DID         string   `json:"did"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description,omitempty"`
	Avatar      *BlobRef `json:"avatar,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

// NewFeedGeneratorRecord builds a record pointing at serviceDID.
func NewFeedGeneratorRecord(serviceDID, displayName, description string) FeedGeneratorRecord {
	return FeedGeneratorRecord{
		Type:        FeedGeneratorCollection,
		DID:         serviceDID,
		DisplayName: displayName,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
}

// Validate checks the lexicon's length limits.
func (r FeedGeneratorRecord) Validate() error {
	if r.DID == "" {
		return fmt.Errorf("feed generator record needs a service did")
	}
	if r.DisplayName == "" {
		return fmt.Errorf("feed generator record needs a display name")
	}
	if n := utf8.RuneCountInString(r.DisplayName); n > maxDisplayName {
		return fmt.Errorf("display name is %d characters, max %d", n, maxDisplayName)
	}
	if n := utf8.RuneCountInString(r.Description); n > maxDescription {
		return fmt.Errorf("description is %d characters, max %d", n, maxDescription)
	}
	return nil
}

// PublishFeedGenerator creates or updates a feed generator record in the
// authenticated user's repo via com.atproto.repo.putRecord. It returns the
// record's AT-URI.
func (c *Client) PublishFeedGenerator(ctx context.Context, rkey string, record FeedGeneratorRecord) (string, error) {
	if c.accessJwt == "" {
		return "", ErrNotAuthenticated
	}
	if err := record.Validate(); err != nil {
		return "", err
	}

	body := putRecordRequest{
		Repo:       c.did,
		Collection: FeedGeneratorCollection,
		RKey:       rkey,
		Record:     record,
	}

	var resp putRecordResponse
	if err := c.postJSON(ctx, "/xrpc/com.atproto.repo.putRecord", body, &resp); err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}
	return resp.URI, nil
}

// UnpublishFeedGenerator deletes a feed generator record from the
// authenticated user's repo via com.atproto.repo.deleteRecord.
func (c *Client) UnpublishFeedGenerator(ctx context.Context, rkey string) error {
	if c.accessJwt == "" {
		return ErrNotAuthenticated
	}

	body := deleteRecordRequest{
		Repo:       c.did,
		Collection: FeedGeneratorCollection,
		RKey:       rkey,
	}

	if err := c.postJSON(ctx, "/xrpc/com.atproto.repo.deleteRecord", body, nil); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// UploadBlob uploads raw image bytes as a blob and returns a reference.
// The blob will be deleted if not referenced in a record within a time window.
func (c *Client) UploadBlob(ctx context.Context, data []byte, mimeType string) (*BlobRef, error) {
	if c.accessJwt == "" {
		return nil, ErrNotAuthenticated
	}

	var result uploadBlobResponse
	if err := c.do(ctx, "/xrpc/com.atproto.repo.uploadBlob", mimeType, data, &result); err != nil {
		return nil, fmt.Errorf("upload blob: %w", err)
	}
	return &result.Blob, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, path, "application/json", payload, result)
}

func (c *Client) do(ctx context.Context, path, contentType string, payload []byte, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
	Handle    string `json:"handle"`
}

type putRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
	Record     any    `json:"record"`
}

type putRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}

type uploadBlobResponse struct {
	Blob BlobRef `json:"blob"`
}
