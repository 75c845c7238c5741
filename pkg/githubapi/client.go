// Package githubapi is a minimal GitHub REST client covering repository
// metadata and the contents endpoint. Origin failures are returned as
// *APIError values, never retried.
package githubapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const defaultBaseURL = "https://api.github.com"

const apiVersion = "2022-11-28"

// MaxFileSize is the largest file content the client will download.
// Entries at or above this size are recorded as TooLarge without a fetch.
const MaxFileSize = 1 << 20

// ErrorKind classifies origin failures.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindUpstream    ErrorKind = "upstream"
)

// APIError is a non-success origin response, carried back to the caller as
// data. Message holds the origin's own message text when one was present.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	switch e.Kind {
	case KindRateLimited:
		return fmt.Sprintf("rate limited by GitHub API: %s", e.Message)
	case KindNotFound:
		return "GitHub API: not found"
	default:
		return fmt.Sprintf("GitHub API error (status %d): %s", e.Status, e.Message)
	}
}

// AsAPIError unwraps err to an *APIError if it is one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// File is one fetched repository file. Content is set only when the file is
// neither TooLarge nor Binary.
type File struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Content  string `json:"content,omitempty"`
	TooLarge bool   `json:"too_large,omitempty"`
	Binary   bool   `json:"is_binary,omitempty"`
}

// DirEntry is one entry of a directory listing.
type DirEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "file" or "dir"
	Size int64  `json:"size"`
}

// Client talks to the GitHub REST API. The zero token is valid and simply
// runs at the unauthenticated rate limit.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for api.github.com.
func NewClient(token string) *Client {
	return NewClientURL(defaultBaseURL, token)
}

// NewClientURL creates a client against a custom base URL (tests).
func NewClientURL(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// get issues one request and returns the raw body, or an *APIError for any
// non-2xx status.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if apiErr := classifyStatus(resp.StatusCode, body); apiErr != nil {
		return nil, apiErr
	}
	return body, nil
}

// classifyStatus maps a non-success status to an *APIError, in priority
// order: 403 rate limit, 404 not found, anything else upstream.
func classifyStatus(status int, body []byte) *APIError {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := originMessage(body)
	switch status {
	case http.StatusForbidden:
		return &APIError{Kind: KindRateLimited, Status: status, Message: msg}
	case http.StatusNotFound:
		return &APIError{Kind: KindNotFound, Status: status, Message: msg}
	default:
		return &APIError{Kind: KindUpstream, Status: status, Message: msg}
	}
}

// originMessage extracts the "message" field GitHub puts in error bodies.
func originMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Message == "" {
		return strings.TrimSpace(string(body))
	}
	return payload.Message
}

// GetRepo fetches repository metadata and passes it through unmodified.
func (c *Client) GetRepo(ctx context.Context, owner, repo string) (jx.Raw, error) {
	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s", owner, repo))
	if err != nil {
		return nil, err
	}
	if err := jx.DecodeBytes(body).Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid metadata JSON")
	}
	return jx.Raw(body), nil
}

// contentObject is the wire shape of a contents-endpoint object.
type contentObject struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

// GetContents resolves one repository path to either a single file (content
// decoded) or a directory listing. Exactly one of file/entries is non-nil on
// success. path "" denotes the repository root.
func (c *Client) GetContents(ctx context.Context, owner, repo, path string) (*File, []DirEntry, error) {
	body, err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, path))
	if err != nil {
		return nil, nil, err
	}

	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var objs []contentObject
		if err := json.Unmarshal(body, &objs); err != nil {
			return nil, nil, errors.Wrap(err, "decode directory listing")
		}
		entries := make([]DirEntry, 0, len(objs))
		for _, o := range objs {
			entries = append(entries, DirEntry{Path: o.Path, Type: o.Type, Size: o.Size})
		}
		return nil, entries, nil
	}

	var obj contentObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, nil, errors.Wrap(err, "decode content object")
	}
	if obj.Type == "dir" {
		// Single dir object: hand it back as a listing entry.
		return nil, []DirEntry{{Path: obj.Path, Type: "dir", Size: obj.Size}}, nil
	}
	return decodeFile(obj), nil, nil
}

// decodeFile turns a wire content object into a File, downgrading oversized
// payloads to TooLarge and undecodable ones to Binary instead of failing.
func decodeFile(obj contentObject) *File {
	f := &File{Path: obj.Path, Size: obj.Size}
	if obj.Size >= MaxFileSize {
		f.TooLarge = true
		return f
	}

	raw := obj.Content
	if obj.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(raw, "\n", ""))
		if err != nil {
			f.Binary = true
			return f
		}
		if !utf8.Valid(decoded) {
			f.Binary = true
			return f
		}
		f.Content = string(decoded)
		return f
	}
	if !utf8.ValidString(raw) {
		f.Binary = true
		return f
	}
	f.Content = raw
	return f
}
