// Package komga is a typed client for the Komga media-server API. It covers
// the slice of the API the pull-list needs: series and book lookups, recent
// additions, read progress, and readlist management.
package komga

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Client talks to a single Komga instance. Authentication is either an API
// key or basic auth, whichever is configured.
type Client struct {
	client   *http.Client
	baseURL  string
	username string
	password string
	apiKey   string
}

// New creates a Komga client for the given base URL and credentials.
func New(baseURL, username, password, apiKey string) *Client {
	return &Client{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  trimTrailingSlash(baseURL),
		username: username,
		password: password,
		apiKey:   apiKey,
	}
}

func trimTrailingSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	} else if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// doJSON performs a request with retries and decodes the response body into
// out (when non-nil). Server errors are retried; client errors are not.
func (c *Client) doJSON(ctx context.Context, method, path string, params url.Values, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}

	return retry.Do(
		func() error {
			u := c.baseURL + path
			if len(params) > 0 {
				u += "?" + params.Encode()
			}
			var reader io.Reader
			if payload != nil {
				reader = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, u, reader)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			c.authorize(req)

			resp, err := c.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				err := fmt.Errorf("komga: %s %s returned %d", method, path, resp.StatusCode)
				if resp.StatusCode < 500 {
					return retry.Unrecoverable(err)
				}
				return err
			}
			if out == nil {
				io.Copy(io.Discard, resp.Body)
				return nil
			}
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return retry.Unrecoverable(fmt.Errorf("komga: decoding %s response: %w", path, err))
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

// TestConnection probes the instance with a cheap authenticated request.
func (c *Client) TestConnection(ctx context.Context) bool {
	var libraries []struct {
		ID string `json:"id"`
	}
	return c.doJSON(ctx, http.MethodGet, "/api/v1/libraries", nil, nil, &libraries) == nil
}

// GetSeries lists series, optionally filtered by a search term.
func (c *Client) GetSeries(ctx context.Context, search string) ([]Series, error) {
	params := url.Values{"page": {"0"}, "size": {"500"}}
	if search != "" {
		params.Set("search", search)
	}
	var resp page[Series]
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/series", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// GetSeriesByID fetches a single series.
func (c *Client) GetSeriesByID(ctx context.Context, seriesID string) (*Series, error) {
	var s Series
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/series/"+seriesID, nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSeriesBooks lists all books in a series.
func (c *Client) GetSeriesBooks(ctx context.Context, seriesID string) ([]Book, error) {
	params := url.Values{"page": {"0"}, "size": {"500"}}
	var resp page[Book]
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/series/"+seriesID+"/books", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// GetBookByID fetches a single book with its current read progress.
func (c *Client) GetBookByID(ctx context.Context, bookID string) (*Book, error) {
	var b Book
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/books/"+bookID, nil, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBooksByIDs fetches several books concurrently and returns them keyed by
// id. Books that fail to fetch are simply absent from the result; callers
// treat a missing entry as "progress unknown".
func (c *Client) GetBooksByIDs(ctx context.Context, bookIDs []string) map[string]*Book {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		books = make(map[string]*Book, len(bookIDs))
	)
	for _, id := range bookIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			book, err := c.GetBookByID(ctx, id)
			if err != nil {
				return
			}
			mu.Lock()
			books[id] = book
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return books
}

// GetLatestBooks lists the most recently added books across all libraries.
func (c *Client) GetLatestBooks(ctx context.Context, size int) ([]Book, error) {
	params := url.Values{"page": {"0"}, "size": {strconv.Itoa(size)}}
	var resp page[Book]
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/books/latest", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Content, nil
}

// FindReadlistByName scans the instance's readlists for an exact name match.
// It returns nil without error when no readlist has that name.
func (c *Client) FindReadlistByName(ctx context.Context, name string) (*Readlist, error) {
	params := url.Values{"page": {"0"}, "size": {"500"}}
	var resp page[Readlist]
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/readlists", params, nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Content {
		if resp.Content[i].Name == name {
			return &resp.Content[i], nil
		}
	}
	return nil, nil
}

// CreateReadlist creates a named ordered readlist containing the given books.
func (c *Client) CreateReadlist(ctx context.Context, name string, bookIDs []string) (*Readlist, error) {
	body := map[string]any{
		"name":    name,
		"bookIds": bookIDs,
		"ordered": true,
	}
	var rl Readlist
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/readlists", nil, body, &rl); err != nil {
		return nil, err
	}
	return &rl, nil
}

// DeleteReadlist removes a readlist by id.
func (c *Client) DeleteReadlist(ctx context.Context, readlistID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/readlists/"+readlistID, nil, nil, nil)
}

// MarkBookRead marks a book as fully read.
func (c *Client) MarkBookRead(ctx context.Context, bookID string) error {
	body := map[string]any{"completed": true}
	return c.doJSON(ctx, http.MethodPatch, "/api/v1/books/"+bookID+"/read-progress", nil, body, nil)
}

// MarkBookUnread clears a book's read progress.
func (c *Client) MarkBookUnread(ctx context.Context, bookID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/books/"+bookID+"/read-progress", nil, nil, nil)
}

// ReadURL returns the Komga web-reader URL for a book.
func (c *Client) ReadURL(bookID string) string {
	return fmt.Sprintf("%s/book/%s/read", c.baseURL, bookID)
}

// BookThumbnail fetches a book's thumbnail bytes and content type, for the
// authenticated proxy endpoint.
func (c *Client) BookThumbnail(ctx context.Context, bookID string) ([]byte, string, error) {
	return c.fetchThumbnail(ctx, "/api/v1/books/"+bookID+"/thumbnail")
}

// SeriesThumbnail fetches a series' thumbnail bytes and content type.
func (c *Client) SeriesThumbnail(ctx context.Context, seriesID string) ([]byte, string, error) {
	return c.fetchThumbnail(ctx, "/api/v1/series/"+seriesID+"/thumbnail")
}

// BookFile fetches a book's archive file for the authenticated download
// passthrough. The filename comes from the upstream Content-Disposition
// header, falling back to the book id.
func (c *Client) BookFile(ctx context.Context, bookID string) ([]byte, string, string, error) {
	path := "/api/v1/books/" + bookID + "/file"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", "", err
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", "", fmt.Errorf("komga: GET %s returned %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", "", err
	}

	filename := bookID + ".cbz"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, filename, contentType, nil
}

func (c *Client) fetchThumbnail(ctx context.Context, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, "", err
	}
	c.authorize(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", fmt.Errorf("komga: GET %s returned %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}
