// Package streamja is a client for the streamja.com video host. Streamja
// has no JSON status API; availability and processing state come from the
// public video page.
package streamja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"vidhost/pkg/htmlq"
	"vidhost/pkg/httputil"
)

const baseURL = "https://streamja.com"

var ErrNoVideoSource = errors.New("no video source tag on page")

type Client struct {
	http    httputil.Doer
	baseURL string
}

// UploadResult is the final record streamja returns once the file part
// is accepted.
type UploadResult struct {
	ShortID string `json:"shortId"`
	URL     string `json:"url"`
	Image   string `json:"image"`
}

type apiStatus struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

func New(h httputil.Doer) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	return &Client{http: h, baseURL: baseURL}
}

// Upload reserves a short id, pushes the file against it, and returns the
// platform record. Both steps report failure in-band via status 0 or an
// error field.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (*UploadResult, error) {
	shortID, err := c.generateShortID(ctx)
	if err != nil {
		return nil, err
	}

	body, contentType, err := httputil.MultipartFile("file", filename, "", r, nil)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	uploadURL := fmt.Sprintf("%s/upload.php?shortId=%s", c.baseURL, url.QueryEscape(shortID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload response: %w", err)
	}

	var status apiStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	if status.Status == 0 || status.Error != "" {
		return nil, fmt.Errorf("upload rejected for %s: %s", shortID, status.Error)
	}

	var result UploadResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}

// Available reports whether the video page responds 2xx.
func (c *Client) Available(ctx context.Context, id string) (bool, error) {
	resp, err := c.page(ctx, id)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// Processing reports whether the video page is still missing its player
// container.
func (c *Client) Processing(ctx context.Context, id string) (bool, error) {
	doc, err := c.parsePage(ctx, id)
	if err != nil {
		return false, err
	}
	return htmlq.Find(doc, "div", map[string]string{"id": "video_container"}) == nil, nil
}

// VideoURL scrapes the direct source URL from the video page.
func (c *Client) VideoURL(ctx context.Context, id string) (string, error) {
	doc, err := c.parsePage(ctx, id)
	if err != nil {
		return "", err
	}

	source := htmlq.Find(doc, "source", nil)
	if source == nil {
		return "", fmt.Errorf("video %s: %w", id, ErrNoVideoSource)
	}

	src := htmlq.Attr(source, "src")
	if src == "" {
		return "", fmt.Errorf("video %s: source tag missing src", id)
	}
	return src, nil
}

func (c *Client) PageURL(id string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, id)
}

func (c *Client) EmbedURL(id string) string {
	return fmt.Sprintf("%s/embed/%s", c.baseURL, id)
}

func (c *Client) generateShortID(ctx context.Context) (string, error) {
	form := url.Values{"new": {"1"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/shortId.php", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate short id: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("generate short id: %w", err)
	}

	var data struct {
		apiStatus
		ShortID   string `json:"shortId"`
		UploadURL string `json:"uploadUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode short id response: %w", err)
	}
	if data.Status == 0 || data.Error != "" {
		return "", fmt.Errorf("generate short id: %s", data.Error)
	}
	if data.ShortID == "" || data.UploadURL == "" {
		return "", fmt.Errorf("generate short id: incomplete response")
	}
	return data.ShortID, nil
}

func (c *Client) page(ctx context.Context, id string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return resp, nil
}

func (c *Client) parsePage(ctx context.Context, id string) (*html.Node, error) {
	resp, err := c.page(ctx, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}

	doc, err := htmlq.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}
