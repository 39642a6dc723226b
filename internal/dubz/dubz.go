// Package dubz is a client for the dubz.co video host. Dubz has no API
// at all: the upload id comes from a hidden form input on the landing
// page, and video state is inferred from markers in the page HTML.
package dubz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"

	"vidhost/pkg/htmlq"
	"vidhost/pkg/httputil"
)

const baseURL = "https://dubz.co"

const processingMarker = `<center><br><br><h4 class="text-center" style="color:#fff;"><strong>This ` +
	`video is now processing.</strong></h4><span style="color:#fff;">We'll refresh ` +
	`this page when it's ready.</span></center>`

var (
	ErrDeleted    = errors.New("video deleted")
	ErrProcessing = errors.New("video still processing")
)

type Client struct {
	http    httputil.Doer
	baseURL string
}

func New(h httputil.Doer) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	return &Client{http: h, baseURL: baseURL}
}

// Upload scrapes a fresh link id from the landing page, pushes the file
// against it, and returns the id.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	linkID, err := c.generateLinkID(ctx)
	if err != nil {
		return "", err
	}

	body, contentType, err := httputil.MultipartFile("upload_file", filename, "", r,
		map[string]string{"link_id": linkID})
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload_file.php", body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}

	return linkID, nil
}

// IsDeleted reports whether the page carries the deletion marker.
func (c *Client) IsDeleted(ctx context.Context, id string) (bool, error) {
	page, err := c.videoPage(ctx, id)
	if err != nil {
		return false, err
	}
	return deleted(id, page), nil
}

// IsProcessing reports whether the video is still encoding. Returns
// ErrDeleted when the page shows the deletion marker instead.
func (c *Client) IsProcessing(ctx context.Context, id string) (bool, error) {
	page, err := c.videoPage(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted(id, page) {
		return false, fmt.Errorf("video %s: %w", id, ErrDeleted)
	}
	return processing(page), nil
}

// VideoURL scrapes the direct source URL from a ready video page.
func (c *Client) VideoURL(ctx context.Context, id string) (string, error) {
	page, err := c.videoPage(ctx, id)
	if err != nil {
		return "", err
	}
	if deleted(id, page) {
		return "", fmt.Errorf("video %s: %w", id, ErrDeleted)
	}
	if processing(page) {
		return "", fmt.Errorf("video %s: %w", id, ErrProcessing)
	}

	doc, err := htmlq.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	video := htmlq.Find(doc, "video", nil)
	if video == nil {
		return "", fmt.Errorf("video %s: no video tag on page", id)
	}

	src := htmlq.Attr(video, "src")
	if src == "" {
		return "", fmt.Errorf("video %s: video tag missing src", id)
	}
	return src, nil
}

func (c *Client) PageURL(id string) string {
	return fmt.Sprintf("%s/v/%s", c.baseURL, id)
}

func (c *Client) generateLinkID(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch landing page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("fetch landing page: %w", err)
	}

	doc, err := htmlq.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse landing page: %w", err)
	}

	input := findLinkInput(doc)
	if input == nil {
		return "", fmt.Errorf("landing page missing link_id input")
	}

	linkID := htmlq.Attr(input, "value")
	if linkID == "" {
		return "", fmt.Errorf("landing page link_id input has no value")
	}
	return linkID, nil
}

func findLinkInput(doc *html.Node) *html.Node {
	return htmlq.Find(doc, "input", map[string]string{
		"type": "hidden",
		"name": "link_id",
		"id":   "link_id",
	})
}

func (c *Client) videoPage(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(id), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return string(body), nil
}

func deleted(id, page string) bool {
	marker := fmt.Sprintf("<center>This video has been deleted <small><br>id: %s</small></center>", id)
	return strings.Contains(page, marker)
}

func processing(page string) bool {
	return strings.Contains(page, processingMarker)
}
