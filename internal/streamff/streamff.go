// Package streamff is a client for the streamff.com anonymous video host.
package streamff

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"vidhost/pkg/httputil"
)

const baseURL = "https://streamff.com"

type Client struct {
	http    httputil.Doer
	baseURL string
}

// Video is the record streamff keeps per upload. The publicURl key is
// misspelled by the API itself.
type Video struct {
	Name      string `json:"name"`
	VideoLink string `json:"videoLink"`
	PublicURL string `json:"publicURl"`
	Views     int    `json:"views"`
	Uploaded  bool   `json:"uploaded"`
	Date      string `json:"date"`
}

func New(h httputil.Doer) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	return &Client{http: h, baseURL: baseURL}
}

// Upload reserves a video id, pushes the file to it, and returns the id.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	id, err := c.generateLink(ctx)
	if err != nil {
		return "", err
	}

	body, contentType, err := httputil.MultipartFile("file", filename, "", r, nil)
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/videos/upload/%s", c.baseURL, id), body)
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

	return id, nil
}

// Video fetches the stored record for an uploaded video.
func (c *Client) Video(ctx context.Context, id string) (*Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/videos/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch video: %w", err)
	}

	var v Video
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("decode video: %w", err)
	}
	return &v, nil
}

func (c *Client) PageURL(id string) string {
	return fmt.Sprintf("%s/v/%s", c.baseURL, id)
}

func (c *Client) generateLink(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/videos/generate-link", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate link: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("generate link: %w", err)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read link id: %w", err)
	}

	id := strings.TrimSpace(string(raw))
	if id == "" {
		return "", fmt.Errorf("generate link: empty video id")
	}
	return id, nil
}
