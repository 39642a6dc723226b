// Package juststreamlive is a client for the juststream.live video host.
package juststreamlive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"vidhost/pkg/httputil"
)

const (
	apiURL  = "https://api.juststream.live"
	baseURL = "https://juststream.live"
)

// Upload states reported by the details endpoint.
const (
	StateSubmitted  = "SUBMITTED"
	StateProcessing = "PROCESSING"
	StateComplete   = "COMPLETE"
)

type Client struct {
	http    httputil.Doer
	apiURL  string
	baseURL string
}

type Details struct {
	VideoID   string `json:"video_id"`
	Title     string `json:"video_title"`
	Status    string `json:"status"`
	Views     int    `json:"views"`
	CreatedAt string `json:"created_at"`
}

func New(h httputil.Doer) *Client {
	if h == nil {
		h = http.DefaultClient
	}
	return &Client{http: h, apiURL: apiURL, baseURL: baseURL}
}

// Upload pushes the file and returns the assigned video id.
func (c *Client) Upload(ctx context.Context, r io.Reader, filename string) (string, error) {
	body, contentType, err := httputil.MultipartFile("file", filename, "", r, nil)
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/videos/upload", body)
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

	var data struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("decode upload response: %w", err)
	}
	if data.ID == "" {
		return "", fmt.Errorf("upload video: response missing id")
	}
	return data.ID, nil
}

func (c *Client) Details(ctx context.Context, id string) (*Details, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/videos/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("fetch details: %w", err)
	}

	var d Details
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return &d, nil
}

func (c *Client) PageURL(id string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, id)
}
