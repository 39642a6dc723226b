// Package gfycat is a client for the GfyCat API, authenticated with the
// anonymous web token the gfycat.com frontend uses.
package gfycat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"vidhost/pkg/httputil"
)

const (
	apiURL      = "https://api.gfycat.com"
	webloginURL = "https://weblogin.gfycat.com"
	filedropURL = "https://filedrop.gfycat.com"
	pageURL     = "https://gfycat.com"

	// Access key the public web frontend presents to mint anonymous
	// tokens.
	defaultAccessKey = "Anr96uuqt9EdamSCwK4txKPjMsf2M95Rfa5FLLhPFucu8H5HTzeutyAa"
)

// Task values reported by the upload status endpoint. NouFoundo is what
// the API actually returns for unknown gfy names.
const (
	TaskComplete = "complete"
	TaskEncoding = "encoding"
	TaskError    = "error"
	TaskNotFound = "NouFoundo"
)

type Config struct {
	HTTP      httputil.Doer
	AccessKey string
}

type Client struct {
	http        httputil.Doer
	apiURL      string
	webloginURL string
	filedropURL string
	accessKey   string
	tokens      oauth2.TokenSource
}

// NewPost is a freshly reserved gfy name awaiting its file.
type NewPost struct {
	GfyName    string `json:"gfyname"`
	Secret     string `json:"secret"`
	UploadType string `json:"uploadType"`
}

type UploadError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type UploadStatus struct {
	Task         string       `json:"task"`
	Time         int          `json:"time"`
	GfyName      string       `json:"gfyname"`
	ErrorMessage *UploadError `json:"errorMessage"`
}

// Item is the subset of a gfy post's metadata the library exposes.
type Item struct {
	GfyID     string `json:"gfyId"`
	GfyName   string `json:"gfyName"`
	Mp4URL    string `json:"mp4Url"`
	WebmURL   string `json:"webmUrl"`
	PosterURL string `json:"posterUrl"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Mp4Size   int    `json:"mp4Size"`
	WebmSize  int    `json:"webmSize"`
	Views     int    `json:"views"`
	Published int    `json:"published"`
}

func New(cfg Config) *Client {
	h := cfg.HTTP
	if h == nil {
		h = http.DefaultClient
	}
	key := cfg.AccessKey
	if key == "" {
		key = defaultAccessKey
	}

	c := &Client{
		http:        h,
		apiURL:      apiURL,
		webloginURL: webloginURL,
		filedropURL: filedropURL,
		accessKey:   key,
	}
	c.tokens = oauth2.ReuseTokenSource(nil, &webTokenSource{client: c})
	return c
}

// CreatePost reserves a gfy name for a subsequent file upload.
func (c *Client) CreatePost(ctx context.Context, title string, keepAudio, private bool) (*NewPost, error) {
	payload := map[string]any{
		"keepAudio": keepAudio,
		"private":   private,
		"title":     title,
	}

	var post NewPost
	if err := c.doJSON(ctx, http.MethodPost, c.apiURL+"/v1/gfycats", payload, &post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	if post.GfyName == "" {
		return nil, fmt.Errorf("create post: response missing gfyname")
	}
	return &post, nil
}

// Upload pushes the file to the filedrop endpoint under the reserved
// gfy name.
func (c *Client) Upload(ctx context.Context, gfyName string, r io.Reader, filename string) error {
	body, contentType, err := httputil.MultipartFile("file", filename, "", r,
		map[string]string{"key": gfyName})
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.filedropURL+"/", body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return fmt.Errorf("upload video: %w", err)
	}
	return nil
}

// Status reports the encoding state of an uploaded gfy.
func (c *Client) Status(ctx context.Context, gfyID string) (*UploadStatus, error) {
	var status UploadStatus
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL+"/v1/gfycats/fetch/status/"+gfyID, nil, &status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	return &status, nil
}

// PostInfo fetches the metadata of a published gfy.
func (c *Client) PostInfo(ctx context.Context, gfyID string) (*Item, error) {
	var wrapper struct {
		GfyItem Item `json:"gfyItem"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.apiURL+"/v1/gfycats/"+gfyID, nil, &wrapper); err != nil {
		return nil, fmt.Errorf("fetch post info: %w", err)
	}
	return &wrapper.GfyItem, nil
}

func (c *Client) PageURL(gfyName string) string {
	return fmt.Sprintf("%s/%s", pageURL, gfyName)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
