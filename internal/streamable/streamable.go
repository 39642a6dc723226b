// Package streamable is a client for Streamable's web upload API. An
// upload reserves a shortcode, records the file metadata, pushes the
// bytes to S3 with credentials Streamable issues per upload, and then
// kicks off transcoding. Clipping re-hosts a video from a remote URL
// without downloading it locally.
package streamable

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"vidhost/pkg/htmlq"
	"vidhost/pkg/httputil"
)

const (
	apiURL  = "https://ajax.streamable.com"
	baseURL = "https://streamable.com"

	// Build hash of the streamable.com frontend the shortcode endpoint
	// expects.
	defaultFrontendVersion = "5a6120a04b6db864113d706cc6a6131cb8ca3587"
	defaultUploadRegion    = "us-east-1"
)

var ErrNoVideoMeta = errors.New("no og:video:secure_url meta tag on page")

type Config struct {
	HTTP            httputil.Doer
	UploadRegion    string
	FrontendVersion string
}

type Client struct {
	http    httputil.Doer
	apiURL  string
	baseURL string
	region  string
	version string
}

type VideoData struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	SourceURL string `json:"source_url"`
	Shortcode string `json:"shortcode"`
	URL       string `json:"url"`
}

type credentials struct {
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken"`
}

type transcoderOptions struct {
	URL       string `json:"url"`
	Token     string `json:"token"`
	Shortcode string `json:"shortcode"`
	Size      int64  `json:"size"`
}

type uploadData struct {
	Shortcode         string            `json:"shortcode"`
	Key               string            `json:"key"`
	URL               string            `json:"url"`
	Credentials       credentials       `json:"credentials"`
	TranscoderOptions transcoderOptions `json:"transcoder_options"`
}

type ExtractorData struct {
	Error     string            `json:"error"`
	URL       string            `json:"url"`
	ID        string            `json:"id"`
	Headers   map[string]string `json:"headers"`
	Extractor string            `json:"extractor"`
}

func New(cfg Config) *Client {
	h := cfg.HTTP
	if h == nil {
		h = http.DefaultClient
	}
	region := cfg.UploadRegion
	if region == "" {
		region = defaultUploadRegion
	}
	version := cfg.FrontendVersion
	if version == "" {
		version = defaultFrontendVersion
	}
	return &Client{http: h, apiURL: apiURL, baseURL: baseURL, region: region, version: version}
}

// Upload pushes size bytes from r and returns the transcoding video
// record. r is read twice (hash, then transfer), so it must be seekable.
func (c *Client) Upload(ctx context.Context, r io.ReadSeeker, size int64, filename, title string) (*VideoData, error) {
	upload, err := c.generateShortcode(ctx, size)
	if err != nil {
		return nil, err
	}

	if err := c.updateMetadata(ctx, upload.Shortcode, filename, size, title); err != nil {
		return nil, err
	}

	contentSHA, err := hashReader(r)
	if err != nil {
		return nil, fmt.Errorf("hash video: %w", err)
	}

	if err := c.putS3(ctx, upload, r, size, contentSHA); err != nil {
		return nil, err
	}

	return c.transcodeUpload(ctx, upload.TranscoderOptions)
}

// Clip re-hosts the video behind srcURL.
func (c *Client) Clip(ctx context.Context, srcURL, title string) (*VideoData, error) {
	extracted, err := c.Extract(ctx, srcURL)
	if err != nil {
		return nil, err
	}

	video, err := c.generateClipShortcode(ctx, extracted.ID, srcURL, title)
	if err != nil {
		return nil, err
	}

	if _, err := c.transcodeClip(ctx, video.Shortcode, extracted, title); err != nil {
		return nil, err
	}
	return video, nil
}

// Extract resolves a remote URL to a direct video source via
// Streamable's extractor.
func (c *Client) Extract(ctx context.Context, srcURL string) (*ExtractorData, error) {
	endpoint := c.apiURL + "/extract?" + url.Values{"url": {srcURL}}.Encode()

	var data ExtractorData
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, fmt.Errorf("extract video: %w", err)
	}
	if data.Error != "" {
		return nil, fmt.Errorf("extract video: %s", data.Error)
	}
	return &data, nil
}

// VideoURL scrapes the direct source URL from the video page meta tags.
func (c *Client) VideoURL(ctx context.Context, id string) (string, error) {
	resp, err := c.page(ctx, id)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	doc, err := htmlq.Parse(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	meta := htmlq.Find(doc, "meta", map[string]string{"property": "og:video:secure_url"})
	if meta == nil {
		return "", fmt.Errorf("video %s: %w", id, ErrNoVideoMeta)
	}

	content := htmlq.Attr(meta, "content")
	if content == "" {
		return "", fmt.Errorf("video %s: meta tag missing content", id)
	}
	return content, nil
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

// Processing reports whether the page still lacks its player content.
func (c *Client) Processing(ctx context.Context, id string) (bool, error) {
	resp, err := c.page(ctx, id)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return false, fmt.Errorf("fetch page: %w", err)
	}

	doc, err := htmlq.Parse(resp.Body)
	if err != nil {
		return false, fmt.Errorf("parse page: %w", err)
	}
	return htmlq.Find(doc, "div", map[string]string{"id": "player-content"}) == nil, nil
}

func (c *Client) PageURL(shortcode string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, shortcode)
}

func (c *Client) generateShortcode(ctx context.Context, size int64) (*uploadData, error) {
	endpoint := c.apiURL + "/shortcode?" + url.Values{
		"version": {c.version},
		"size":    {strconv.FormatInt(size, 10)},
	}.Encode()

	var data uploadData
	if err := c.getJSON(ctx, endpoint, &data); err != nil {
		return nil, fmt.Errorf("generate shortcode: %w", err)
	}
	if data.Shortcode == "" {
		return nil, fmt.Errorf("generate shortcode: response missing shortcode")
	}
	return &data, nil
}

func (c *Client) updateMetadata(ctx context.Context, shortcode, filename string, size int64, title string) error {
	if title == "" {
		title = strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	}
	payload := map[string]any{
		"original_name": filename,
		"original_size": size,
		"title":         title,
		"upload_source": "web",
	}

	endpoint := c.apiURL + "/videos/" + shortcode + "?purge="
	if err := c.sendJSON(ctx, http.MethodPut, endpoint, payload, nil); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

func (c *Client) putS3(ctx context.Context, upload *uploadData, r io.Reader, size int64, contentSHA string) error {
	target, err := url.Parse(upload.URL)
	if err != nil {
		return fmt.Errorf("parse upload url: %w", err)
	}

	now := time.Now().UTC()
	headers := map[string]string{
		"Host":                 target.Host,
		"Content-Type":         "application/octet-stream",
		"X-AMZ-ACL":            "public-read",
		"X-AMZ-Content-SHA256": contentSHA,
		"X-AMZ-Security-Token": upload.Credentials.SessionToken,
		"X-AMZ-Date":           now.Format("20060102T150405Z"),
	}

	authorization, err := awsAuthorization(http.MethodPut, headers, now,
		upload.Credentials.AccessKeyID, upload.Credentials.SecretAccessKey,
		"/"+upload.Key, url.Values{}, c.region, "s3")
	if err != nil {
		return fmt.Errorf("sign upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.TranscoderOptions.URL, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	for k, v := range headers {
		if k == "Host" {
			continue
		}
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", authorization)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload to bucket: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return fmt.Errorf("upload to bucket: %w", err)
	}
	return nil
}

func (c *Client) transcodeUpload(ctx context.Context, opts transcoderOptions) (*VideoData, error) {
	payload := map[string]any{
		"shortcode":     opts.Shortcode,
		"size":          opts.Size,
		"token":         opts.Token,
		"upload_source": "web",
		"url":           opts.URL,
	}

	var video VideoData
	endpoint := c.apiURL + "/transcode/" + opts.Shortcode
	if err := c.sendJSON(ctx, http.MethodPost, endpoint, payload, &video); err != nil {
		return nil, fmt.Errorf("transcode upload: %w", err)
	}
	return &video, nil
}

func (c *Client) generateClipShortcode(ctx context.Context, extractID, source, title string) (*VideoData, error) {
	extractor := "generic"
	if strings.HasPrefix(source, "https://streamable.com") {
		extractor = "streamable"
	}

	payload := map[string]any{
		"extract_id":    extractID,
		"extractor":     extractor,
		"source":        source,
		"status":        1,
		"title":         nullable(title),
		"upload_source": "clip",
	}

	var video VideoData
	if err := c.sendJSON(ctx, http.MethodPost, c.apiURL+"/videos", payload, &video); err != nil {
		return nil, fmt.Errorf("generate clip shortcode: %w", err)
	}
	if video.Shortcode == "" {
		return nil, fmt.Errorf("generate clip shortcode: response missing shortcode")
	}
	return &video, nil
}

func (c *Client) transcodeClip(ctx context.Context, shortcode string, extracted *ExtractorData, title string) (*VideoData, error) {
	payload := map[string]any{
		"extractor":     extracted.Extractor,
		"headers":       extracted.Headers,
		"mute":          false,
		"shortcode":     shortcode,
		"thumb_offset":  nil,
		"title":         nullable(title),
		"upload_source": "clip",
		"url":           extracted.URL,
	}

	var video VideoData
	endpoint := c.apiURL + "/transcode/" + shortcode
	if err := c.sendJSON(ctx, http.MethodPost, endpoint, payload, &video); err != nil {
		return nil, fmt.Errorf("transcode clip: %w", err)
	}
	return &video, nil
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

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.sendJSON(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) sendJSON(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func hashReader(r io.ReadSeeker) (string, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
