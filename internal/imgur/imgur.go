// Package imgur is a client for Imgur's anonymous web upload API, the
// same surface the imgur.com frontend uses with its public client id.
// Image uploads return media directly; video uploads return a ticket
// that must be polled until transcoding assigns the final id.
package imgur

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"vidhost/pkg/httputil"
)

const (
	apiURL  = "https://api.imgur.com"
	baseURL = "https://imgur.com"

	// Client id of the anonymous web uploader.
	defaultClientID = "546c25a59c58ad7"
)

var ErrUnsupportedMIME = errors.New("media must be an image or video")

type Config struct {
	HTTP     httputil.Doer
	ClientID string

	// Endpoint overrides, empty for the live service.
	APIURL  string
	BaseURL string
}

type Client struct {
	http     httputil.Doer
	apiURL   string
	baseURL  string
	clientID string
}

// UploadResult is the union Imgur returns from /3/image: images carry
// the final media record, videos only a transcoding ticket.
type UploadResult struct {
	ID         string `json:"id"`
	DeleteHash string `json:"deletehash"`
	Link       string `json:"link"`
	Ticket     string `json:"ticket"`
}

type PollImage struct {
	DeleteHash string `json:"deletehash"`
	Ext        string `json:"ext"`
	Size       string `json:"size"`
	Width      string `json:"width"`
	Height     string `json:"height"`
}

// PollResult maps finished tickets to image ids.
type PollResult struct {
	Done   map[string]string    `json:"done"`
	Images map[string]PollImage `json:"images"`
}

type Album struct {
	ID         string `json:"id"`
	DeleteHash string `json:"deletehash"`
}

type MediaMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsAnimated  bool   `json:"is_animated"`
	Duration    int    `json:"duration"`
	HasSound    bool   `json:"has_sound"`
}

type MediaItem struct {
	ID       string        `json:"id"`
	MimeType string        `json:"mime_type"`
	Type     string        `json:"type"`
	Name     string        `json:"name"`
	URL      string        `json:"url"`
	Ext      string        `json:"ext"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Size     int           `json:"size"`
	Metadata MediaMetadata `json:"metadata"`
}

type Media struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	IsAlbum     bool        `json:"is_album"`
	CoverID     string      `json:"cover_id"`
	URL         string      `json:"url"`
	Privacy     string      `json:"privacy"`
	CreatedAt   string      `json:"created_at"`
	Media       []MediaItem `json:"media"`
}

type CaptchaResult struct {
	OverLimit   int    `json:"OverLimit"`
	UploadCount int    `json:"UploadCount"`
	Message     string `json:"message"`
}

// UpdateOptions carries the optional fields of album and media updates;
// zero values are omitted from the request.
type UpdateOptions struct {
	Title        string
	Description  string
	CoverID      string
	DeleteHashes []string
}

func New(cfg Config) *Client {
	h := cfg.HTTP
	if h == nil {
		h = http.DefaultClient
	}
	id := cfg.ClientID
	if id == "" {
		id = defaultClientID
	}
	api := cfg.APIURL
	if api == "" {
		api = apiURL
	}
	base := cfg.BaseURL
	if base == "" {
		base = baseURL
	}
	return &Client{http: h, apiURL: api, baseURL: base, clientID: id}
}

// UploadMedia pushes an image or video. The field name Imgur expects
// depends on the MIME type, which is guessed from the filename when not
// given.
func (c *Client) UploadMedia(ctx context.Context, r io.Reader, filename, mimeType string) (*UploadResult, error) {
	if mimeType == "" {
		mimeType = httputil.GuessMIME(filename)
	}

	var field string
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		field = "image"
	case strings.HasPrefix(mimeType, "video/"):
		field = "video"
	default:
		return nil, fmt.Errorf("%s: %w", mimeType, ErrUnsupportedMIME)
	}

	body, contentType, err := httputil.MultipartFile(field, filename, mimeType, r, nil)
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.apiURL, "/3/image", nil), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := httputil.CheckStatus(resp); err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	var result UploadResult
	if err := decodeData(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	return &result, nil
}

// PollTickets checks which upload tickets have finished transcoding.
func (c *Client) PollTickets(ctx context.Context, tickets ...string) (*PollResult, error) {
	params := url.Values{}
	for _, t := range tickets {
		params.Add("tickets[]", t)
	}

	var result PollResult
	if err := c.getJSON(ctx, c.endpoint(c.baseURL, "/upload/poll", params), &result); err != nil {
		return nil, fmt.Errorf("poll tickets: %w", err)
	}
	return &result, nil
}

// GenerateAlbum creates an empty anonymous album.
func (c *Client) GenerateAlbum(ctx context.Context) (*Album, error) {
	var album Album
	if err := c.postJSON(ctx, c.endpoint(c.apiURL, "/3/album", nil), map[string]any{}, &album); err != nil {
		return nil, fmt.Errorf("generate album: %w", err)
	}
	return &album, nil
}

// AddToAlbum attaches uploaded media to an album by delete hashes.
func (c *Client) AddToAlbum(ctx context.Context, albumDeleteHash string, deleteHashes ...string) error {
	payload := map[string]any{"deletehashes": deleteHashes}
	endpoint := c.endpoint(c.apiURL, "/3/album/"+albumDeleteHash+"/add", nil)
	if err := c.postJSON(ctx, endpoint, payload, nil); err != nil {
		return fmt.Errorf("add to album: %w", err)
	}
	return nil
}

func (c *Client) UpdateAlbum(ctx context.Context, albumDeleteHash string, opts UpdateOptions) error {
	payload := map[string]any{}
	if opts.Title != "" {
		payload["title"] = opts.Title
	}
	if opts.Description != "" {
		payload["description"] = opts.Description
	}
	if opts.CoverID != "" {
		payload["cover"] = opts.CoverID
	}
	if len(opts.DeleteHashes) > 0 {
		payload["deletehashes"] = opts.DeleteHashes
	}

	endpoint := c.endpoint(c.apiURL, "/3/album/"+albumDeleteHash, nil)
	if err := c.putJSON(ctx, endpoint, payload); err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	return nil
}

func (c *Client) UpdateMedia(ctx context.Context, deleteHash string, opts UpdateOptions) error {
	payload := map[string]any{}
	if opts.Title != "" {
		payload["title"] = opts.Title
	}
	if opts.Description != "" {
		payload["description"] = opts.Description
	}

	endpoint := c.endpoint(c.apiURL, "/3/image/"+deleteHash, nil)
	if err := c.putJSON(ctx, endpoint, payload); err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	return nil
}

// Media fetches a single post's metadata.
func (c *Client) Media(ctx context.Context, id string) (*Media, error) {
	params := url.Values{"include": {"media"}}
	var media Media
	if err := c.getJSONRaw(ctx, c.endpoint(c.apiURL, "/post/v1/media/"+id, params), &media); err != nil {
		return nil, fmt.Errorf("fetch media: %w", err)
	}
	return &media, nil
}

// AlbumMedia fetches an album with its contained media.
func (c *Client) AlbumMedia(ctx context.Context, albumID string) (*Media, error) {
	params := url.Values{"include": {"media"}}
	var media Media
	if err := c.getJSONRaw(ctx, c.endpoint(c.apiURL, "/post/v1/albums/"+albumID, params), &media); err != nil {
		return nil, fmt.Errorf("fetch album media: %w", err)
	}
	return &media, nil
}

// CheckCaptcha reports whether the anonymous upload quota requires a
// captcha for the given upload count.
func (c *Client) CheckCaptcha(ctx context.Context, totalUpload int, recaptchaResponse string) (*CaptchaResult, error) {
	payload := map[string]any{
		"g-recaptcha-response": nil,
		"total_upload":         totalUpload,
	}
	if recaptchaResponse != "" {
		payload["g-recaptcha-response"] = recaptchaResponse
	}

	var result CaptchaResult
	if err := c.postJSON(ctx, c.endpoint(c.apiURL, "/3/upload/checkcaptcha", nil), payload, &result); err != nil {
		return nil, fmt.Errorf("check captcha: %w", err)
	}
	return &result, nil
}

func (c *Client) PageURL(id string) string {
	return fmt.Sprintf("%s/%s", c.baseURL, id)
}

func (c *Client) AlbumURL(albumID string) string {
	return fmt.Sprintf("%s/a/%s", c.baseURL, albumID)
}

// endpoint appends the client_id to every request.
func (c *Client) endpoint(base, path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("client_id", c.clientID)
	return base + path + "?" + params.Encode()
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out, true)
}

// getJSONRaw decodes endpoints that return the record directly instead
// of the {status, success, data} envelope.
func (c *Client) getJSONRaw(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out, false)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, payload, out, true)
}

func (c *Client) putJSON(ctx context.Context, endpoint string, payload any) error {
	return c.do(ctx, http.MethodPut, endpoint, payload, nil, true)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, out any, enveloped bool) error {
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
	if !enveloped {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return decodeData(resp.Body, out)
}

// decodeData unwraps Imgur's {status, success, data} envelope.
func decodeData(r io.Reader, out any) error {
	var envelope struct {
		Status  int             `json:"status"`
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
