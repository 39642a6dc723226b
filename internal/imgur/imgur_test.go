package imgur

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Config{HTTP: server.Client(), ClientID: "test-id"})
	c.apiURL = server.URL
	c.baseURL = server.URL
	return c
}

func TestUploadMediaImage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/image" {
			t.Errorf("path = %q, want /3/image", r.URL.Path)
		}
		if got := r.URL.Query().Get("client_id"); got != "test-id" {
			t.Errorf("client_id = %q, want test-id", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("image part: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Header.Get("Content-Type") != "image/png" {
			t.Errorf("part content type = %q, want image/png", header.Header.Get("Content-Type"))
		}
		fmt.Fprint(w, `{"status":200,"success":true,"data":{"id":"img1","deletehash":"del1","link":"https://i.imgur.com/img1.png"}}`)
	}))

	result, err := c.UploadMedia(context.Background(), strings.NewReader("png-bytes"), "shot.png", "")
	if err != nil {
		t.Fatalf("UploadMedia() error: %v", err)
	}
	if result.ID != "img1" || result.DeleteHash != "del1" {
		t.Errorf("result = %+v, want id=img1 deletehash=del1", result)
	}
	if result.Ticket != "" {
		t.Errorf("Ticket = %q, want empty for images", result.Ticket)
	}
}

func TestUploadMediaVideo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if _, _, err := r.FormFile("video"); err != nil {
			t.Fatalf("video part: %v", err)
		}
		fmt.Fprint(w, `{"status":200,"success":true,"data":{"ticket":"tkt9"}}`)
	}))

	result, err := c.UploadMedia(context.Background(), strings.NewReader("mp4-bytes"), "clip.mp4", "")
	if err != nil {
		t.Fatalf("UploadMedia() error: %v", err)
	}
	if result.Ticket != "tkt9" {
		t.Errorf("Ticket = %q, want tkt9", result.Ticket)
	}
}

func TestUploadMediaUnsupportedMIME(t *testing.T) {
	c := New(Config{})
	_, err := c.UploadMedia(context.Background(), strings.NewReader("x"), "notes.txt", "")
	if !errors.Is(err, ErrUnsupportedMIME) {
		t.Fatalf("UploadMedia() error = %v, want ErrUnsupportedMIME", err)
	}
}

func TestPollTickets(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload/poll" {
			t.Errorf("path = %q, want /upload/poll", r.URL.Path)
		}
		got := r.URL.Query()["tickets[]"]
		if len(got) != 2 || got[0] != "tkt1" || got[1] != "tkt2" {
			t.Errorf("tickets[] = %v, want [tkt1 tkt2]", got)
		}
		fmt.Fprint(w, `{"status":200,"success":true,"data":{"done":{"tkt1":"img1"},"images":{"img1":{"deletehash":"del1","ext":".mp4"}}}}`)
	}))

	result, err := c.PollTickets(context.Background(), "tkt1", "tkt2")
	if err != nil {
		t.Fatalf("PollTickets() error: %v", err)
	}
	if result.Done["tkt1"] != "img1" {
		t.Errorf("Done = %v, want tkt1->img1", result.Done)
	}
	if result.Images["img1"].DeleteHash != "del1" {
		t.Errorf("Images = %v, want img1 deletehash del1", result.Images)
	}
}

func TestGenerateAlbumAndAdd(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/3/album":
			fmt.Fprint(w, `{"status":200,"success":true,"data":{"id":"alb1","deletehash":"albdel"}}`)
		case "/3/album/albdel/add":
			var payload struct {
				DeleteHashes []string `json:"deletehashes"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode add request: %v", err)
			}
			if len(payload.DeleteHashes) != 2 {
				t.Errorf("deletehashes = %v, want 2 entries", payload.DeleteHashes)
			}
			fmt.Fprint(w, `{"status":200,"success":true,"data":true}`)
		default:
			http.NotFound(w, r)
		}
	}))

	album, err := c.GenerateAlbum(context.Background())
	if err != nil {
		t.Fatalf("GenerateAlbum() error: %v", err)
	}
	if album.ID != "alb1" || album.DeleteHash != "albdel" {
		t.Errorf("album = %+v", album)
	}

	if err := c.AddToAlbum(context.Background(), album.DeleteHash, "del1", "del2"); err != nil {
		t.Fatalf("AddToAlbum() error: %v", err)
	}
}

func TestUpdateMedia(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		if r.URL.Path != "/3/image/del1" {
			t.Errorf("path = %q, want /3/image/del1", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode update request: %v", err)
		}
		if payload["title"] != "new title" {
			t.Errorf("title = %v, want new title", payload["title"])
		}
		if _, ok := payload["description"]; ok {
			t.Error("description should be omitted when unset")
		}
		fmt.Fprint(w, `{"status":200,"success":true,"data":true}`)
	}))

	err := c.UpdateMedia(context.Background(), "del1", UpdateOptions{Title: "new title"})
	if err != nil {
		t.Fatalf("UpdateMedia() error: %v", err)
	}
}

func TestMedia(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/post/v1/media/img1" {
			t.Errorf("path = %q, want /post/v1/media/img1", r.URL.Path)
		}
		if got := r.URL.Query().Get("include"); got != "media" {
			t.Errorf("include = %q, want media", got)
		}
		// Not enveloped.
		fmt.Fprint(w, `{"id":"img1","title":"clip","media":[{"id":"m1","url":"https://i.imgur.com/img1.mp4","mime_type":"video/mp4"}]}`)
	}))

	media, err := c.Media(context.Background(), "img1")
	if err != nil {
		t.Fatalf("Media() error: %v", err)
	}
	if len(media.Media) != 1 || media.Media[0].URL != "https://i.imgur.com/img1.mp4" {
		t.Errorf("media = %+v", media)
	}
}

func TestCheckCaptcha(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode captcha request: %v", err)
		}
		if payload["g-recaptcha-response"] != nil {
			t.Errorf("g-recaptcha-response = %v, want null", payload["g-recaptcha-response"])
		}
		if payload["total_upload"] != float64(2) {
			t.Errorf("total_upload = %v, want 2", payload["total_upload"])
		}
		fmt.Fprint(w, `{"status":200,"success":true,"data":{"OverLimit":0,"UploadCount":2}}`)
	}))

	result, err := c.CheckCaptcha(context.Background(), 2, "")
	if err != nil {
		t.Fatalf("CheckCaptcha() error: %v", err)
	}
	if result.UploadCount != 2 {
		t.Errorf("UploadCount = %d, want 2", result.UploadCount)
	}
}
