package gfycat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// newTestClient points every gfycat endpoint at the one test server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Config{HTTP: server.Client(), AccessKey: "test-key"})
	c.apiURL = server.URL
	c.webloginURL = server.URL
	c.filedropURL = server.URL
	return c
}

func serveToken(t *testing.T, w http.ResponseWriter, r *http.Request) {
	t.Helper()
	var payload struct {
		AccessKey string `json:"access_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		t.Fatalf("decode token request: %v", err)
	}
	if payload.AccessKey != "test-key" {
		t.Errorf("access_key = %q, want test-key", payload.AccessKey)
	}
	fmt.Fprint(w, `{"access_token":"tok-1","expires_in":3600,"token_type":"Bearer"}`)
}

func TestCreatePost(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/webtoken":
			serveToken(t, w, r)
		case "/v1/gfycats":
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Errorf("Authorization = %q, want Bearer tok-1", got)
			}
			var payload struct {
				KeepAudio bool   `json:"keepAudio"`
				Private   bool   `json:"private"`
				Title     string `json:"title"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode post request: %v", err)
			}
			if !payload.KeepAudio || !payload.Private || payload.Title != "my clip" {
				t.Errorf("payload = %+v, want keepAudio, private, title=my clip", payload)
			}
			fmt.Fprint(w, `{"gfyname":"ThreeWordName","secret":"s3cret","uploadType":"filedrop.gfycat.com"}`)
		default:
			http.NotFound(w, r)
		}
	}))

	post, err := c.CreatePost(context.Background(), "my clip", true, true)
	if err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}
	if post.GfyName != "ThreeWordName" {
		t.Errorf("GfyName = %q, want ThreeWordName", post.GfyName)
	}
}

func TestTokenReuse(t *testing.T) {
	var tokenCalls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/webtoken":
			tokenCalls.Add(1)
			serveToken(t, w, r)
		default:
			fmt.Fprint(w, `{"task":"complete","gfyname":"ThreeWordName"}`)
		}
	}))

	for range 3 {
		if _, err := c.Status(context.Background(), "ThreeWordName"); err != nil {
			t.Fatalf("Status() error: %v", err)
		}
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestUpload(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("key"); got != "ThreeWordName" {
			t.Errorf("key = %q, want ThreeWordName", got)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("file part: %v", err)
		}
		defer func() { _ = file.Close() }()
		data, _ := io.ReadAll(file)
		if string(data) != "video-bytes" {
			t.Errorf("file content = %q, want video-bytes", data)
		}
	}))

	err := c.Upload(context.Background(), "ThreeWordName", strings.NewReader("video-bytes"), "clip.mp4")
	if err != nil {
		t.Fatalf("Upload() error: %v", err)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantTask string
	}{
		{"complete", `{"task":"complete","gfyname":"ThreeWordName"}`, TaskComplete},
		{"encoding", `{"task":"encoding","time":12}`, TaskEncoding},
		{"not found", `{"task":"NouFoundo"}`, TaskNotFound},
		{"error", `{"task":"error","errorMessage":{"code":"415","description":"bad file"}}`, TaskError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/oauth/webtoken" {
					serveToken(t, w, r)
					return
				}
				fmt.Fprint(w, tt.response)
			}))

			status, err := c.Status(context.Background(), "ThreeWordName")
			if err != nil {
				t.Fatalf("Status() error: %v", err)
			}
			if status.Task != tt.wantTask {
				t.Errorf("Task = %q, want %q", status.Task, tt.wantTask)
			}
		})
	}
}

func TestPostInfo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/webtoken" {
			serveToken(t, w, r)
			return
		}
		if r.URL.Path != "/v1/gfycats/ThreeWordName" {
			t.Errorf("path = %q, want /v1/gfycats/ThreeWordName", r.URL.Path)
		}
		fmt.Fprint(w, `{"gfyItem":{"gfyId":"threewordname","gfyName":"ThreeWordName","mp4Url":"https://giant.gfycat.com/ThreeWordName.mp4","width":1280,"height":720}}`)
	}))

	item, err := c.PostInfo(context.Background(), "ThreeWordName")
	if err != nil {
		t.Fatalf("PostInfo() error: %v", err)
	}
	if item.Mp4URL != "https://giant.gfycat.com/ThreeWordName.mp4" {
		t.Errorf("Mp4URL = %q", item.Mp4URL)
	}
	if item.Width != 1280 {
		t.Errorf("Width = %d, want 1280", item.Width)
	}
}
