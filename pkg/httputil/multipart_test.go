package httputil

import (
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"
)

func TestGuessMIME(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"clip.mp4", "video/mp4"},
		{"shot.png", "image/png"},
		{"mystery.bin", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GuessMIME(tt.filename); got != tt.want {
			t.Errorf("GuessMIME(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestMultipartFile(t *testing.T) {
	body, contentType, err := MultipartFile("file", "clip.mp4", "", strings.NewReader("video-bytes"),
		map[string]string{"key": "abc"})
	if err != nil {
		t.Fatalf("MultipartFile() error: %v", err)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("parse content type: %v", err)
	}
	if mediaType != "multipart/form-data" {
		t.Errorf("media type = %q, want multipart/form-data", mediaType)
	}

	reader := multipart.NewReader(body, params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}

	files := form.File["file"]
	if len(files) != 1 {
		t.Fatalf("file parts = %d, want 1", len(files))
	}
	if files[0].Filename != "clip.mp4" {
		t.Errorf("filename = %q, want clip.mp4", files[0].Filename)
	}
	if got := files[0].Header.Get("Content-Type"); got != "video/mp4" {
		t.Errorf("part content type = %q, want video/mp4", got)
	}

	f, err := files[0].Open()
	if err != nil {
		t.Fatalf("open part: %v", err)
	}
	defer func() { _ = f.Close() }()
	data, _ := io.ReadAll(f)
	if string(data) != "video-bytes" {
		t.Errorf("file content = %q, want video-bytes", data)
	}

	if got := form.Value["key"]; len(got) != 1 || got[0] != "abc" {
		t.Errorf("key field = %v, want [abc]", got)
	}
}

// Extra fields must come before the file part: filedrop-style form
// endpoints stop reading fields once the file arrives.
func TestMultipartFileFieldOrder(t *testing.T) {
	body, contentType, err := MultipartFile("file", "clip.mp4", "", strings.NewReader("video-bytes"),
		map[string]string{"key": "GfyName"})
	if err != nil {
		t.Fatalf("MultipartFile() error: %v", err)
	}

	_, params, _ := mime.ParseMediaType(contentType)
	reader := multipart.NewReader(body, params["boundary"])

	var order []string
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("next part: %v", err)
		}
		order = append(order, part.FormName())
	}

	if len(order) != 2 || order[0] != "key" || order[1] != "file" {
		t.Errorf("part order = %v, want [key file]", order)
	}
}

func TestMultipartFileQuotedFilename(t *testing.T) {
	body, contentType, err := MultipartFile("file", `cli"p.mp4`, "video/mp4", strings.NewReader("x"), nil)
	if err != nil {
		t.Fatalf("MultipartFile() error: %v", err)
	}

	_, params, _ := mime.ParseMediaType(contentType)
	reader := multipart.NewReader(body, params["boundary"])
	form, err := reader.ReadForm(1 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}

	files := form.File["file"]
	if len(files) != 1 {
		t.Fatalf("file parts = %d, want 1", len(files))
	}
	if files[0].Filename != `cli"p.mp4` {
		t.Errorf("filename = %q, want %q", files[0].Filename, `cli"p.mp4`)
	}
}

func TestMultipartFileExplicitMIME(t *testing.T) {
	body, contentType, err := MultipartFile("file", "data", "video/webm", strings.NewReader("x"), nil)
	if err != nil {
		t.Fatalf("MultipartFile() error: %v", err)
	}

	_, params, _ := mime.ParseMediaType(contentType)
	reader := multipart.NewReader(body, params["boundary"])
	part, err := reader.NextPart()
	if err != nil {
		t.Fatalf("next part: %v", err)
	}
	if got := part.Header.Get("Content-Type"); got != "video/webm" {
		t.Errorf("part content type = %q, want video/webm", got)
	}
}
