package httputil

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"sort"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, `\"`)

// GuessMIME maps a filename extension to a MIME type, falling back to
// application/octet-stream.
func GuessMIME(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}

// MultipartFile builds a multipart/form-data body with one file part and
// optional extra string fields. The extra fields precede the file part:
// S3-style form endpoints ignore fields that follow the file. The file
// part carries mimeType (guessed from the filename when empty). Returns
// the body and its Content-Type.
func MultipartFile(field, filename, mimeType string, r io.Reader, extra map[string]string) (*bytes.Buffer, string, error) {
	if mimeType == "" {
		mimeType = GuessMIME(filename)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writer.WriteField(k, extra[k]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	header.Set("Content-Type", mimeType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, "", fmt.Errorf("copy file: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}

	return body, writer.FormDataContentType(), nil
}
