// Package hosting defines the shared shape of a hosted video and
// aggregates the per-platform clients behind one service.
package hosting

import "io"

const (
	PlatformDubz           = "dubz"
	PlatformGfyCat         = "gfycat"
	PlatformImgur          = "imgur"
	PlatformJustStreamLive = "juststreamlive"
	PlatformStreamable     = "streamable"
	PlatformStreamff       = "streamff"
	PlatformStreamja       = "streamja"
)

const defaultFilename = "video.mp4"

// UploadRequest describes one video to push to a platform. Either
// FilePath or Reader+Size must be set; Filename defaults to video.mp4.
type UploadRequest struct {
	FilePath string
	Reader   io.ReadSeeker
	Size     int64
	Filename string
	Title    string
}

// HostedVideo is the reference a platform hands back after a successful
// upload: it exists only once the full call chain succeeded.
type HostedVideo struct {
	Platform string
	ID       string
	URL      string
	EmbedURL string
}

type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusDeleted    Status = "deleted"
	StatusError      Status = "error"
	StatusUnknown    Status = "unknown"
)
