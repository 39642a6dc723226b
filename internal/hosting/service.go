package hosting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidhost/internal/dubz"
	"vidhost/internal/gfycat"
	"vidhost/internal/imgur"
	"vidhost/internal/juststreamlive"
	"vidhost/internal/streamable"
	"vidhost/internal/streamff"
	"vidhost/internal/streamja"
	"vidhost/pkg/config"
	"vidhost/pkg/httputil"
)

var (
	ErrUnknownPlatform = errors.New("unknown platform")
	ErrUnsupported     = errors.New("operation not supported on this platform")
)

const imgurPollInterval = 2 * time.Second

// Service aggregates every platform client behind one shared session so
// a single rate limiter and retry policy covers all outbound traffic.
type Service struct {
	Dubz           *dubz.Client
	GfyCat         *gfycat.Client
	Imgur          *imgur.Client
	JustStreamLive *juststreamlive.Client
	Streamable     *streamable.Client
	Streamff       *streamff.Client
	Streamja       *streamja.Client

	cfg   *config.Config
	hosts map[string]host
}

// Capability describes which operations a platform supports.
type Capability struct {
	Upload   bool
	Status   bool
	VideoURL bool
}

type host struct {
	upload   func(ctx context.Context, r io.ReadSeeker, size int64, filename, title string) (*HostedVideo, error)
	status   func(ctx context.Context, id string) (Status, error)
	videoURL func(ctx context.Context, id string) (string, error)
	pageURL  func(id string) string
}

func NewService(cfg *config.Config) *Service {
	session := httputil.NewSession(httputil.SessionConfig{
		UserAgent:      cfg.HTTP.UserAgent,
		Timeout:        cfg.Timeout(),
		MaxRetries:     cfg.HTTP.MaxRetries,
		InitialDelay:   cfg.InitialRetryDelay(),
		MaxDelay:       cfg.MaxRetryDelay(),
		RequestsPerSec: cfg.HTTP.RequestsPerSec,
		Burst:          cfg.HTTP.Burst,
	})

	s := &Service{
		Dubz:           dubz.New(session),
		GfyCat:         gfycat.New(gfycat.Config{HTTP: session, AccessKey: cfg.GfyCatAccessKey}),
		Imgur:          imgur.New(imgur.Config{HTTP: session, ClientID: cfg.ImgurClientID}),
		JustStreamLive: juststreamlive.New(session),
		Streamable: streamable.New(streamable.Config{
			HTTP:            session,
			UploadRegion:    cfg.Streamable.UploadRegion,
			FrontendVersion: cfg.Streamable.FrontendVersion,
		}),
		Streamff: streamff.New(session),
		Streamja: streamja.New(session),
		cfg:      cfg,
	}
	s.hosts = s.buildHosts()
	return s
}

// Platforms returns the supported platform names, sorted.
func (s *Service) Platforms() []string {
	names := make([]string, 0, len(s.hosts))
	for name := range s.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Service) Capability(platform string) (Capability, error) {
	h, ok := s.hosts[platform]
	if !ok {
		return Capability{}, fmt.Errorf("%s: %w", platform, ErrUnknownPlatform)
	}
	return Capability{
		Upload:   h.upload != nil,
		Status:   h.status != nil,
		VideoURL: h.videoURL != nil,
	}, nil
}

// Upload pushes a video to the named platform and returns its hosted
// reference.
func (s *Service) Upload(ctx context.Context, platform string, req UploadRequest) (*HostedVideo, error) {
	h, ok := s.hosts[platform]
	if !ok {
		return nil, fmt.Errorf("%s: %w", platform, ErrUnknownPlatform)
	}

	r, size, filename, cleanup, err := resolveRequest(req)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	op := uuid.NewString()
	start := time.Now()
	slog.Info("Uploading video", "op", op, "platform", platform, "filename", filename, "size", size)

	video, err := h.upload(ctx, r, size, filename, req.Title)
	if err != nil {
		slog.Error("Upload failed", "op", op, "platform", platform, "error", err)
		return nil, err
	}

	slog.Info("Upload complete", "op", op, "platform", platform, "id", video.ID,
		"url", video.URL, "elapsed", time.Since(start).Round(time.Millisecond))
	return video, nil
}

// Status reports the processing state of a hosted video.
func (s *Service) Status(ctx context.Context, platform, id string) (Status, error) {
	h, ok := s.hosts[platform]
	if !ok {
		return StatusUnknown, fmt.Errorf("%s: %w", platform, ErrUnknownPlatform)
	}
	if h.status == nil {
		return StatusUnknown, fmt.Errorf("%s status: %w", platform, ErrUnsupported)
	}
	return h.status(ctx, id)
}

// VideoURL resolves the direct video source behind a hosted page.
func (s *Service) VideoURL(ctx context.Context, platform, id string) (string, error) {
	h, ok := s.hosts[platform]
	if !ok {
		return "", fmt.Errorf("%s: %w", platform, ErrUnknownPlatform)
	}
	if h.videoURL == nil {
		return "", fmt.Errorf("%s video url: %w", platform, ErrUnsupported)
	}
	return h.videoURL(ctx, id)
}

// PageURL returns the public page for a hosted video id.
func (s *Service) PageURL(platform, id string) (string, error) {
	h, ok := s.hosts[platform]
	if !ok {
		return "", fmt.Errorf("%s: %w", platform, ErrUnknownPlatform)
	}
	return h.pageURL(id), nil
}

func (s *Service) buildHosts() map[string]host {
	return map[string]host{
		PlatformDubz: {
			upload:   s.uploadDubz,
			status:   s.statusDubz,
			videoURL: s.Dubz.VideoURL,
			pageURL:  s.Dubz.PageURL,
		},
		PlatformGfyCat: {
			upload:   s.uploadGfyCat,
			status:   s.statusGfyCat,
			videoURL: s.videoURLGfyCat,
			pageURL:  s.GfyCat.PageURL,
		},
		PlatformImgur: {
			upload:   s.uploadImgur,
			status:   s.statusImgur,
			videoURL: s.videoURLImgur,
			pageURL:  s.Imgur.PageURL,
		},
		PlatformJustStreamLive: {
			upload:  s.uploadJustStreamLive,
			status:  s.statusJustStreamLive,
			pageURL: s.JustStreamLive.PageURL,
		},
		PlatformStreamable: {
			upload:   s.uploadStreamable,
			status:   s.statusStreamable,
			videoURL: s.Streamable.VideoURL,
			pageURL:  s.Streamable.PageURL,
		},
		PlatformStreamff: {
			upload:   s.uploadStreamff,
			status:   s.statusStreamff,
			videoURL: s.videoURLStreamff,
			pageURL:  s.Streamff.PageURL,
		},
		PlatformStreamja: {
			upload:   s.uploadStreamja,
			status:   s.statusStreamja,
			videoURL: s.Streamja.VideoURL,
			pageURL:  s.Streamja.PageURL,
		},
	}
}

func (s *Service) uploadDubz(ctx context.Context, r io.ReadSeeker, _ int64, filename, _ string) (*HostedVideo, error) {
	id, err := s.Dubz.Upload(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	return &HostedVideo{Platform: PlatformDubz, ID: id, URL: s.Dubz.PageURL(id)}, nil
}

func (s *Service) statusDubz(ctx context.Context, id string) (Status, error) {
	deleted, err := s.Dubz.IsDeleted(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if deleted {
		return StatusDeleted, nil
	}

	processing, err := s.Dubz.IsProcessing(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if processing {
		return StatusProcessing, nil
	}
	return StatusComplete, nil
}

func (s *Service) uploadGfyCat(ctx context.Context, r io.ReadSeeker, _ int64, filename, title string) (*HostedVideo, error) {
	if title == "" {
		title = titleFromFilename(filename)
	}

	post, err := s.GfyCat.CreatePost(ctx, title, !s.cfg.Upload.MuteAudio, !s.cfg.Upload.Public)
	if err != nil {
		return nil, err
	}
	if err := s.GfyCat.Upload(ctx, post.GfyName, r, filename); err != nil {
		return nil, err
	}
	return &HostedVideo{Platform: PlatformGfyCat, ID: post.GfyName, URL: s.GfyCat.PageURL(post.GfyName)}, nil
}

func (s *Service) statusGfyCat(ctx context.Context, id string) (Status, error) {
	status, err := s.GfyCat.Status(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	switch status.Task {
	case gfycat.TaskComplete:
		return StatusComplete, nil
	case gfycat.TaskEncoding:
		return StatusProcessing, nil
	case gfycat.TaskError:
		return StatusError, nil
	default:
		return StatusUnknown, nil
	}
}

func (s *Service) videoURLGfyCat(ctx context.Context, id string) (string, error) {
	item, err := s.GfyCat.PostInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if item.Mp4URL == "" {
		return "", fmt.Errorf("gfy %s has no mp4 url", id)
	}
	return item.Mp4URL, nil
}

func (s *Service) uploadImgur(ctx context.Context, r io.ReadSeeker, _ int64, filename, title string) (*HostedVideo, error) {
	result, err := s.Imgur.UploadMedia(ctx, r, filename, "")
	if err != nil {
		return nil, err
	}

	id := result.ID
	deleteHash := result.DeleteHash
	if result.Ticket != "" {
		id, deleteHash, err = s.awaitImgurTicket(ctx, result.Ticket)
		if err != nil {
			return nil, err
		}
	}

	if title != "" && deleteHash != "" {
		if err := s.Imgur.UpdateMedia(ctx, deleteHash, imgur.UpdateOptions{Title: title}); err != nil {
			return nil, err
		}
	}
	return &HostedVideo{Platform: PlatformImgur, ID: id, URL: s.Imgur.PageURL(id)}, nil
}

// UploadImgurAlbum uploads several videos, gathers them into a fresh
// anonymous album, and returns the album reference.
func (s *Service) UploadImgurAlbum(ctx context.Context, title string, reqs ...UploadRequest) (*HostedVideo, error) {
	if len(reqs) == 0 {
		return nil, errors.New("album upload needs at least one video")
	}

	op := uuid.NewString()
	slog.Info("Uploading album", "op", op, "platform", PlatformImgur, "videos", len(reqs))

	deleteHashes := make([]string, 0, len(reqs))
	for _, req := range reqs {
		r, _, filename, cleanup, err := resolveRequest(req)
		if err != nil {
			return nil, err
		}

		result, err := s.Imgur.UploadMedia(ctx, r, filename, "")
		cleanup()
		if err != nil {
			slog.Error("Album upload failed", "op", op, "filename", filename, "error", err)
			return nil, err
		}

		deleteHash := result.DeleteHash
		if result.Ticket != "" {
			if _, deleteHash, err = s.awaitImgurTicket(ctx, result.Ticket); err != nil {
				return nil, err
			}
		}
		deleteHashes = append(deleteHashes, deleteHash)
	}

	album, err := s.Imgur.GenerateAlbum(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Imgur.AddToAlbum(ctx, album.DeleteHash, deleteHashes...); err != nil {
		return nil, err
	}
	if title != "" {
		if err := s.Imgur.UpdateAlbum(ctx, album.DeleteHash, imgur.UpdateOptions{Title: title}); err != nil {
			return nil, err
		}
	}

	url := s.Imgur.AlbumURL(album.ID)
	slog.Info("Album complete", "op", op, "id", album.ID, "url", url)
	return &HostedVideo{Platform: PlatformImgur, ID: album.ID, URL: url}, nil
}

// awaitImgurTicket polls until transcoding assigns the final media id,
// bounded only by ctx.
func (s *Service) awaitImgurTicket(ctx context.Context, ticket string) (id, deleteHash string, err error) {
	ticker := time.NewTicker(imgurPollInterval)
	defer ticker.Stop()

	for {
		poll, err := s.Imgur.PollTickets(ctx, ticket)
		if err != nil {
			return "", "", err
		}
		if mediaID, ok := poll.Done[ticket]; ok {
			return mediaID, poll.Images[mediaID].DeleteHash, nil
		}

		select {
		case <-ctx.Done():
			return "", "", fmt.Errorf("await ticket %s: %w", ticket, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *Service) statusImgur(ctx context.Context, id string) (Status, error) {
	media, err := s.Imgur.Media(ctx, id)
	if err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == 404 {
			return StatusDeleted, nil
		}
		return StatusUnknown, err
	}
	if media.ID == "" {
		return StatusUnknown, nil
	}
	return StatusComplete, nil
}

func (s *Service) videoURLImgur(ctx context.Context, id string) (string, error) {
	media, err := s.Imgur.Media(ctx, id)
	if err != nil {
		return "", err
	}
	if len(media.Media) == 0 {
		return "", fmt.Errorf("imgur post %s has no media", id)
	}
	return media.Media[0].URL, nil
}

func (s *Service) uploadJustStreamLive(ctx context.Context, r io.ReadSeeker, _ int64, filename, _ string) (*HostedVideo, error) {
	id, err := s.JustStreamLive.Upload(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	return &HostedVideo{Platform: PlatformJustStreamLive, ID: id, URL: s.JustStreamLive.PageURL(id)}, nil
}

func (s *Service) statusJustStreamLive(ctx context.Context, id string) (Status, error) {
	details, err := s.JustStreamLive.Details(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	switch details.Status {
	case juststreamlive.StateComplete:
		return StatusComplete, nil
	case juststreamlive.StateSubmitted, juststreamlive.StateProcessing:
		return StatusProcessing, nil
	default:
		return StatusUnknown, nil
	}
}

func (s *Service) uploadStreamable(ctx context.Context, r io.ReadSeeker, size int64, filename, title string) (*HostedVideo, error) {
	video, err := s.Streamable.Upload(ctx, r, size, filename, title)
	if err != nil {
		return nil, err
	}
	return &HostedVideo{
		Platform: PlatformStreamable,
		ID:       video.Shortcode,
		URL:      s.Streamable.PageURL(video.Shortcode),
	}, nil
}

func (s *Service) statusStreamable(ctx context.Context, id string) (Status, error) {
	available, err := s.Streamable.Available(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if !available {
		return StatusDeleted, nil
	}

	processing, err := s.Streamable.Processing(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if processing {
		return StatusProcessing, nil
	}
	return StatusComplete, nil
}

func (s *Service) uploadStreamff(ctx context.Context, r io.ReadSeeker, _ int64, filename, _ string) (*HostedVideo, error) {
	id, err := s.Streamff.Upload(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	return &HostedVideo{Platform: PlatformStreamff, ID: id, URL: s.Streamff.PageURL(id)}, nil
}

func (s *Service) statusStreamff(ctx context.Context, id string) (Status, error) {
	video, err := s.Streamff.Video(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if video.VideoLink == "" {
		return StatusProcessing, nil
	}
	return StatusComplete, nil
}

func (s *Service) videoURLStreamff(ctx context.Context, id string) (string, error) {
	video, err := s.Streamff.Video(ctx, id)
	if err != nil {
		return "", err
	}
	if video.VideoLink == "" {
		return "", fmt.Errorf("streamff video %s still processing", id)
	}
	return video.VideoLink, nil
}

func (s *Service) uploadStreamja(ctx context.Context, r io.ReadSeeker, _ int64, filename, _ string) (*HostedVideo, error) {
	result, err := s.Streamja.Upload(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	return &HostedVideo{
		Platform: PlatformStreamja,
		ID:       result.ShortID,
		URL:      s.Streamja.PageURL(result.ShortID),
		EmbedURL: s.Streamja.EmbedURL(result.ShortID),
	}, nil
}

func (s *Service) statusStreamja(ctx context.Context, id string) (Status, error) {
	available, err := s.Streamja.Available(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if !available {
		return StatusDeleted, nil
	}

	processing, err := s.Streamja.Processing(ctx, id)
	if err != nil {
		return StatusUnknown, err
	}
	if processing {
		return StatusProcessing, nil
	}
	return StatusComplete, nil
}

func resolveRequest(req UploadRequest) (io.ReadSeeker, int64, string, func(), error) {
	filename := req.Filename
	if filename == "" {
		if req.FilePath != "" {
			filename = filepath.Base(req.FilePath)
		} else {
			filename = defaultFilename
		}
	}

	if req.Reader != nil {
		size := req.Size
		if size == 0 {
			end, err := req.Reader.Seek(0, io.SeekEnd)
			if err != nil {
				return nil, 0, "", nil, fmt.Errorf("measure reader: %w", err)
			}
			if _, err := req.Reader.Seek(0, io.SeekStart); err != nil {
				return nil, 0, "", nil, fmt.Errorf("rewind reader: %w", err)
			}
			size = end
		}
		return req.Reader, size, filename, func() {}, nil
	}

	if req.FilePath == "" {
		return nil, 0, "", nil, errors.New("upload request needs a file path or reader")
	}

	f, err := os.Open(req.FilePath)
	if err != nil {
		return nil, 0, "", nil, fmt.Errorf("open video: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, "", nil, fmt.Errorf("stat video: %w", err)
	}
	return f, info.Size(), filename, func() { _ = f.Close() }, nil
}

func titleFromFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
