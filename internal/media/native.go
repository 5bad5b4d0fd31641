package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kkdai/youtube/v2"
	"go.uber.org/zap"
)

// nativeBackend talks to YouTube directly and needs no external binary.
type nativeBackend struct {
	client *youtube.Client
	logger *zap.Logger
}

func newNativeBackend(logger *zap.Logger) Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &nativeBackend{client: &youtube.Client{}, logger: logger}
}

func (b *nativeBackend) Name() string {
	return "native"
}

func (b *nativeBackend) Available() bool {
	return true
}

func (b *nativeBackend) Fetch(ctx context.Context, req Request) (string, error) {
	video, err := b.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		if errors.Is(err, youtube.ErrInvalidCharactersInVideoID) || errors.Is(err, youtube.ErrVideoIDMinLength) {
			return "", rejectURL(fmt.Errorf("resolve video: %w", err))
		}
		return "", fmt.Errorf("resolve video: %w", err)
	}

	format, err := bestAudioFormat(video.Formats)
	if err != nil {
		return "", err
	}

	b.logger.Debug("selected audio format",
		zap.String("video", video.ID),
		zap.Int("itag", format.ItagNo),
		zap.String("mime", format.MimeType),
		zap.Int("bitrate", format.Bitrate),
	)

	stream, _, err := b.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return "", fmt.Errorf("open audio stream: %w", err)
	}
	defer stream.Close()

	outPath := filepath.Join(req.Dir, req.BaseName+"."+extensionForMime(format.MimeType))
	if err := writeStream(outPath, stream); err != nil {
		return "", err
	}

	return outPath, nil
}

// bestAudioFormat prefers audio-only streams by bitrate and falls back to
// any muxed stream that carries audio.
func bestAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	best := -1
	for i, format := range formats {
		if !strings.HasPrefix(format.MimeType, "audio/") {
			continue
		}
		if best == -1 || format.Bitrate > formats[best].Bitrate {
			best = i
		}
	}

	if best == -1 {
		for i, format := range formats {
			if format.AudioChannels <= 0 {
				continue
			}
			if best == -1 || format.Bitrate > formats[best].Bitrate {
				best = i
			}
		}
	}

	if best == -1 {
		return nil, errors.New("video has no audio formats")
	}
	return &formats[best], nil
}

func extensionForMime(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch strings.ToLower(base) {
	case "audio/webm", "video/webm":
		return "webm"
	case "audio/mp4":
		return "m4a"
	case "video/mp4":
		return "mp4"
	case "audio/mpeg":
		return "mp3"
	default:
		return "bin"
	}
}

func writeStream(path string, stream io.Reader) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}

	if _, err := io.Copy(out, stream); err != nil {
		_ = out.Close()
		return fmt.Errorf("write audio file: %w", err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close audio file: %w", err)
	}
	return nil
}
